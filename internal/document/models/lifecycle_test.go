package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
	"lexflow/pkg/testutil"
)

func TestSignatureLifecycle(t *testing.T) {
	testutil.Given(t, "a document waiting for signatures with a due date", func(t *testing.T) {
		doc := newDoc(t)
		due := now.Add(48 * time.Hour)
		require.NoError(t, doc.CanRequestSignatures())
		doc.ApplySignatureRequest(&due, now)
		require.Equal(t, StatePendingSignatures, doc.State)

		testutil.When(t, "the due date passes", func(t *testing.T) {
			later := due.Add(time.Minute)
			require.True(t, doc.IsOverdue(later))
			require.True(t, doc.ApplyExpiry(later))

			testutil.Then(t, "the document is expired and only the owner may reopen it", func(t *testing.T) {
				assert.Equal(t, StateExpired, doc.State)
				assert.False(t, doc.ApplyExpiry(later), "expiry applies once")
				assert.True(t, dErrors.HasCode(doc.CanReopen(id.UserID(uuid.New())), dErrors.CodeForbidden))
				assert.NoError(t, doc.CanReopen(doc.OwnerID))
			})

			testutil.Then(t, "reopening without a new date drops the stale one", func(t *testing.T) {
				doc.ApplyReopen(nil, later)
				assert.Equal(t, StatePendingSignatures, doc.State)
				assert.Nil(t, doc.SignatureDueDate)
				assert.False(t, doc.IsOverdue(later.Add(24*time.Hour)))
			})
		})

		testutil.When(t, "every signer has signed", func(t *testing.T) {
			flipped := doc.ApplyCompleteness(true, now)

			testutil.Then(t, "the document becomes fully signed exactly once", func(t *testing.T) {
				assert.True(t, flipped)
				assert.Equal(t, StateFullySigned, doc.State)
				assert.False(t, doc.ApplyCompleteness(true, now))
				assert.Error(t, doc.CanEditContent())
			})
		})
	})
}
