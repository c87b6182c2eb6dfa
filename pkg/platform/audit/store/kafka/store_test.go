package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lexflow/pkg/domain"
	audit "lexflow/pkg/platform/audit"
)

func TestEncodeKeysByDocument(t *testing.T) {
	docID := id.NewDocumentID()
	actor := id.UserID(id.NewDocumentID())
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	key, value, err := encode(audit.Event{
		Category:   audit.CategoryCompliance,
		Timestamp:  ts,
		Action:     string(audit.EventDocumentSigned),
		ActorID:    actor,
		DocumentID: docID,
		ClientIP:   "192.0.2.1",
	})
	require.NoError(t, err)
	assert.Equal(t, docID.String(), string(key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(value, &got))
	assert.Equal(t, "compliance", got["category"])
	assert.Equal(t, "document_signed", got["action"])
	assert.Equal(t, actor.String(), got["actor_id"])
	assert.Equal(t, "192.0.2.1", got["client_ip"])
	_, hasSubject := got["subject_id"]
	assert.False(t, hasSubject)
}

func TestEncodeWithoutDocumentHasNoKey(t *testing.T) {
	key, _, err := encode(audit.Event{Action: string(audit.EventTokenIssued)})
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(nil, "audit")
	assert.Error(t, err)
}
