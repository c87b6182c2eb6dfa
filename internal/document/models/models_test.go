package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newDoc(t *testing.T) *Document {
	t.Helper()
	d, err := NewDocument(id.NewDocumentID(), id.UserID(uuid.New()), "Lease", "Rent is {{ amount }}", now)
	require.NoError(t, err)
	return d
}

func TestNewDocumentInvariants(t *testing.T) {
	_, err := NewDocument(id.NewDocumentID(), id.UserID(uuid.New()), "", "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewDocument(id.NewDocumentID(), id.UserID(uuid.New()), string(long), "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	d := newDoc(t)
	assert.Equal(t, StateDraft, d.State)
	assert.False(t, d.FullySigned)
}

func TestIsComplete(t *testing.T) {
	assert.False(t, IsComplete(nil), "no signers is never complete")
	assert.False(t, IsComplete([]*Signature{{Signed: true}, {Signed: false}}))
	assert.False(t, IsComplete([]*Signature{{Signed: false, Rejected: true}}))
	assert.True(t, IsComplete([]*Signature{{Signed: true}, {Signed: true}}))
}

func TestApplyCompletenessFlipsStateOnce(t *testing.T) {
	d := newDoc(t)
	d.ApplySignatureRequest(nil, now)

	assert.False(t, d.ApplyCompleteness(false, now))
	assert.Equal(t, StatePendingSignatures, d.State)

	assert.True(t, d.ApplyCompleteness(true, now))
	assert.Equal(t, StateFullySigned, d.State)
	assert.True(t, d.FullySigned)

	assert.False(t, d.ApplyCompleteness(true, now), "already complete does not flip again")

	d.State = StatePendingSignatures
	assert.False(t, d.ApplyCompleteness(false, now))
	assert.False(t, d.FullySigned)
	assert.Equal(t, StatePendingSignatures, d.State, "true to false only updates the flag")
}

func TestCheckOrder(t *testing.T) {
	first := &Signature{ID: id.NewSignatureID(), Position: 1}
	second := &Signature{ID: id.NewSignatureID(), Position: 2}
	free := &Signature{ID: id.NewSignatureID(), Position: 0}
	sigs := []*Signature{first, second, free}

	assert.NoError(t, CheckOrder(sigs, first))
	assert.NoError(t, CheckOrder(sigs, free))
	err := CheckOrder(sigs, second)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	first.Signed = true
	assert.NoError(t, CheckOrder(sigs, second))
}

func TestSignatureRecordLifecycle(t *testing.T) {
	sig, err := NewSignature(id.NewDocumentID(), SignerRequest{SignerID: id.UserID(uuid.New())}, now)
	require.NoError(t, err)
	require.NoError(t, sig.CanAct())

	sig.ApplySign("192.0.2.1", now)
	assert.True(t, sig.Signed)
	assert.Equal(t, "192.0.2.1", sig.IPAddress)
	assert.True(t, dErrors.HasCode(sig.CanAct(), dErrors.CodeInvalidState))

	sig.Reset()
	assert.True(t, sig.IsOpen())
	assert.Nil(t, sig.SignedAt)

	sig.ApplyReject("wrong amount")
	assert.True(t, dErrors.HasCode(sig.CanAct(), dErrors.CodeInvalidState))

	_, err = NewSignature(id.NewDocumentID(), SignerRequest{}, now)
	assert.Error(t, err)
	_, err = NewSignature(id.NewDocumentID(), SignerRequest{SignerID: id.UserID(uuid.New()), Position: -1}, now)
	assert.Error(t, err)
}

func TestReopen(t *testing.T) {
	d := newDoc(t)
	past := now.Add(-time.Hour)
	d.ApplySignatureRequest(&past, now)

	assert.True(t, dErrors.HasCode(d.CanReopen(d.OwnerID), dErrors.CodeInvalidState), "pending cannot reopen")

	d.ApplyExpiry(now)
	assert.True(t, dErrors.HasCode(d.CanReopen(id.UserID(uuid.New())), dErrors.CodeForbidden))
	require.NoError(t, d.CanReopen(d.OwnerID))

	d.ApplyReopen(nil, now)
	assert.Equal(t, StatePendingSignatures, d.State)
	assert.Nil(t, d.SignatureDueDate, "a past due date is cleared")

	future := now.Add(48 * time.Hour)
	d.ApplyRejection(now)
	d.ApplyReopen(&future, now)
	require.NotNil(t, d.SignatureDueDate)
	assert.Equal(t, future, *d.SignatureDueDate)
}

func TestApplyExpiryIsIdempotent(t *testing.T) {
	d := newDoc(t)
	d.ApplySignatureRequest(nil, now)
	assert.True(t, d.ApplyExpiry(now))
	assert.False(t, d.ApplyExpiry(now))
	assert.Equal(t, StateExpired, d.State)
}

func TestIsOverdue(t *testing.T) {
	d := newDoc(t)
	due := now.Add(-time.Minute)
	d.ApplySignatureRequest(&due, now)
	assert.True(t, d.IsOverdue(now))

	d.SignatureDueDate = nil
	assert.False(t, d.IsOverdue(now))

	d.SignatureDueDate = &due
	d.State = StateFullySigned
	assert.False(t, d.IsOverdue(now))
}

func TestApplyPatch(t *testing.T) {
	t.Run("completed back to progress is reported", func(t *testing.T) {
		d := newDoc(t)
		d.State = StateCompleted
		progress := StateProgress
		reopened, err := d.ApplyPatch(Patch{State: &progress}, now)
		require.NoError(t, err)
		assert.True(t, reopened)
	})

	t.Run("signature states cannot be set directly", func(t *testing.T) {
		d := newDoc(t)
		signed := StateFullySigned
		_, err := d.ApplyPatch(Patch{State: &signed}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("fully signed content is frozen", func(t *testing.T) {
		d := newDoc(t)
		d.State = StateFullySigned
		content := "changed"
		_, err := d.ApplyPatch(Patch{Content: &content}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

		public := true
		_, err = d.ApplyPatch(Patch{IsPublic: &public}, now)
		assert.NoError(t, err)
	})

	t.Run("empty title is a validation error", func(t *testing.T) {
		d := newDoc(t)
		empty := ""
		_, err := d.ApplyPatch(Patch{Title: &empty}, now)
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("assignee set and cleared", func(t *testing.T) {
		d := newDoc(t)
		delegate := id.UserID(uuid.New())
		_, err := d.ApplyPatch(Patch{AssignedTo: &delegate}, now)
		require.NoError(t, err)
		assert.True(t, d.IsAssignedTo(delegate))

		_, err = d.ApplyPatch(Patch{ClearAssignee: true}, now)
		require.NoError(t, err)
		assert.Nil(t, d.AssignedTo)
	})
}

func TestRelationshipEligibility(t *testing.T) {
	cases := []struct {
		state    DocumentState
		allow    bool
		sourceOK bool
		targetOK bool
	}{
		{StateCompleted, false, true, true},
		{StateCompleted, true, true, true},
		{StatePendingSignatures, false, false, false},
		{StatePendingSignatures, true, true, true},
		{StateFullySigned, false, false, false},
		{StateFullySigned, true, false, true},
		{StateDraft, true, false, false},
		{StateProgress, false, false, false},
		{StateRejected, true, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.state), func(t *testing.T) {
			srcErr := CheckSourceState(tc.state, tc.allow)
			tgtErr := CheckTargetState(tc.state, tc.allow)
			assert.Equal(t, tc.sourceOK, srcErr == nil, "source allow=%v", tc.allow)
			assert.Equal(t, tc.targetOK, tgtErr == nil, "target allow=%v", tc.allow)
			if srcErr != nil {
				assert.True(t, dErrors.HasCode(srcErr, dErrors.CodeInvalidState))
			}
		})
	}
}

func TestVersionNumbering(t *testing.T) {
	assert.Equal(t, 1, NextSignedNumber(nil))
	versions := []*Version{
		{Type: VersionOriginal, Number: 0},
		{Type: VersionSigned, Number: 1},
		{Type: VersionSigned, Number: 2},
	}
	assert.Equal(t, 3, NextSignedNumber(versions))
	assert.True(t, HasOriginal(versions))
	assert.False(t, HasOriginal(versions[1:]))
}
