package models

import (
	"time"

	id "lexflow/pkg/domain"
	dErrors "lexflow/pkg/domain-errors"
)

// Relationship is a directed edge between two documents. The unordered pair
// is unique: A→B and B→A cannot coexist.
type Relationship struct {
	ID        id.RelationshipID `json:"id"`
	SourceID  id.DocumentID     `json:"source_document"`
	TargetID  id.DocumentID     `json:"target_document"`
	CreatedBy id.UserID         `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
}

// Touches reports whether docID is either endpoint.
func (r *Relationship) Touches(docID id.DocumentID) bool {
	return r.SourceID == docID || r.TargetID == docID
}

// Other returns the endpoint opposite docID.
func (r *Relationship) Other(docID id.DocumentID) id.DocumentID {
	if r.SourceID == docID {
		return r.TargetID
	}
	return r.SourceID
}

// Connects reports whether the edge links a and b in either direction.
func (r *Relationship) Connects(a, b id.DocumentID) bool {
	return (r.SourceID == a && r.TargetID == b) || (r.SourceID == b && r.TargetID == a)
}

// CheckSourceState: a source must be Completed, or PendingSignatures when
// allowPending is set. FullySigned never originates an edge.
func CheckSourceState(state DocumentState, allowPending bool) error {
	switch {
	case state == StateCompleted:
		return nil
	case state == StatePendingSignatures && allowPending:
		return nil
	case state == StateFullySigned:
		return dErrors.New(dErrors.CodeInvalidState, "fully signed documents cannot originate relationships")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "source document is not in a final state")
	}
}

// CheckTargetState: a target must be Completed; with allowPending,
// PendingSignatures and FullySigned also qualify.
func CheckTargetState(state DocumentState, allowPending bool) error {
	switch state {
	case StateCompleted:
		return nil
	case StatePendingSignatures, StateFullySigned:
		if allowPending {
			return nil
		}
		return dErrors.New(dErrors.CodeInvalidState, "target has pending/fully signed state")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "target document is not in a final state")
	}
}
