package audit

import (
	"context"
	"time"

	id "lexflow/pkg/domain"
)

// EventCategory classifies audit events so sinks can route and retain them
// differently.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: signatures,
	// rejections, grants. Retained for the life of the matter.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers access-control changes and denied attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the document services after a governance mutation
// commits. It is transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	Action     string
	ActorID    id.UserID
	DocumentID id.DocumentID
	// SubjectID is the user acted upon (signer, grantee) when it differs
	// from the actor.
	SubjectID id.UserID
	Reason    string
	RequestID string
	ClientIP  string
	Device    string
}

type AuditEvent string

const (
	EventDocumentCreated AuditEvent = "document_created"
	EventDocumentUpdated AuditEvent = "document_updated"
	EventDocumentDeleted AuditEvent = "document_deleted"

	EventVisibilityGranted AuditEvent = "visibility_granted"
	EventVisibilityRevoked AuditEvent = "visibility_revoked"
	EventUsabilityGranted  AuditEvent = "usability_granted"
	EventUsabilityRevoked  AuditEvent = "usability_revoked"

	EventSignaturesRequested     AuditEvent = "signatures_requested"
	EventSignatureRequestRemoved AuditEvent = "signature_request_removed"
	EventDocumentSigned          AuditEvent = "document_signed"
	EventDocumentFullySigned     AuditEvent = "document_fully_signed"
	EventSignatureRejected       AuditEvent = "signature_rejected"
	EventSignaturesReopened      AuditEvent = "signatures_reopened"
	EventDocumentExpired         AuditEvent = "document_expired"

	EventRelationshipCreated  AuditEvent = "relationship_created"
	EventRelationshipDeleted  AuditEvent = "relationship_deleted"
	EventRelationshipsCleared AuditEvent = "relationships_cleared"

	EventPrincipalUpserted AuditEvent = "principal_upserted"
	EventTokenIssued       AuditEvent = "token_issued"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentSigned:          CategoryCompliance,
	EventDocumentFullySigned:     CategoryCompliance,
	EventSignatureRejected:       CategoryCompliance,
	EventSignaturesRequested:     CategoryCompliance,
	EventSignatureRequestRemoved: CategoryCompliance,
	EventSignaturesReopened:      CategoryCompliance,
	EventDocumentExpired:         CategoryCompliance,
	EventDocumentDeleted:         CategoryCompliance,

	EventVisibilityGranted: CategorySecurity,
	EventVisibilityRevoked: CategorySecurity,
	EventUsabilityGranted:  CategorySecurity,
	EventUsabilityRevoked:  CategorySecurity,
	EventPrincipalUpserted: CategorySecurity,
	EventTokenIssued:       CategorySecurity,
}

// Category returns the category for an action. Unlisted actions are
// operational.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the port services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
