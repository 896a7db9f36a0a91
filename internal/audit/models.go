package audit

import "time"

// EventType names an audit-worthy lifecycle action.
type EventType string

const (
	EventApplicationCreated  EventType = "application_created"
	EventApplicationUpdated  EventType = "application_updated"
	EventStatusChanged       EventType = "application_status_changed"
	EventApplicationDeleted  EventType = "application_deleted"
	EventDocumentAttached    EventType = "application_document_attached"
	EventDocumentPurgeFailed EventType = "application_document_purge_failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Action            EventType `json:"action"`
	PreRegistrationID string    `json:"preRegistrationId"`
	GroupID           string    `json:"groupId,omitempty"`
	OwnerID           string    `json:"ownerId,omitempty"`
	// ActorID is the caller; it differs from OwnerID when an officer acts on
	// an applicant's behalf.
	ActorID   string    `json:"actorId"`
	From      string    `json:"fromStatus,omitempty"`
	To        string    `json:"toStatus,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
