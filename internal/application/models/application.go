package models

import (
	"time"

	id "prereg/pkg/domain"
	dErrors "prereg/pkg/domain-errors"
)

// Application is one pre-registration attempt.
//
// Invariants:
//   - PreRegistrationID, GroupID, OwnerUserID and CreatedAt never change
//   - Status changes only through a Machine edge
//   - UpdatedAt strictly increases on every content or status mutation
//   - CONSUMED applications are frozen
type Application struct {
	PreRegistrationID id.PreRegistrationID `json:"preRegistrationId"`
	GroupID           id.GroupID           `json:"groupId"`
	OwnerUserID       id.UserID            `json:"ownerUserId"`
	Payload           DemographicPayload   `json:"demographicDetails"`
	Status            Status               `json:"statusCode"`
	Documents         []DocumentRef        `json:"documents"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// DocumentCategory groups uploaded documents by what they prove.
type DocumentCategory string

const (
	DocumentCategoryAddress      DocumentCategory = "POA"
	DocumentCategoryIdentity     DocumentCategory = "POI"
	DocumentCategoryRelationship DocumentCategory = "POR"
	DocumentCategoryBirth        DocumentCategory = "POB"
	DocumentCategoryException    DocumentCategory = "POE"
)

// DocumentRef is metadata about a document held by the document service.
// The document itself never passes through this service.
type DocumentRef struct {
	DocumentID string           `json:"documentId" validate:"required,max=64"`
	Category   DocumentCategory `json:"docCatCode" validate:"required,oneof=POA POI POR POB POE"`
	TypeCode   string           `json:"docTypCode" validate:"max=64"`
	AttachedAt time.Time        `json:"attachedAt"`
}

// Validate checks the reference shape.
func (d *DocumentRef) Validate() error {
	return validateStruct(d)
}

// NewApplication builds a freshly created application. The initial status is
// INCOMPLETE when required identity fields are missing.
func NewApplication(
	preRegID id.PreRegistrationID,
	groupID id.GroupID,
	owner id.UserID,
	payload DemographicPayload,
	required []string,
	now time.Time,
) (*Application, error) {
	if preRegID.IsNil() || groupID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application identifiers must be assigned")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application owner must be set")
	}
	now = now.UTC().Truncate(time.Microsecond)
	status := StatusPendingAppointment
	if !payload.IsComplete(required) {
		status = StatusIncomplete
	}
	return &Application{
		PreRegistrationID: preRegID,
		GroupID:           groupID,
		OwnerUserID:       owner,
		Payload:           payload.Clone(),
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// CanModify returns a conflict error when the content is frozen.
func (a *Application) CanModify() error {
	if a.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeConflict, "application has been consumed and can no longer be modified")
	}
	return nil
}

// CanDelete returns a conflict error unless the status allows deletion.
func (a *Application) CanDelete() error {
	if !a.Status.IsDeletable() {
		return dErrors.New(dErrors.CodeConflict, "application in status "+a.Status.String()+" cannot be deleted")
	}
	return nil
}

// ApplyPayload replaces the demographic payload and status.
// Call CanModify and resolve the status through a Machine first.
func (a *Application) ApplyPayload(payload DemographicPayload, status Status, now time.Time) {
	a.Payload = payload.Clone()
	a.Status = status
	a.touch(now)
}

// ApplyStatus sets a status already validated by a Machine.
func (a *Application) ApplyStatus(status Status, now time.Time) {
	a.Status = status
	a.touch(now)
}

// ApplyDocument records a document reference, replacing any earlier
// reference with the same document id, and returns the stored reference.
func (a *Application) ApplyDocument(doc DocumentRef, now time.Time) DocumentRef {
	a.touch(now)
	doc.AttachedAt = a.UpdatedAt
	for i := range a.Documents {
		if a.Documents[i].DocumentID == doc.DocumentID {
			a.Documents[i] = doc
			return doc
		}
	}
	a.Documents = append(a.Documents, doc)
	return doc
}

// touch advances UpdatedAt. Clocks may repeat or step backwards, so the new
// value is never less than one microsecond past the previous one.
// Microseconds match PostgreSQL timestamp precision.
func (a *Application) touch(now time.Time) {
	next := now.UTC().Truncate(time.Microsecond)
	if !next.After(a.UpdatedAt) {
		next = a.UpdatedAt.Add(time.Microsecond)
	}
	a.UpdatedAt = next
}

// Clone returns a deep copy.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	out.Payload = a.Payload.Clone()
	if a.Documents != nil {
		out.Documents = append([]DocumentRef(nil), a.Documents...)
	}
	return &out
}

// Summary projects the application for listings.
func (a *Application) Summary() Summary {
	return Summary{
		PreRegistrationID: a.PreRegistrationID,
		GroupID:           a.GroupID,
		Status:            a.Status,
		LangCode:          a.Payload.LangCode,
		DocumentCount:     len(a.Documents),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
