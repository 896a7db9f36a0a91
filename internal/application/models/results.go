package models

import (
	"time"

	id "prereg/pkg/domain"
)

// CreatedApplication is returned for each payload of a create batch, in
// input order.
type CreatedApplication struct {
	PreRegistrationID id.PreRegistrationID `json:"preRegistrationId"`
	GroupID           id.GroupID           `json:"groupId"`
	Status            Status               `json:"statusCode"`
	CreatedAt         time.Time            `json:"createdAt"`
}

// Summary is the listing view of an application.
type Summary struct {
	PreRegistrationID id.PreRegistrationID `json:"preRegistrationId"`
	GroupID           id.GroupID           `json:"groupId"`
	Status            Status               `json:"statusCode"`
	LangCode          string               `json:"langCode"`
	DocumentCount     int                  `json:"documentCount"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// UpdateStamp is what batch synchronization needs to know about a record:
// who may see it and when it last changed.
type UpdateStamp struct {
	OwnerUserID id.UserID
	UpdatedAt   time.Time
}

// StatusChange acknowledges a status transition.
type StatusChange struct {
	PreRegistrationID id.PreRegistrationID `json:"preRegistrationId"`
	From              Status               `json:"previousStatusCode"`
	To                Status               `json:"statusCode"`
	Trigger           string               `json:"trigger,omitempty"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// WarningPartialDelete marks a delete whose document purge did not go through.
const WarningPartialDelete = "partial_delete"

// DeleteWarning is reported alongside a successful delete.
type DeleteWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DeleteResult acknowledges a delete. Warning is set when the record was
// removed but its documents could not be purged.
type DeleteResult struct {
	PreRegistrationID id.PreRegistrationID `json:"preRegistrationId"`
	DeletedBy         id.UserID            `json:"deletedBy"`
	DeletedAt         time.Time            `json:"deletedDateTime"`
	Warning           *DeleteWarning       `json:"warning,omitempty"`
}

// PartialDeleteWarning builds the warning for a failed document purge.
func PartialDeleteWarning() *DeleteWarning {
	return &DeleteWarning{
		Code:    WarningPartialDelete,
		Message: "application deleted; associated documents are pending purge",
	}
}
