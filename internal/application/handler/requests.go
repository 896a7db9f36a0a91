package handler

import (
	"time"

	"prereg/internal/application/models"
)

// Request bodies wrap their payload in a "request" member next to the
// id/version/requesttime header, and responses carry theirs in "response".

const (
	apiVersion = "1.0"

	operationCreate       = "mosip.pre-registration.demographic.create"
	operationUpdate       = "mosip.pre-registration.demographic.update"
	operationRetrieve     = "mosip.pre-registration.demographic.retrieve.details"
	operationList         = "mosip.pre-registration.demographic.retrieve.basic"
	operationStatus       = "mosip.pre-registration.demographic.retrieve.status"
	operationChangeStatus = "mosip.pre-registration.demographic.status"
	operationDelete       = "mosip.pre-registration.demographic.delete"
	operationUpdatedTime  = "mosip.pre-registration.demographic.retrieve.date"
	operationAttach       = "mosip.pre-registration.demographic.document"
)

// requestHeader is the envelope shared by every request body. Its members
// are optional; version is echoed back when present.
type requestHeader struct {
	ID          string     `json:"id,omitempty"`
	Version     string     `json:"version,omitempty"`
	RequestTime *time.Time `json:"requesttime,omitempty"`
}

type createRequest struct {
	requestHeader
	Request []models.DemographicPayload `json:"request"`
}

type updateRequest struct {
	requestHeader
	Request models.DemographicPayload `json:"request"`
}

type updatedTimeRequest struct {
	requestHeader
	Request struct {
		PreRegistrationIDs []string `json:"preRegistrationIds"`
	} `json:"request"`
}

type attachDocumentRequest struct {
	requestHeader
	Request struct {
		DocumentID string                  `json:"documentId"`
		Category   models.DocumentCategory `json:"docCatCode"`
		TypeCode   string                  `json:"docTypCode"`
	} `json:"request"`
}

func (r attachDocumentRequest) toDocumentRef() models.DocumentRef {
	return models.DocumentRef{
		DocumentID: r.Request.DocumentID,
		Category:   r.Request.Category,
		TypeCode:   r.Request.TypeCode,
	}
}

type envelope struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	ResponseTime time.Time `json:"responsetime"`
	Response     any       `json:"response"`
}

func newEnvelope(operation string, req *requestHeader, response any, now time.Time) envelope {
	version := apiVersion
	if req != nil && req.Version != "" {
		version = req.Version
	}
	return envelope{
		ID:           operation,
		Version:      version,
		ResponseTime: now.UTC(),
		Response:     response,
	}
}

type statusResponse struct {
	PreRegistrationID string        `json:"preRegistrationId"`
	Status            models.Status `json:"statusCode"`
}
