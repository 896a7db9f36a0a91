package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"prereg/internal/application/models"
	platformmetrics "prereg/internal/platform/metrics"
	id "prereg/pkg/domain"
	dErrors "prereg/pkg/domain-errors"
	"prereg/pkg/platform/httputil"
	"prereg/pkg/platform/middleware/auth"
	"prereg/pkg/platform/middleware/request"
	"prereg/pkg/requestcontext"
)

// Service defines the lifecycle operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, caller models.Caller, payloads []models.DemographicPayload) ([]models.CreatedApplication, error)
	Update(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID, payload models.DemographicPayload) (*models.Application, error)
	Get(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID) (*models.Application, error)
	GetStatus(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID) (models.Status, error)
	ListByOwner(ctx context.Context, caller models.Caller) ([]models.Summary, error)
	ChangeStatus(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID, statusCode string) (*models.StatusChange, error)
	Delete(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID) (*models.DeleteResult, error)
	BatchUpdatedAt(ctx context.Context, caller models.Caller, rawIDs []string) (map[id.PreRegistrationID]time.Time, error)
	AttachDocument(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID, doc models.DocumentRef) (*models.Application, error)
}

// Handler serves the application endpoints.
type Handler struct {
	service  Service
	resolver auth.CallerResolver
	logger   *slog.Logger
	metrics  *platformmetrics.HTTP
	timeout  time.Duration
}

// New creates a new application Handler. A zero timeout leaves request
// deadlines to the server.
func New(service Service, resolver auth.CallerResolver, logger *slog.Logger, metrics *platformmetrics.HTTP, timeout time.Duration) *Handler {
	return &Handler{
		service:  service,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		timeout:  timeout,
	}
}

// Register registers the application routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/applications", func(r chi.Router) {
		if h.timeout > 0 {
			r.Use(request.Timeout(h.timeout))
		}
		r.Use(request.ContentTypeJSON)
		r.Use(platformmetrics.LatencyMiddleware(h.metrics))
		r.Use(auth.RequireCaller(h.resolver, h.logger))

		r.Post("/", h.handleCreate)
		r.Get("/", h.handleListByOwner)
		r.Post("/updatedTime", h.handleUpdatedTime)
		r.Get("/status/{preRegistrationId}", h.handleGetStatus)
		r.Put("/status/{preRegistrationId}", h.handleChangeStatus)
		r.Get("/{preRegistrationId}", h.handleGet)
		r.Put("/{preRegistrationId}", h.handleUpdate)
		r.Delete("/{preRegistrationId}", h.handleDelete)
		r.Post("/{preRegistrationId}/documents", h.handleAttachDocument)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.service.Create(ctx, callerFrom(ctx), req.Request)
	if err != nil {
		h.fail(w, r, "failed to create applications", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationCreate, &req.requestHeader, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	preRegID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	app, err := h.service.Update(ctx, callerFrom(ctx), preRegID, req.Request)
	if err != nil {
		h.fail(w, r, "failed to update application", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationUpdate, &req.requestHeader, app)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	preRegID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(ctx, callerFrom(ctx), preRegID)
	if err != nil {
		h.fail(w, r, "failed to get application", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationRetrieve, nil, app)
}

func (h *Handler) handleListByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summaries, err := h.service.ListByOwner(ctx, callerFrom(ctx))
	if err != nil {
		h.fail(w, r, "failed to list applications", err)
		return
	}
	if summaries == nil {
		summaries = []models.Summary{}
	}
	h.respond(w, r, http.StatusOK, operationList, nil, summaries)
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	preRegID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	status, err := h.service.GetStatus(ctx, callerFrom(ctx), preRegID)
	if err != nil {
		h.fail(w, r, "failed to get application status", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationStatus, nil, statusResponse{PreRegistrationID: preRegID.String(), Status: status})
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	preRegID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	statusCode := r.URL.Query().Get("statusCode")
	if statusCode == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "statusCode query parameter is required"))
		return
	}
	change, err := h.service.ChangeStatus(ctx, callerFrom(ctx), preRegID, statusCode)
	if err != nil {
		h.fail(w, r, "failed to change application status", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationChangeStatus, nil, change)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	preRegID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Delete(ctx, callerFrom(ctx), preRegID)
	if err != nil {
		h.fail(w, r, "failed to delete application", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationDelete, nil, result)
}

func (h *Handler) handleUpdatedTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updatedTimeRequest
	if !h.decode(w, r, &req) {
		return
	}
	stamps, err := h.service.BatchUpdatedAt(ctx, callerFrom(ctx), req.Request.PreRegistrationIDs)
	if err != nil {
		h.fail(w, r, "failed to fetch updated times", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationUpdatedTime, &req.requestHeader, stamps)
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	preRegID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req attachDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	app, err := h.service.AttachDocument(ctx, callerFrom(ctx), preRegID, req.toDocumentRef())
	if err != nil {
		h.fail(w, r, "failed to attach document", err)
		return
	}
	h.respond(w, r, http.StatusOK, operationAttach, &req.requestHeader, app)
}

// callerFrom rebuilds the caller resolved by the auth middleware.
func callerFrom(ctx context.Context) models.Caller {
	return models.NewCaller(requestcontext.UserID(ctx), requestcontext.Roles(ctx)...)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.PreRegistrationID, bool) {
	preRegID, err := id.ParsePreRegistrationID(chi.URLParam(r, "preRegistrationId"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PreRegistrationID{}, false
	}
	return preRegID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		ctx := r.Context()
		h.logger.WarnContext(ctx, "invalid request body",
			"request_id", request.GetRequestID(ctx),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

// fail logs server-side failures loudly and client errors quietly.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	code := dErrors.CodeInternal
	if de, ok := dErrors.As(err); ok {
		code = de.Code
	}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	default:
		h.logger.InfoContext(ctx, msg,
			"request_id", requestID,
			"error_code", string(code),
		)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, operation string, req *requestHeader, v any) {
	httputil.WriteJSON(w, status, newEnvelope(operation, req, v, requestcontext.Now(r.Context())))
}
