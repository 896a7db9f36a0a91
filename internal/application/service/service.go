package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prereg/internal/application/idgen"
	"prereg/internal/application/metrics"
	"prereg/internal/application/models"
	"prereg/internal/audit"
	"prereg/pkg/attrs"
	id "prereg/pkg/domain"
	dErrors "prereg/pkg/domain-errors"
	"prereg/pkg/platform/sentinel"
	platformstrings "prereg/pkg/platform/strings"
	"prereg/pkg/requestcontext"
)

// Store is the persistence contract of the lifecycle service. Every method
// is atomic on its own; read-check-write sequences run inside StoreTx.
type Store interface {
	InsertBatch(ctx context.Context, apps []*models.Application) error
	FindByID(ctx context.Context, preRegID id.PreRegistrationID) (*models.Application, error)
	ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Application, error)
	UpdatePayload(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, preRegID id.PreRegistrationID, status models.Status, updatedAt time.Time) error
	AttachDocument(ctx context.Context, preRegID id.PreRegistrationID, doc models.DocumentRef) error
	DeleteByID(ctx context.Context, preRegID id.PreRegistrationID) error
	FetchUpdatedAt(ctx context.Context, ids []id.PreRegistrationID) (map[id.PreRegistrationID]models.UpdateStamp, error)
}

// StoreTx serializes work on one key. fn must use the ctx and store it is
// handed so its statements join the transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context, store Store) error) error
}

// Purger asks the document service to drop everything stored for an
// application.
type Purger interface {
	Purge(ctx context.Context, preRegID id.PreRegistrationID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultStoreTimeout = 5 * time.Second
	defaultMaxBatchSize = 10
	maxSyncIDs          = 500
)

// DefaultRequiredFields are the identity fields an application needs before
// an appointment can be booked.
var DefaultRequiredFields = []string{"fullName", "dateOfBirth", "gender", "residenceStatus"}

// Service orchestrates the application lifecycle.
type Service struct {
	store          Store
	tx             StoreTx
	ids            idgen.Generator
	machine        *models.Machine
	requiredFields []string
	purger         Purger
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	timeout        time.Duration
	maxBatchSize   int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func WithPurger(p Purger) Option {
	return func(s *Service) {
		s.purger = p
	}
}

func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithMachine replaces the default edge table.
func WithMachine(m *models.Machine) Option {
	return func(s *Service) {
		s.machine = m
	}
}

// WithRequiredFields sets the identity fields that make a payload complete.
func WithRequiredFields(fields []string) Option {
	return func(s *Service) {
		s.requiredFields = platformstrings.DedupeAndTrim(fields)
	}
}

// WithTimeout bounds every store interaction, lock waits included.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// New constructs a Service.
func New(store Store, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		store:          store,
		tx:             tx,
		ids:            idgen.UUID{},
		machine:        models.DefaultMachine(),
		requiredFields: DefaultRequiredFields,
		timeout:        defaultStoreTimeout,
		maxBatchSize:   defaultMaxBatchSize,
		tracer:         otel.Tracer("prereg/internal/application"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// authorize is checked before any store access.
func authorize(caller models.Caller) error {
	if caller.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if !caller.CanOperate() {
		return dErrors.New(dErrors.CodeForbidden, "caller has no pre-registration role")
	}
	return nil
}

// inTx runs fn under the store timeout and the per-id lock.
func (s *Service) inTx(ctx context.Context, key string, fn func(ctx context.Context, store Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.translateStoreError(s.tx.RunInTx(ctx, key, fn), "application store failure")
}

// read runs a lock-free read under the store timeout.
func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.translateStoreError(fn(ctx), "application store failure")
}

// translateStoreError maps sentinel and context errors to domain errors.
// Domain errors pass through untouched.
func (s *Service) translateStoreError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			s.metrics.IncrementStoreTimeout()
		}
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "application already exists")
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, sentinel.ErrUnavailable):
		s.metrics.IncrementStoreTimeout()
		return dErrors.Wrap(err, dErrors.CodeTimeout, "application store did not respond in time")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// observe opens a span for operation and returns the function that closes
// it and records the duration metric.
func (s *Service) observe(ctx context.Context, operation string, kv ...attribute.KeyValue) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "application."+operation, trace.WithAttributes(kv...))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeInternal)
			if de, ok := dErrors.As(err); ok {
				outcome = string(de.Code)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		s.metrics.ObserveOperation(operation, outcome, start)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.EventType, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)

	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:            event,
		PreRegistrationID: attrs.ExtractString(attributes, "pre_registration_id"),
		GroupID:           attrs.ExtractString(attributes, "group_id"),
		OwnerID:           attrs.ExtractString(attributes, "owner_id"),
		ActorID:           attrs.ExtractString(attributes, "actor_id"),
		From:              attrs.ExtractString(attributes, "from_status"),
		To:                attrs.ExtractString(attributes, "to_status"),
		Trigger:           attrs.ExtractString(attributes, "trigger"),
		RequestID:         requestID,
		Timestamp:         requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"error", err,
			"event", string(event),
			"request_id", requestID,
		)
	}
}
