package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"prereg/internal/application/models"
	"prereg/internal/audit"
	dErrors "prereg/pkg/domain-errors"
	"prereg/pkg/requestcontext"
)

// Create registers one application per payload. All payloads of a call share
// one group id and are persisted together or not at all. Results follow the
// input order.
func (s *Service) Create(ctx context.Context, caller models.Caller, payloads []models.DemographicPayload) (_ []models.CreatedApplication, err error) {
	ctx, finish := s.observe(ctx, "create", attribute.Int("batch_size", len(payloads)))
	defer func() { finish(err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one demographic payload is required")
	}
	if len(payloads) > s.maxBatchSize {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("a submission may contain at most %d payloads", s.maxBatchSize))
	}

	normalized := make([]models.DemographicPayload, len(payloads))
	for i, p := range payloads {
		p = p.Clone()
		p.Normalize()
		if err := p.Validate(); err != nil {
			msg := err.Error()
			if de, ok := dErrors.As(err); ok {
				msg = de.Message
			}
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("request[%d]: %s", i, msg))
		}
		normalized[i] = p
	}

	now := requestcontext.Now(ctx)
	groupID := s.ids.NewGroupID()
	apps := make([]*models.Application, len(normalized))
	for i, p := range normalized {
		app, err := models.NewApplication(s.ids.NewPreRegistrationID(), groupID, caller.UserID, p, s.requiredFields, now)
		if err != nil {
			return nil, err
		}
		apps[i] = app
	}

	err = s.inTx(ctx, groupID.String(), func(ctx context.Context, store Store) error {
		return store.InsertBatch(ctx, apps)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCreated(len(apps))
	out := make([]models.CreatedApplication, len(apps))
	for i, app := range apps {
		out[i] = models.CreatedApplication{
			PreRegistrationID: app.PreRegistrationID,
			GroupID:           app.GroupID,
			Status:            app.Status,
			CreatedAt:         app.CreatedAt,
		}
		s.logAudit(ctx, audit.EventApplicationCreated,
			"pre_registration_id", app.PreRegistrationID.String(),
			"group_id", app.GroupID.String(),
			"owner_id", app.OwnerUserID.String(),
			"actor_id", caller.UserID.String(),
			"to_status", app.Status.String(),
		)
	}
	return out, nil
}
