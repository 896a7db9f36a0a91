package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"prereg/internal/application/models"
	"prereg/internal/audit"
	id "prereg/pkg/domain"
	"prereg/pkg/requestcontext"
)

// Delete removes an application together with its document references and
// then asks the document subsystem to purge the stored artifacts. A failed
// purge does not fail the delete; the result carries a warning instead.
func (s *Service) Delete(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID) (_ *models.DeleteResult, err error) {
	ctx, finish := s.observe(ctx, "delete", attribute.String("pre_registration_id", preRegID.String()))
	defer func() { finish(err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}

	var deleted *models.Application
	err = s.inTx(ctx, preRegID.String(), func(ctx context.Context, store Store) error {
		app, err := store.FindByID(ctx, preRegID)
		if err != nil {
			return err
		}
		if err := checkMutationAccess(caller, app); err != nil {
			return err
		}
		if err := app.CanDelete(); err != nil {
			return err
		}
		if err := store.DeleteByID(ctx, preRegID); err != nil {
			return err
		}
		deleted = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &models.DeleteResult{
		PreRegistrationID: preRegID,
		DeletedBy:         caller.UserID,
		DeletedAt:         requestcontext.Now(ctx).UTC(),
	}
	if perr := s.purge(ctx, preRegID); perr != nil {
		s.logger.WarnContext(ctx, "document purge failed after delete",
			"error", perr,
			"pre_registration_id", preRegID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		s.logAudit(ctx, audit.EventDocumentPurgeFailed,
			"pre_registration_id", preRegID.String(),
			"actor_id", caller.UserID.String(),
		)
		result.Warning = models.PartialDeleteWarning()
	}

	s.metrics.RecordDelete(result.Warning != nil)
	s.logAudit(ctx, audit.EventApplicationDeleted,
		"pre_registration_id", preRegID.String(),
		"group_id", deleted.GroupID.String(),
		"owner_id", deleted.OwnerUserID.String(),
		"actor_id", caller.UserID.String(),
		"from_status", deleted.Status.String(),
	)
	return result, nil
}

func (s *Service) purge(ctx context.Context, preRegID id.PreRegistrationID) error {
	if s.purger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.purger.Purge(ctx, preRegID)
}
