package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"prereg/internal/application/models"
	"prereg/internal/audit"
	id "prereg/pkg/domain"
	dErrors "prereg/pkg/domain-errors"
	"prereg/pkg/requestcontext"
)

// Update replaces the demographic payload of an application and re-resolves
// its completeness status through the machine.
func (s *Service) Update(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID, payload models.DemographicPayload) (_ *models.Application, err error) {
	ctx, finish := s.observe(ctx, "update", attribute.String("pre_registration_id", preRegID.String()))
	defer func() { finish(err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	payload = payload.Clone()
	payload.Normalize()
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var (
		updated *models.Application
		from    models.Status
	)
	err = s.inTx(ctx, preRegID.String(), func(ctx context.Context, store Store) error {
		app, err := store.FindByID(ctx, preRegID)
		if err != nil {
			return err
		}
		if err := checkMutationAccess(caller, app); err != nil {
			return err
		}
		if err := app.CanModify(); err != nil {
			return err
		}
		next, err := s.resolveCompleteness(app.Status, payload, caller.Roles)
		if err != nil {
			return err
		}
		from = app.Status
		app.ApplyPayload(payload, next, requestcontext.Now(ctx))
		if err := store.UpdatePayload(ctx, app); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	auditAttrs := []any{
		"pre_registration_id", updated.PreRegistrationID.String(),
		"group_id", updated.GroupID.String(),
		"owner_id", updated.OwnerUserID.String(),
		"actor_id", caller.UserID.String(),
		"from_status", from.String(),
		"to_status", updated.Status.String(),
	}
	if from != updated.Status {
		s.metrics.RecordTransition(from.String(), updated.Status.String())
		auditAttrs = append(auditAttrs, "trigger", s.machine.Trigger(from, updated.Status))
	}
	s.logAudit(ctx, audit.EventApplicationUpdated, auditAttrs...)
	return updated, nil
}

// resolveCompleteness picks the status a payload edit leads to. A complete
// payload leaves INCOMPLETE when the machine allows it; an incomplete one
// must be able to move to INCOMPLETE or the edit is rejected.
func (s *Service) resolveCompleteness(current models.Status, payload models.DemographicPayload, roles models.RoleSet) (models.Status, error) {
	missing := payload.MissingFields(s.requiredFields)
	if len(missing) == 0 {
		if current == models.StatusIncomplete && s.machine.Allows(current, models.StatusPendingAppointment) {
			return s.machine.Transition(current, models.StatusPendingAppointment, roles)
		}
		return current, nil
	}
	if current == models.StatusIncomplete {
		return current, nil
	}
	if !s.machine.Allows(current, models.StatusIncomplete) {
		return current, dErrors.New(dErrors.CodeValidation, fmt.Sprintf(
			"application in status %s requires identity fields: %s", current, strings.Join(missing, ", ")))
	}
	return s.machine.Transition(current, models.StatusIncomplete, roles)
}

// ChangeStatus moves an application along one edge of the status machine.
func (s *Service) ChangeStatus(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID, statusCode string) (_ *models.StatusChange, err error) {
	ctx, finish := s.observe(ctx, "change_status",
		attribute.String("pre_registration_id", preRegID.String()),
		attribute.String("requested_status", statusCode),
	)
	defer func() { finish(err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	requested, err := models.ParseStatus(statusCode)
	if err != nil {
		return nil, err
	}

	var (
		change  *models.StatusChange
		groupID id.GroupID
		ownerID id.UserID
	)
	err = s.inTx(ctx, preRegID.String(), func(ctx context.Context, store Store) error {
		app, err := store.FindByID(ctx, preRegID)
		if err != nil {
			return err
		}
		if err := checkMutationAccess(caller, app); err != nil {
			return err
		}
		next, err := s.machine.Transition(app.Status, requested, caller.Roles)
		if err != nil {
			return err
		}
		if next == models.StatusPendingAppointment {
			if missing := app.Payload.MissingFields(s.requiredFields); len(missing) > 0 {
				return dErrors.New(dErrors.CodeValidation,
					"application is missing identity fields: "+strings.Join(missing, ", "))
			}
		}
		from := app.Status
		app.ApplyStatus(next, requestcontext.Now(ctx))
		if err := store.UpdateStatus(ctx, preRegID, next, app.UpdatedAt); err != nil {
			return err
		}
		change = &models.StatusChange{
			PreRegistrationID: preRegID,
			From:              from,
			To:                next,
			Trigger:           s.machine.Trigger(from, next),
			UpdatedAt:         app.UpdatedAt,
		}
		groupID, ownerID = app.GroupID, app.OwnerUserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(change.From.String(), change.To.String())
	s.logAudit(ctx, audit.EventStatusChanged,
		"pre_registration_id", preRegID.String(),
		"group_id", groupID.String(),
		"owner_id", ownerID.String(),
		"actor_id", caller.UserID.String(),
		"from_status", change.From.String(),
		"to_status", change.To.String(),
		"trigger", change.Trigger,
	)
	return change, nil
}

// AttachDocument records a document reference reported by the document
// subsystem. Re-attaching the same document id replaces the earlier entry.
func (s *Service) AttachDocument(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID, doc models.DocumentRef) (_ *models.Application, err error) {
	ctx, finish := s.observe(ctx, "attach_document", attribute.String("pre_registration_id", preRegID.String()))
	defer func() { finish(err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	var updated *models.Application
	err = s.inTx(ctx, preRegID.String(), func(ctx context.Context, store Store) error {
		app, err := store.FindByID(ctx, preRegID)
		if err != nil {
			return err
		}
		if err := checkMutationAccess(caller, app); err != nil {
			return err
		}
		if err := app.CanModify(); err != nil {
			return err
		}
		stored := app.ApplyDocument(doc, requestcontext.Now(ctx))
		if err := store.AttachDocument(ctx, preRegID, stored); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventDocumentAttached,
		"pre_registration_id", updated.PreRegistrationID.String(),
		"group_id", updated.GroupID.String(),
		"owner_id", updated.OwnerUserID.String(),
		"actor_id", caller.UserID.String(),
		"document_id", doc.DocumentID,
	)
	return updated, nil
}

func checkMutationAccess(caller models.Caller, app *models.Application) error {
	if !caller.CanAccess(app) {
		return dErrors.New(dErrors.CodeForbidden, "caller may not modify this application")
	}
	return nil
}
