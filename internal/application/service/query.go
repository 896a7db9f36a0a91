package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"prereg/internal/application/models"
	id "prereg/pkg/domain"
	dErrors "prereg/pkg/domain-errors"
)

// Get returns an application visible to the caller. Applications the caller
// may not see are reported as not found.
func (s *Service) Get(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID) (_ *models.Application, err error) {
	ctx, finish := s.observe(ctx, "get", attribute.String("pre_registration_id", preRegID.String()))
	defer func() { finish(err) }()

	return s.findVisible(ctx, caller, preRegID)
}

func (s *Service) GetStatus(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID) (_ models.Status, err error) {
	ctx, finish := s.observe(ctx, "get_status", attribute.String("pre_registration_id", preRegID.String()))
	defer func() { finish(err) }()

	app, err := s.findVisible(ctx, caller, preRegID)
	if err != nil {
		return "", err
	}
	return app.Status, nil
}

func (s *Service) findVisible(ctx context.Context, caller models.Caller, preRegID id.PreRegistrationID) (*models.Application, error) {
	if err := authorize(caller); err != nil {
		return nil, err
	}
	var app *models.Application
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.store.FindByID(ctx, preRegID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(app) {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return app, nil
}

// ListByOwner summarizes the caller's own applications, most recently
// updated first.
func (s *Service) ListByOwner(ctx context.Context, caller models.Caller) (_ []models.Summary, err error) {
	ctx, finish := s.observe(ctx, "list_by_owner")
	defer func() { finish(err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	var apps []*models.Application
	err = s.read(ctx, func(ctx context.Context) error {
		var err error
		apps, err = s.store.ListByOwner(ctx, caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].UpdatedAt.Equal(apps[j].UpdatedAt) {
			return apps[i].UpdatedAt.After(apps[j].UpdatedAt)
		}
		return apps[i].PreRegistrationID.String() < apps[j].PreRegistrationID.String()
	})
	out := make([]models.Summary, len(apps))
	for i, app := range apps {
		out[i] = app.Summary()
	}
	return out, nil
}

// BatchUpdatedAt reports the last modification time of each requested
// application. Malformed, unknown and invisible ids are left out of the
// result rather than failing the call.
func (s *Service) BatchUpdatedAt(ctx context.Context, caller models.Caller, rawIDs []string) (_ map[id.PreRegistrationID]time.Time, err error) {
	ctx, finish := s.observe(ctx, "batch_updated_at", attribute.Int("requested", len(rawIDs)))
	defer func() { finish(err) }()

	if err := authorize(caller); err != nil {
		return nil, err
	}
	if len(rawIDs) > maxSyncIDs {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("at most %d pre-registration ids may be synchronized at once", maxSyncIDs))
	}

	seen := make(map[id.PreRegistrationID]struct{}, len(rawIDs))
	ids := make([]id.PreRegistrationID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		preRegID, err := id.ParsePreRegistrationID(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if _, dup := seen[preRegID]; dup {
			continue
		}
		seen[preRegID] = struct{}{}
		ids = append(ids, preRegID)
	}

	result := make(map[id.PreRegistrationID]time.Time, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var stamps map[id.PreRegistrationID]models.UpdateStamp
	err = s.read(ctx, func(ctx context.Context) error {
		var err error
		stamps, err = s.store.FetchUpdatedAt(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	privileged := caller.IsPrivileged()
	for preRegID, stamp := range stamps {
		if !privileged && stamp.OwnerUserID != caller.UserID {
			continue
		}
		result[preRegID] = stamp.UpdatedAt
	}
	return result, nil
}
