package store

import (
	"context"
	"sync"
	"time"

	"prereg/internal/application/models"
	id "prereg/pkg/domain"
	"prereg/pkg/platform/sentinel"
)

// InMemory is a process-local application store. Records are cloned on the
// way in and on the way out so callers never share memory with the store.
//
// Per-id serialization of read-check-write sequences is the job of the
// transaction runner; InMemory itself only guarantees that each call is
// atomic.
type InMemory struct {
	mu   sync.RWMutex
	apps map[id.PreRegistrationID]*models.Application
}

// NewInMemory constructs an empty store.
func NewInMemory() *InMemory {
	return &InMemory{apps: make(map[id.PreRegistrationID]*models.Application)}
}

// InsertBatch stores every application or none of them.
func (s *InMemory) InsertBatch(_ context.Context, apps []*models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[id.PreRegistrationID]struct{}, len(apps))
	for _, app := range apps {
		if _, exists := s.apps[app.PreRegistrationID]; exists {
			return sentinel.ErrConflict
		}
		if _, dup := seen[app.PreRegistrationID]; dup {
			return sentinel.ErrConflict
		}
		seen[app.PreRegistrationID] = struct{}{}
	}
	for _, app := range apps {
		s.apps[app.PreRegistrationID] = app.Clone()
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, preRegID id.PreRegistrationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[preRegID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *InMemory) ListByOwner(_ context.Context, owner id.UserID) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Application
	for _, app := range s.apps {
		if app.OwnerUserID == owner {
			out = append(out, app.Clone())
		}
	}
	return out, nil
}

// UpdatePayload persists the payload, status and UpdatedAt of app.
func (s *InMemory) UpdatePayload(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.apps[app.PreRegistrationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := current.Clone()
	next.Payload = app.Payload.Clone()
	next.Status = app.Status
	next.UpdatedAt = app.UpdatedAt
	s.apps[app.PreRegistrationID] = next
	return nil
}

func (s *InMemory) UpdateStatus(_ context.Context, preRegID id.PreRegistrationID, status models.Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.apps[preRegID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := current.Clone()
	next.Status = status
	next.UpdatedAt = updatedAt
	s.apps[preRegID] = next
	return nil
}

// AttachDocument upserts a document reference by document id and moves
// UpdatedAt to doc.AttachedAt.
func (s *InMemory) AttachDocument(_ context.Context, preRegID id.PreRegistrationID, doc models.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.apps[preRegID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := current.Clone()
	replaced := false
	for i := range next.Documents {
		if next.Documents[i].DocumentID == doc.DocumentID {
			next.Documents[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		next.Documents = append(next.Documents, doc)
	}
	next.UpdatedAt = doc.AttachedAt
	s.apps[preRegID] = next
	return nil
}

// DeleteByID removes the record together with its document references.
func (s *InMemory) DeleteByID(_ context.Context, preRegID id.PreRegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[preRegID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.apps, preRegID)
	return nil
}

// FetchUpdatedAt returns a stamp for each known id. Unknown ids are absent.
func (s *InMemory) FetchUpdatedAt(_ context.Context, ids []id.PreRegistrationID) (map[id.PreRegistrationID]models.UpdateStamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[id.PreRegistrationID]models.UpdateStamp, len(ids))
	for _, preRegID := range ids {
		if app, ok := s.apps[preRegID]; ok {
			out[preRegID] = models.UpdateStamp{OwnerUserID: app.OwnerUserID, UpdatedAt: app.UpdatedAt}
		}
	}
	return out, nil
}
