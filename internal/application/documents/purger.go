// Package documents hands purge instructions to the document service. The
// lifecycle service only references documents by id; the bytes live
// elsewhere.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	id "prereg/pkg/domain"
)

// PurgeRequest is the message the document service consumes.
type PurgeRequest struct {
	PreRegistrationID string    `json:"preRegistrationId"`
	RequestedAt       time.Time `json:"requestedAt"`
}

// RedisQueue pushes purge requests onto a Redis list the document service
// pops from (BRPOP), giving FIFO delivery.
type RedisQueue struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

// NewRedisQueue builds a queue writing to the list at key.
func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key, now: time.Now}
}

func (q *RedisQueue) Purge(ctx context.Context, preRegID id.PreRegistrationID) error {
	payload, err := json.Marshal(PurgeRequest{
		PreRegistrationID: preRegID.String(),
		RequestedAt:       q.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal purge request: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue document purge: %w", err)
	}
	return nil
}

// LogPurger only logs purge requests. Used when no queue is configured.
type LogPurger struct {
	logger *slog.Logger
}

func NewLogPurger(logger *slog.Logger) *LogPurger {
	return &LogPurger{logger: logger}
}

func (p *LogPurger) Purge(ctx context.Context, preRegID id.PreRegistrationID) error {
	p.logger.InfoContext(ctx, "document purge requested",
		"pre_registration_id", preRegID.String(),
	)
	return nil
}

// RecordingPurger remembers purge requests and fails with Err when set.
type RecordingPurger struct {
	mu     sync.Mutex
	purged []id.PreRegistrationID
	Err    error
}

func (p *RecordingPurger) Purge(_ context.Context, preRegID id.PreRegistrationID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.purged = append(p.purged, preRegID)
	return nil
}

// Purged returns the ids purged so far.
func (p *RecordingPurger) Purged() []id.PreRegistrationID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]id.PreRegistrationID(nil), p.purged...)
}
