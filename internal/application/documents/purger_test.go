package documents

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "prereg/pkg/domain"
)

func TestRedisQueueReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	q := NewRedisQueue(client, "prereg:documents:purge")
	err := q.Purge(context.Background(), id.PreRegistrationID(uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue document purge")
}

func TestLogPurger(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPurger(slog.New(slog.NewJSONHandler(&buf, nil)))
	preRegID := id.PreRegistrationID(uuid.New())

	require.NoError(t, p.Purge(context.Background(), preRegID))
	assert.Contains(t, buf.String(), preRegID.String())
}

func TestRecordingPurger(t *testing.T) {
	p := &RecordingPurger{}
	first := id.PreRegistrationID(uuid.New())
	require.NoError(t, p.Purge(context.Background(), first))
	assert.Equal(t, []id.PreRegistrationID{first}, p.Purged())

	p.Err = errors.New("document service unavailable")
	require.Error(t, p.Purge(context.Background(), id.PreRegistrationID(uuid.New())))
	assert.Len(t, p.Purged(), 1)
}
