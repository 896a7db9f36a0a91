package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type recordingProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (p *recordingProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestKafkaPublisher(t *testing.T) {
	t.Run("produces a keyed JSON record", func(t *testing.T) {
		producer := &recordingProducer{}
		pub := NewKafkaPublisher(producer, "prereg.audit")

		err := pub.Emit(context.Background(), Event{
			Action:            EventStatusChanged,
			PreRegistrationID: "app-1",
			ActorID:           "officer-1",
			From:              "BOOKED",
			To:                "CONSUMED",
		})
		require.NoError(t, err)

		require.Len(t, producer.records, 1)
		rec := producer.records[0]
		assert.Equal(t, "prereg.audit", rec.Topic)
		assert.Equal(t, []byte("app-1"), rec.Key)
		assert.Equal(t, "action", rec.Headers[0].Key)

		var decoded Event
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, EventStatusChanged, decoded.Action)
		assert.Equal(t, "CONSUMED", decoded.To)
		assert.False(t, decoded.Timestamp.IsZero())
	})

	t.Run("surfaces produce failures", func(t *testing.T) {
		producer := &recordingProducer{err: errors.New("broker down")}
		pub := NewKafkaPublisher(producer, "prereg.audit")
		err := pub.Emit(context.Background(), Event{Action: EventApplicationCreated})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	})
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, pub.Emit(context.Background(), Event{Action: EventApplicationDeleted, PreRegistrationID: "app-9"}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit_event", line["log_type"])
	assert.Equal(t, "application_deleted", line["action"])
	assert.Equal(t, "app-9", line["pre_registration_id"])
}

func TestMemoryPublisher(t *testing.T) {
	pub := NewMemoryPublisher()
	_ = pub.Emit(context.Background(), Event{Action: EventApplicationCreated})
	_ = pub.Emit(context.Background(), Event{Action: EventApplicationDeleted})
	_ = pub.Emit(context.Background(), Event{Action: EventApplicationCreated})

	assert.Len(t, pub.Events(), 3)
	assert.Len(t, pub.ByAction(EventApplicationCreated), 2)
}

type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("sink down") }

func TestAsyncPublisher(t *testing.T) {
	t.Run("worker forwards buffered events", func(t *testing.T) {
		sink := NewMemoryPublisher()
		pub, worker := NewAsync(sink, 8, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- worker.Run(ctx) }()

		for i := 0; i < 5; i++ {
			require.NoError(t, pub.Emit(context.Background(), Event{Action: EventApplicationUpdated}))
		}
		require.Eventually(t, func() bool { return len(sink.Events()) == 5 }, time.Second, 5*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
	})

	t.Run("drains the buffer on shutdown", func(t *testing.T) {
		sink := NewMemoryPublisher()
		pub, worker := NewAsync(sink, 8, nil)
		for i := 0; i < 3; i++ {
			require.NoError(t, pub.Emit(context.Background(), Event{Action: EventApplicationCreated}))
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, worker.Run(ctx))
		assert.Len(t, sink.Events(), 3)
	})

	t.Run("full buffer rejects instead of blocking", func(t *testing.T) {
		pub, _ := NewAsync(NewMemoryPublisher(), 1, nil)
		require.NoError(t, pub.Emit(context.Background(), Event{}))
		assert.ErrorIs(t, pub.Emit(context.Background(), Event{}), ErrBufferFull)
	})

	t.Run("sink failures are logged, not fatal", func(t *testing.T) {
		var buf bytes.Buffer
		pub, worker := NewAsync(failingSink{}, 4, slog.New(slog.NewJSONHandler(&buf, nil)))
		require.NoError(t, pub.Emit(context.Background(), Event{Action: EventApplicationCreated}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, worker.Run(ctx))
		assert.Contains(t, buf.String(), "failed to forward audit event")
	})
}
