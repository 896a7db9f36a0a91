package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const drainTimeout = 5 * time.Second

// ErrBufferFull is returned by AsyncPublisher when the worker has fallen
// behind. The event is dropped; the service log line still records it.
var ErrBufferFull = errors.New("audit buffer full")

// Sink receives events drained by the worker.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// AsyncPublisher hands events to a Worker through a bounded channel so
// request latency does not depend on the downstream sink.
type AsyncPublisher struct {
	inbox chan Event
}

// NewAsync returns a publisher and the worker that drains it into sink.
func NewAsync(sink Sink, buffer int, logger *slog.Logger) (*AsyncPublisher, *Worker) {
	inbox := make(chan Event, buffer)
	return &AsyncPublisher{inbox: inbox}, &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (p *AsyncPublisher) Emit(_ context.Context, event Event) error {
	stamp(&event)
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Worker consumes audit events from a channel and forwards them to a sink.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

// Run forwards events until ctx is canceled, then flushes whatever is
// already buffered. Sink failures are logged and do not stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event := <-w.inbox:
			w.forward(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	flushCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.forward(flushCtx, event)
		default:
			return
		}
	}
}

func (w *Worker) forward(ctx context.Context, event Event) {
	if err := w.sink.Emit(ctx, event); err != nil && w.logger != nil {
		w.logger.ErrorContext(ctx, "failed to forward audit event",
			"error", err,
			"action", string(event.Action),
			"pre_registration_id", event.PreRegistrationID,
		)
	}
}
