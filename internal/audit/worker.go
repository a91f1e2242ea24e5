package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agentwallet/internal/platform/metrics"
)

// ErrQueueFull is returned by Queue.Append when the buffer has no room.
var ErrQueueFull = errors.New("audit queue full")

// Queue is a non-blocking Sink that buffers events for a Worker, keeping slow
// sinks such as a broker off the write path.
type Queue struct {
	ch chan Event
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1024
	}
	return &Queue{ch: make(chan Event, size)}
}

func (q *Queue) Append(_ context.Context, event Event) error {
	select {
	case q.ch <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Events is the receive side handed to a Worker.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// DefaultDrainTimeout bounds how long Run keeps flushing buffered events
// after its context is cancelled.
const DefaultDrainTimeout = 5 * time.Second

// Worker drains an inbox into a sink until ctx is cancelled. Sink failures
// are logged and counted; the worker keeps going.
type Worker struct {
	sink         Sink
	inbox        <-chan Event
	logger       *slog.Logger
	metrics      *metrics.Metrics
	drainTimeout time.Duration
}

type WorkerOption func(*Worker)

// WithWorkerMetrics counts events the sink rejected as dropped.
func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithDrainTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.drainTimeout = d
	}
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{sink: sink, inbox: inbox, logger: logger, drainTimeout: DefaultDrainTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run delivers events until ctx is cancelled, then flushes whatever is still
// buffered and returns ctx.Err(). A closed inbox ends Run with nil.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.drainTimeout)
	defer cancel()

	var flushed, lost int
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				w.logDrain(flushCtx, flushed, lost)
				return
			}
			if flushCtx.Err() != nil {
				w.dropped()
				lost++
				continue
			}
			if !w.deliver(flushCtx, event) {
				lost++
				continue
			}
			flushed++
		default:
			w.logDrain(flushCtx, flushed, lost)
			return
		}
	}
}

func (w *Worker) logDrain(ctx context.Context, flushed, lost int) {
	if w.logger == nil || flushed+lost == 0 {
		return
	}
	w.logger.InfoContext(ctx, "audit queue drained on shutdown", "flushed", flushed, "lost", lost)
}

func (w *Worker) deliver(ctx context.Context, event Event) bool {
	err := w.sink.Append(ctx, event)
	if err == nil {
		return true
	}
	w.dropped()
	if w.logger != nil {
		w.logger.WarnContext(ctx, "audit sink append failed",
			"action", event.Action,
			"record_id", event.RecordID,
			"error", err,
		)
	}
	return false
}

func (w *Worker) dropped() {
	if w.metrics != nil {
		w.metrics.AuditDropped.Inc()
	}
}
