package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"agentwallet/internal/platform/metrics"
	"agentwallet/pkg/requestcontext"
)

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher fans events out to its sinks. Delivery is best-effort: a sink
// failure is logged and counted, and the remaining sinks still run.
type Publisher struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(sinks []Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sinks:  sinks,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps the event from the request context and hands it to every sink.
// The returned error joins all sink failures.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit event dropped",
				"action", event.Action,
				"record_type", event.RecordType,
				"record_id", event.RecordID,
				"error", err,
			)
			if p.metrics != nil {
				p.metrics.AuditDropped.Inc()
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
