// Package recordstore persists typed records into an open wallet and
// queries them through the wallet's tag index.
//
// The service holds no state between calls: every operation is one call into
// the wallet, which is the only source of truth. Concurrent updates to the
// same record are last-write-wins.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agentwallet/internal/audit"
	"agentwallet/internal/platform/metrics"
	"agentwallet/internal/record"
	"agentwallet/internal/record/search"
	"agentwallet/internal/wallet"
	dErrors "agentwallet/pkg/domain-errors"
	"agentwallet/pkg/platform/sentinel"
	"agentwallet/pkg/requestcontext"
)

// Wallet is the subset of an open wallet handle the service writes through.
// *wallet.Handle satisfies it.
type Wallet interface {
	Put(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error
	Get(ctx context.Context, typeName, id string) (*wallet.Item, error)
	Update(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error
	Delete(ctx context.Context, typeName, id string) error
	Search(ctx context.Context, typeName string, query json.RawMessage, opts wallet.SearchOptions) ([]wallet.Item, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the record store.
type Service struct {
	registry       *record.Registry
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	auditPublisher AuditPublisher
}

type Option func(*Service)

// WithRegistry replaces the default variant registry.
func WithRegistry(r *record.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithAuditPublisher emits a lifecycle event after every successful write.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		registry: record.DefaultRegistry(),
		tracer:   otel.Tracer("agentwallet/recordstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores a new record. An empty ID is replaced with a random UUID.
// CreatedAt is set to the request time; on failure the record's ID and
// timestamps are restored.
func (s *Service) Add(ctx context.Context, w Wallet, r record.Record) (err error) {
	ctx, done := s.observe(ctx, "add", r.TypeName())
	defer func() { done(err) }()

	meta := r.Meta()
	prevID, prevCreated, prevUpdated := meta.ID, meta.CreatedAt, meta.UpdatedAt
	defer func() {
		if err != nil {
			meta.ID, meta.CreatedAt, meta.UpdatedAt = prevID, prevCreated, prevUpdated
		}
	}()

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	tagSpan(ctx, meta.ID)
	now := requestcontext.Now(ctx).UTC()
	meta.CreatedAt = &now
	meta.UpdatedAt = nil

	body, err := record.Marshal(r)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBackendFailure, "failed to encode record")
	}
	if err := w.Put(ctx, r.TypeName(), meta.ID, body, record.DeriveTags(r)); err != nil {
		return translate(err, r.TypeName(), meta.ID)
	}

	s.emit(ctx, w, audit.ActionRecordAdded, r.TypeName(), meta.ID, r.StateTag())
	return nil
}

// Update overwrites a stored record and refreshes UpdatedAt. The stored body
// is not read first; the caller's copy wins.
func (s *Service) Update(ctx context.Context, w Wallet, r record.Record) (err error) {
	ctx, done := s.observe(ctx, "update", r.TypeName())
	defer func() { done(err) }()

	meta := r.Meta()
	if meta.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "record id is required for update")
	}
	tagSpan(ctx, meta.ID)
	prevUpdated := meta.UpdatedAt
	now := requestcontext.Now(ctx).UTC()
	meta.UpdatedAt = &now

	body, err := record.Marshal(r)
	if err != nil {
		meta.UpdatedAt = prevUpdated
		return dErrors.Wrap(err, dErrors.CodeBackendFailure, "failed to encode record")
	}
	if err := w.Update(ctx, r.TypeName(), meta.ID, body, record.DeriveTags(r)); err != nil {
		meta.UpdatedAt = prevUpdated
		return translate(err, r.TypeName(), meta.ID)
	}

	s.emit(ctx, w, audit.ActionRecordUpdated, r.TypeName(), meta.ID, r.StateTag())
	return nil
}

// Load reads one record of typeName. A missing record is (nil, nil).
func (s *Service) Load(ctx context.Context, w Wallet, typeName, id string) (rec record.Record, err error) {
	ctx, done := s.observe(ctx, "get", typeName)
	defer func() { done(err) }()
	tagSpan(ctx, id)

	item, err := w.Get(ctx, typeName, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, typeName, id)
	}
	if item == nil {
		return nil, nil
	}
	return s.decode(typeName, *item)
}

// Find returns the records of typeName matching q, ordered and paged by opts.
// No match is an empty, non-nil slice.
func (s *Service) Find(ctx context.Context, w Wallet, typeName string, q search.Query, opts wallet.SearchOptions) (recs []record.Record, err error) {
	ctx, done := s.observe(ctx, "search", typeName)
	defer func() { done(err) }()

	wql, err := search.Compile(q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBackendFailure, "failed to compile query")
	}
	items, err := w.Search(ctx, typeName, wql, opts)
	if err != nil {
		return nil, translate(err, typeName, "")
	}

	recs = make([]record.Record, 0, len(items))
	for _, item := range items {
		rec, err := s.decode(typeName, item)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Remove deletes a stored record. A missing record is CodeNotFound.
func (s *Service) Remove(ctx context.Context, w Wallet, typeName, id string) (err error) {
	ctx, done := s.observe(ctx, "delete", typeName)
	defer func() { done(err) }()
	tagSpan(ctx, id)

	if err := w.Delete(ctx, typeName, id); err != nil {
		return translate(err, typeName, id)
	}
	s.emit(ctx, w, audit.ActionRecordDeleted, typeName, id, "")
	return nil
}

func (s *Service) decode(typeName string, item wallet.Item) (record.Record, error) {
	rec, err := s.registry.Decode(typeName, item.Value, item.Tags)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTypeMismatch) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBackendFailure, fmt.Sprintf("failed to decode %s %s", typeName, item.ID))
	}
	return rec, nil
}

// emit is best-effort; the write already succeeded. Wallets that expose an
// ID, such as *wallet.Handle, name the event's wallet.
func (s *Service) emit(ctx context.Context, w Wallet, action audit.Action, typeName, id, state string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Action:     action,
		RecordType: typeName,
		RecordID:   id,
		State:      state,
	}
	if named, ok := w.(interface{ ID() string }); ok {
		event.WalletID = named.ID()
	}
	_ = s.auditPublisher.Emit(ctx, event)
}

func (s *Service) observe(ctx context.Context, op, typeName string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "recordstore."+op,
		trace.WithAttributes(attribute.String("record.type", typeName)))
	started := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, typeName, resultLabel(err), started)
		}
	}
}

func tagSpan(ctx context.Context, id string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("record.id", id))
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := dErrors.CodeOf(err); code != "" {
		return string(code)
	}
	return string(dErrors.CodeInternal)
}

func translate(err error, typeName, id string) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, fmt.Sprintf("%s %s already exists", typeName, id))
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("%s %s not found", typeName, id))
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeBackendFailure, "wallet backend unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "wallet operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeBackendFailure, "wallet operation failed")
	}
}
