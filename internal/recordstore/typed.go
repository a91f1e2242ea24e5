package recordstore

import (
	"context"
	"fmt"

	"agentwallet/internal/record"
	"agentwallet/internal/record/search"
	"agentwallet/internal/wallet"
	dErrors "agentwallet/pkg/domain-errors"
)

// Get loads the record of variant T with id. A missing record is (nil, nil).
//
//	conn, err := recordstore.Get[record.ConnectionRecord](ctx, svc, h, id)
func Get[T any, PT record.Ptr[T]](ctx context.Context, s *Service, w Wallet, id string) (PT, error) {
	rec, err := s.Load(ctx, w, record.TypeNameOf[T, PT](), id)
	if err != nil || rec == nil {
		return nil, err
	}
	return as[T, PT](rec)
}

// Search returns the records of variant T matching q.
func Search[T any, PT record.Ptr[T]](ctx context.Context, s *Service, w Wallet, q search.Query, opts wallet.SearchOptions) ([]PT, error) {
	recs, err := s.Find(ctx, w, record.TypeNameOf[T, PT](), q, opts)
	if err != nil {
		return nil, err
	}
	out := make([]PT, 0, len(recs))
	for _, rec := range recs {
		typed, err := as[T, PT](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, typed)
	}
	return out, nil
}

// Delete removes the record of variant T with id.
func Delete[T any, PT record.Ptr[T]](ctx context.Context, s *Service, w Wallet, id string) error {
	return s.Remove(ctx, w, record.TypeNameOf[T, PT](), id)
}

func as[T any, PT record.Ptr[T]](rec record.Record) (PT, error) {
	typed, ok := rec.(PT)
	if !ok {
		return nil, fmt.Errorf("%w: registry built %T for %s", record.ErrTypeMismatch, rec, record.TypeNameOf[T, PT]())
	}
	return typed, nil
}

// IsNotFound reports an update or delete of a missing record.
func IsNotFound(err error) bool { return dErrors.Is(err, dErrors.CodeNotFound) }

// IsDuplicateID reports an add of an id already stored for the type.
func IsDuplicateID(err error) bool { return dErrors.Is(err, dErrors.CodeConflict) }

// IsTypeMismatch reports a stored body whose type differs from the one requested.
func IsTypeMismatch(err error) bool { return dErrors.Is(err, dErrors.CodeTypeMismatch) }

// IsBackendFailure reports a wallet, codec or query failure.
func IsBackendFailure(err error) bool {
	return dErrors.Is(err, dErrors.CodeBackendFailure) || dErrors.Is(err, dErrors.CodeTimeout)
}
