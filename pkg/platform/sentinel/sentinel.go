package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Wallet backends return these
// (optionally wrapped) so the record store can translate them into domain errors.
//
// These represent factual states about stored items, not validation failures:
// - ErrNotFound: item does not exist in the wallet
// - ErrConflict: an item with the same (type, id) already exists
// - ErrUnavailable: backend temporarily unreachable
//
// For coded failures surfaced to callers, use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
