package wallet

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

// Handle is an open wallet. It is safe for concurrent use; each primitive is
// a single call into the backend with no locking at this layer.
type Handle struct {
	id      string
	key     string
	storage Storage
	meta    []byte
	refs    int
	closed  atomic.Bool
}

// ID returns the wallet id from its config.
func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) backend() (Storage, error) {
	if h == nil || h.closed.Load() {
		return nil, ErrNotOpen
	}
	return h.storage, nil
}

func (h *Handle) Put(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.Put(ctx, typeName, id, value, tags)
}

func (h *Handle) Get(ctx context.Context, typeName, id string) (*Item, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, typeName, id)
}

func (h *Handle) Update(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.Update(ctx, typeName, id, value, tags)
}

func (h *Handle) Delete(ctx context.Context, typeName, id string) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	return s.Delete(ctx, typeName, id)
}

func (h *Handle) Search(ctx context.Context, typeName string, query json.RawMessage, opts SearchOptions) ([]Item, error) {
	s, err := h.backend()
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, typeName, query, opts)
}

// Ping checks that the wallet is open and its backend answers.
func (h *Handle) Ping(ctx context.Context) error {
	s, err := h.backend()
	if err != nil {
		return err
	}
	_, err = s.Metadata(ctx)
	return err
}
