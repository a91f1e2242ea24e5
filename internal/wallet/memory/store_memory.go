// Package memory is an in-process wallet backend. Wallets live as long as the
// Provider that created them, which makes it the backend of choice for tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/wql"
	"agentwallet/pkg/platform/sentinel"
)

// Provider keeps every wallet it created in memory.
type Provider struct {
	mu      sync.Mutex
	wallets map[string]*store
}

func NewProvider() *Provider {
	return &Provider{wallets: make(map[string]*store)}
}

func (p *Provider) Create(_ context.Context, cfg wallet.Config, _ wallet.Credentials, metadata []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.wallets[cfg.ID]; ok {
		return wallet.ErrAlreadyExists
	}
	p.wallets[cfg.ID] = &store{
		metadata: append([]byte(nil), metadata...),
		items:    make(map[itemKey]wallet.Item),
	}
	return nil
}

func (p *Provider) Open(_ context.Context, cfg wallet.Config, _ wallet.Credentials) (wallet.Storage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.wallets[cfg.ID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return &Storage{store: s}, nil
}

func (p *Provider) Delete(_ context.Context, cfg wallet.Config, _ wallet.Credentials) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.wallets[cfg.ID]; !ok {
		return wallet.ErrWalletNotFound
	}
	delete(p.wallets, cfg.ID)
	return nil
}

type itemKey struct {
	typeName string
	id       string
}

type store struct {
	mu       sync.RWMutex
	metadata []byte
	items    map[itemKey]wallet.Item
}

// Storage is an open view of an in-memory wallet.
type Storage struct {
	store *store
}

func (s *Storage) Metadata(_ context.Context) ([]byte, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	return append([]byte(nil), s.store.metadata...), nil
}

func (s *Storage) Put(_ context.Context, typeName, id string, value []byte, tags map[string]string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	key := itemKey{typeName: typeName, id: id}
	if _, ok := s.store.items[key]; ok {
		return sentinel.ErrConflict
	}
	s.store.items[key] = newItem(typeName, id, value, tags)
	return nil
}

func (s *Storage) Get(_ context.Context, typeName, id string) (*wallet.Item, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	item, ok := s.store.items[itemKey{typeName: typeName, id: id}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := copyItem(item)
	return &out, nil
}

func (s *Storage) Update(_ context.Context, typeName, id string, value []byte, tags map[string]string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	key := itemKey{typeName: typeName, id: id}
	if _, ok := s.store.items[key]; !ok {
		return sentinel.ErrNotFound
	}
	s.store.items[key] = newItem(typeName, id, value, tags)
	return nil
}

func (s *Storage) Delete(_ context.Context, typeName, id string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	key := itemKey{typeName: typeName, id: id}
	if _, ok := s.store.items[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.store.items, key)
	return nil
}

func (s *Storage) Search(_ context.Context, typeName string, query json.RawMessage, opts wallet.SearchOptions) ([]wallet.Item, error) {
	expr, err := wql.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", typeName, err)
	}

	s.store.mu.RLock()
	candidates := make([]wallet.Item, 0)
	for key, item := range s.store.items {
		if key.typeName == typeName {
			candidates = append(candidates, copyItem(item))
		}
	}
	s.store.mu.RUnlock()

	return wql.Select(candidates, expr, opts), nil
}

// Close is a no-op; the data stays with the Provider until Delete.
func (s *Storage) Close() error {
	return nil
}

func newItem(typeName, id string, value []byte, tags map[string]string) wallet.Item {
	return copyItem(wallet.Item{ID: id, Type: typeName, Value: value, Tags: tags})
}

func copyItem(item wallet.Item) wallet.Item {
	tags := maps.Clone(item.Tags)
	if tags == nil {
		tags = map[string]string{}
	}
	return wallet.Item{
		ID:    item.ID,
		Type:  item.Type,
		Value: append([]byte(nil), item.Value...),
		Tags:  tags,
	}
}
