// Package wallet manages encrypted per-agent record stores: their lifecycle
// (create, open, close, delete) and the single-record primitives that the
// record store builds on.
//
// Backends implement Provider and Storage. Every Storage primitive is atomic
// for one record; nothing spans records.
package wallet

import (
	"context"
	"encoding/json"
)

// DefaultSearchLimit bounds a search when the caller passes no limit.
const DefaultSearchLimit = 100

// Item is one stored record as the wallet sees it: an opaque body plus its
// tag index.
type Item struct {
	ID    string
	Type  string
	Value []byte
	Tags  map[string]string
}

// SortField orders search results by a tag value.
type SortField struct {
	Tag        string `json:"tag"`
	Descending bool   `json:"desc,omitempty"`
}

// SearchOptions controls ordering and paging of a search.
type SearchOptions struct {
	Sort  []SortField
	Skip  int
	Limit int
}

// EffectiveLimit returns Limit, or DefaultSearchLimit when unset.
func (o SearchOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultSearchLimit
	}
	return o.Limit
}

// Storage is an open wallet backend.
//
// Put returns sentinel.ErrConflict when (typeName, id) exists. Get, Update and
// Delete return sentinel.ErrNotFound when it does not. Search receives a WQL
// document and returns fully materialized results.
type Storage interface {
	Metadata(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error
	Get(ctx context.Context, typeName, id string) (*Item, error)
	Update(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error
	Delete(ctx context.Context, typeName, id string) error
	Search(ctx context.Context, typeName string, query json.RawMessage, opts SearchOptions) ([]Item, error)
	Close() error
}

// Provider creates, opens and deletes wallets of one storage type.
//
// Create returns ErrAlreadyExists when the wallet exists; Open and Delete
// return ErrWalletNotFound when it does not.
type Provider interface {
	Create(ctx context.Context, cfg Config, creds Credentials, metadata []byte) error
	Open(ctx context.Context, cfg Config, creds Credentials) (Storage, error)
	Delete(ctx context.Context, cfg Config, creds Credentials) error
}
