// Package redis stores wallets in Redis. Each record type is one hash keyed by
// record id whose values hold the body and tags together, so every primitive
// touches exactly one hash field and stays atomic.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/wql"
	"agentwallet/pkg/platform/sentinel"
)

// putScript adds a field only if absent and remembers the type for Delete.
var putScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 1 then
	redis.call('SADD', KEYS[2], ARGV[3])
	return 1
end
return 0
`)

var updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

type keys struct {
	walletID string
}

func (k keys) meta() string {
	return "wallet:{" + k.walletID + "}:meta"
}

func (k keys) types() string {
	return "wallet:{" + k.walletID + "}:types"
}

func (k keys) items(typeName string) string {
	return "wallet:{" + k.walletID + "}:items:" + typeName
}

type envelope struct {
	Value []byte            `json:"value"`
	Tags  map[string]string `json:"tags"`
}

// Storage is an open Redis-backed wallet.
type Storage struct {
	client *redis.Client
	keys   keys
	owned  bool
}

func (s *Storage) Metadata(ctx context.Context) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.keys.meta()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, wallet.ErrWalletNotFound
	}
	if err != nil {
		return nil, commandError("read wallet metadata", err)
	}
	return raw, nil
}

func (s *Storage) Put(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error {
	body, err := json.Marshal(envelope{Value: value, Tags: tags})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", typeName, id, err)
	}
	added, err := putScript.Run(ctx, s.client,
		[]string{s.keys.items(typeName), s.keys.types()}, id, body, typeName).Int()
	if err != nil {
		return commandError(fmt.Sprintf("put %s/%s", typeName, id), err)
	}
	if added == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, typeName, id string) (*wallet.Item, error) {
	raw, err := s.client.HGet(ctx, s.keys.items(typeName), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, commandError(fmt.Sprintf("get %s/%s", typeName, id), err)
	}
	item, err := decodeItem(typeName, id, raw)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Storage) Update(ctx context.Context, typeName, id string, value []byte, tags map[string]string) error {
	body, err := json.Marshal(envelope{Value: value, Tags: tags})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", typeName, id, err)
	}
	updated, err := updateScript.Run(ctx, s.client, []string{s.keys.items(typeName)}, id, body).Int()
	if err != nil {
		return commandError(fmt.Sprintf("update %s/%s", typeName, id), err)
	}
	if updated == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, typeName, id string) error {
	removed, err := s.client.HDel(ctx, s.keys.items(typeName), id).Result()
	if err != nil {
		return commandError(fmt.Sprintf("delete %s/%s", typeName, id), err)
	}
	if removed == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Search loads every record of typeName and filters in process.
func (s *Storage) Search(ctx context.Context, typeName string, query json.RawMessage, opts wallet.SearchOptions) ([]wallet.Item, error) {
	expr, err := wql.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", typeName, err)
	}
	all, err := s.client.HGetAll(ctx, s.keys.items(typeName)).Result()
	if err != nil {
		return nil, commandError("search "+typeName, err)
	}
	items := make([]wallet.Item, 0, len(all))
	for id, raw := range all {
		item, err := decodeItem(typeName, id, []byte(raw))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return wql.Select(items, expr, opts), nil
}

// Close closes the client when the Storage created it.
func (s *Storage) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func decodeItem(typeName, id string, raw []byte) (wallet.Item, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return wallet.Item{}, fmt.Errorf("decode %s/%s: %w", typeName, id, err)
	}
	if env.Tags == nil {
		env.Tags = map[string]string{}
	}
	return wallet.Item{ID: id, Type: typeName, Value: env.Value, Tags: env.Tags}, nil
}

// commandError marks connection-level failures as sentinel.ErrUnavailable.
func commandError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
