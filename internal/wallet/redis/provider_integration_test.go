//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/wallettest"
	"agentwallet/pkg/platform/sentinel"
	"agentwallet/pkg/testutil/containers"
)

func TestRedisStorageSuite(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	p := NewProvider(WithClient(rc.Client))

	suite.Run(t, &wallettest.StorageSuite{
		NewStorage: func(t *testing.T) wallet.Storage {
			ctx := context.Background()
			cfg := wallet.Config{ID: "it-" + uuid.NewString(), StorageType: wallet.StorageRedis}
			creds := wallet.Credentials{Key: "k"}
			require.NoError(t, p.Create(ctx, cfg, creds, []byte("{}")))
			s, err := p.Open(ctx, cfg, creds)
			require.NoError(t, err)
			return s
		},
	})
}

func TestRedisProviderLifecycle(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	p := NewProvider()
	cfg := wallet.Config{
		ID:            "agent-1",
		StorageType:   wallet.StorageRedis,
		StorageConfig: wallet.StorageConfig{URL: rc.Addr},
	}
	creds := wallet.Credentials{Key: "k"}

	_, err := p.Open(ctx, cfg, creds)
	require.ErrorIs(t, err, wallet.ErrWalletNotFound)

	require.NoError(t, p.Create(ctx, cfg, creds, []byte(`{"version":1}`)))
	require.ErrorIs(t, p.Create(ctx, cfg, creds, nil), wallet.ErrAlreadyExists)

	s, err := p.Open(ctx, cfg, creds)
	require.NoError(t, err)
	meta, err := s.Metadata(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1}`, string(meta))
	require.NoError(t, s.Put(ctx, "t", "1", []byte("x"), map[string]string{"k": "v"}))
	require.NoError(t, s.Close())

	s, err = p.Open(ctx, cfg, creds)
	require.NoError(t, err)
	item, err := s.Get(ctx, "t", "1")
	require.NoError(t, err)
	require.Equal(t, "v", item.Tags["k"])
	require.NoError(t, s.Close())

	require.NoError(t, p.Delete(ctx, cfg, creds))
	require.ErrorIs(t, p.Delete(ctx, cfg, creds), wallet.ErrWalletNotFound)

	keys, err := rc.Client.Keys(ctx, "*agent-1*").Result()
	require.NoError(t, err)
	require.Empty(t, keys)
	require.NoError(t, rc.FlushAll(ctx))
}

func TestRedisSharedClientSurvivesClose(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	p := NewProvider(WithClient(rc.Client))
	cfg := wallet.Config{ID: "shared", StorageType: wallet.StorageRedis}
	creds := wallet.Credentials{Key: "k"}

	require.NoError(t, p.Create(ctx, cfg, creds, []byte("{}")))
	s, err := p.Open(ctx, cfg, creds)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, rc.Client.Ping(ctx).Err())
	s, err = p.Open(ctx, cfg, creds)
	require.NoError(t, err)
	_, err = s.Get(ctx, "t", "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, s.Close())
}
