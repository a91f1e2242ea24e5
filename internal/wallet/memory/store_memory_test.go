package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/wallettest"
)

func TestMemoryStorageSuite(t *testing.T) {
	suite.Run(t, &wallettest.StorageSuite{
		NewStorage: func(t *testing.T) wallet.Storage {
			ctx := context.Background()
			p := NewProvider()
			cfg := wallet.Config{ID: "test", StorageType: wallet.StorageMemory}
			require.NoError(t, p.Create(ctx, cfg, wallet.Credentials{Key: "k"}, []byte("{}")))
			s, err := p.Open(ctx, cfg, wallet.Credentials{Key: "k"})
			require.NoError(t, err)
			return s
		},
	})
}

func TestProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewProvider()
	cfg := wallet.Config{ID: "w1", StorageType: wallet.StorageMemory}
	creds := wallet.Credentials{Key: "k"}

	t.Run("open before create is not found", func(t *testing.T) {
		_, err := p.Open(ctx, cfg, creds)
		require.ErrorIs(t, err, wallet.ErrWalletNotFound)
	})

	t.Run("create twice reports already exists", func(t *testing.T) {
		require.NoError(t, p.Create(ctx, cfg, creds, []byte("meta")))
		require.ErrorIs(t, p.Create(ctx, cfg, creds, []byte("meta")), wallet.ErrAlreadyExists)
	})

	t.Run("data outlives a storage view", func(t *testing.T) {
		s, err := p.Open(ctx, cfg, creds)
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, "t", "1", []byte("x"), nil))
		require.NoError(t, s.Close())

		s, err = p.Open(ctx, cfg, creds)
		require.NoError(t, err)
		item, err := s.Get(ctx, "t", "1")
		require.NoError(t, err)
		require.Equal(t, []byte("x"), item.Value)
		meta, err := s.Metadata(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte("meta"), meta)
	})

	t.Run("delete removes the wallet", func(t *testing.T) {
		require.NoError(t, p.Delete(ctx, cfg, creds))
		_, err := p.Open(ctx, cfg, creds)
		require.ErrorIs(t, err, wallet.ErrWalletNotFound)
		require.ErrorIs(t, p.Delete(ctx, cfg, creds), wallet.ErrWalletNotFound)
	})
}

func TestStoredItemsAreCopies(t *testing.T) {
	ctx := context.Background()
	p := NewProvider()
	cfg := wallet.Config{ID: "copies"}
	require.NoError(t, p.Create(ctx, cfg, wallet.Credentials{Key: "k"}, nil))
	s, err := p.Open(ctx, cfg, wallet.Credentials{Key: "k"})
	require.NoError(t, err)

	tags := map[string]string{"a": "1"}
	require.NoError(t, s.Put(ctx, "t", "1", []byte("x"), tags))
	tags["a"] = "mutated"

	item, err := s.Get(ctx, "t", "1")
	require.NoError(t, err)
	require.Equal(t, "1", item.Tags["a"])

	item.Tags["a"] = "mutated again"
	again, err := s.Get(ctx, "t", "1")
	require.NoError(t, err)
	require.Equal(t, "1", again.Tags["a"])
}
