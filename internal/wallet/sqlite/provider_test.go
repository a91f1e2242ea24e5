package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/wallettest"
	"agentwallet/pkg/platform/sentinel"
)

func TestSQLiteStorageSuite(t *testing.T) {
	suite.Run(t, &wallettest.StorageSuite{
		NewStorage: func(t *testing.T) wallet.Storage {
			ctx := context.Background()
			p := NewProvider(t.TempDir())
			cfg := wallet.Config{ID: "test", StorageType: wallet.StorageSQLite}
			require.NoError(t, p.Create(ctx, cfg, wallet.Credentials{Key: "k"}, []byte("{}")))
			s, err := p.Open(ctx, cfg, wallet.Credentials{Key: "k"})
			require.NoError(t, err)
			return s
		},
	})
}

func TestProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewProvider(dir)
	cfg := wallet.Config{ID: "agent-1", StorageType: wallet.StorageSQLite}
	creds := wallet.Credentials{Key: "k"}

	_, err := p.Open(ctx, cfg, creds)
	require.ErrorIs(t, err, wallet.ErrWalletNotFound)

	require.NoError(t, p.Create(ctx, cfg, creds, []byte(`{"version":1}`)))
	require.FileExists(t, filepath.Join(dir, "agent-1", "sqlite.db"))
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
	_, err = os.Stat(filepath.Join(dir, "agent-1"))
	require.True(t, os.IsNotExist(err))
	require.ErrorIs(t, p.Delete(ctx, cfg, creds), wallet.ErrWalletNotFound)
}

func TestExplicitPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "custom.db")
	p := NewProvider(t.TempDir())
	cfg := wallet.Config{ID: "x", StorageConfig: wallet.StorageConfig{Path: path}}

	require.NoError(t, p.Create(ctx, cfg, wallet.Credentials{Key: "k"}, []byte("{}")))
	require.FileExists(t, path)
	require.NoError(t, p.Delete(ctx, cfg, wallet.Credentials{Key: "k"}))
	require.NoFileExists(t, path)
}

func TestSQLiteInMemoryStorageSuite(t *testing.T) {
	p := NewProvider(t.TempDir())
	n := 0
	suite.Run(t, &wallettest.StorageSuite{
		NewStorage: func(t *testing.T) wallet.Storage {
			ctx := context.Background()
			n++
			cfg := wallet.Config{
				ID:            fmt.Sprintf("mem-%d", n),
				StorageType:   wallet.StorageSQLite,
				StorageConfig: wallet.StorageConfig{Path: MemoryPath},
			}
			require.NoError(t, p.Create(ctx, cfg, wallet.Credentials{Key: "k"}, []byte("{}")))
			s, err := p.Open(ctx, cfg, wallet.Credentials{Key: "k"})
			require.NoError(t, err)
			return s
		},
	})
}

func TestInMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewProvider(dir)
	cfg := wallet.Config{ID: "w", StorageType: wallet.StorageSQLite, StorageConfig: wallet.StorageConfig{Path: MemoryPath}}
	creds := wallet.Credentials{Key: "k"}

	_, err := p.Open(ctx, cfg, creds)
	require.ErrorIs(t, err, wallet.ErrWalletNotFound)

	require.NoError(t, p.Create(ctx, cfg, creds, []byte(`{"version":1}`)))
	require.ErrorIs(t, p.Create(ctx, cfg, creds, nil), wallet.ErrAlreadyExists)
	require.NoFileExists(t, MemoryPath)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	s, err := p.Open(ctx, cfg, creds)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "t", "1", []byte("x"), map[string]string{"k": "v"}))
	require.NoError(t, s.Close())

	s, err = p.Open(ctx, cfg, creds)
	require.NoError(t, err)
	item, err := s.Get(ctx, "t", "1")
	require.NoError(t, err)
	require.Equal(t, "v", item.Tags["k"])
	require.NoError(t, s.Close())

	other := cfg
	other.ID = "other"
	require.NoError(t, p.Create(ctx, other, creds, []byte("{}")))
	s, err = p.Open(ctx, other, creds)
	require.NoError(t, err)
	_, err = s.Get(ctx, "t", "1")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, s.Close())

	require.NoError(t, p.Delete(ctx, cfg, creds))
	_, err = p.Open(ctx, cfg, creds)
	require.ErrorIs(t, err, wallet.ErrWalletNotFound)
	require.ErrorIs(t, p.Delete(ctx, cfg, creds), wallet.ErrWalletNotFound)
}
