package backends_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agentwallet/internal/platform/config"
	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/backends"
)

func TestNewManagerOpensSQLiteUnderWalletDir(t *testing.T) {
	cfg := config.FromEnv()
	cfg.Wallet.Dir = t.TempDir()
	m := backends.NewManager(cfg, wallet.WithKeyCost(bcrypt.MinCost))
	ctx := context.Background()

	h, err := m.CreateOrOpen(ctx, []byte(`{"id":"agent"}`), []byte(`{"key":"k"}`))
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, h))

	assert.FileExists(t, filepath.Join(cfg.Wallet.Dir, "agent", "sqlite.db"))
}

func TestNewManagerKnowsMemoryWallets(t *testing.T) {
	m := backends.NewManager(config.FromEnv(), wallet.WithKeyCost(bcrypt.MinCost))
	ctx := context.Background()

	h, err := m.CreateOrOpen(ctx, []byte(`{"id":"mem","storage_type":"memory"}`), []byte(`{"key":"k"}`))
	require.NoError(t, err)
	assert.NoError(t, h.Ping(ctx))
	require.NoError(t, m.Close(ctx, h))
	assert.ErrorIs(t, h.Ping(ctx), wallet.ErrNotOpen)
}

func TestNewManagerOpensInProcessSQLite(t *testing.T) {
	cfg := config.FromEnv()
	cfg.Wallet.Dir = t.TempDir()
	m := backends.NewManager(cfg, wallet.WithKeyCost(bcrypt.MinCost))
	ctx := context.Background()
	walletCfg := []byte(`{"id":"w","storage_config":{"path":":memory:"}}`)

	h, err := m.CreateOrOpen(ctx, walletCfg, []byte(`{"key":"k"}`))
	require.NoError(t, err)
	require.NoError(t, h.Put(ctx, "t", "1", []byte("x"), nil))
	require.NoError(t, m.Close(ctx, h))

	h, err = m.Open(ctx, walletCfg, []byte(`{"key":"k"}`))
	require.NoError(t, err)
	item, err := h.Get(ctx, "t", "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), item.Value)
	require.NoError(t, m.Close(ctx, h))

	_, err = m.Open(ctx, walletCfg, []byte(`{"key":"wrong"}`))
	assert.ErrorIs(t, err, wallet.ErrOpenFailure)
	require.NoError(t, m.Delete(ctx, walletCfg, []byte(`{"key":"k"}`)))
}
