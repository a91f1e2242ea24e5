// Package backends registers every wallet storage backend with a Manager.
package backends

import (
	"agentwallet/internal/platform/config"
	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/memory"
	"agentwallet/internal/wallet/postgres"
	walletredis "agentwallet/internal/wallet/redis"
	"agentwallet/internal/wallet/sqlite"
)

// NewManager returns a Manager that can open memory, sqlite, postgres and
// redis wallets, configured from cfg. opts are applied after the providers.
func NewManager(cfg config.Config, opts ...wallet.Option) *wallet.Manager {
	dir := cfg.Wallet.Dir
	if dir == "" {
		dir = sqlite.DefaultDir()
	}
	all := []wallet.Option{
		wallet.WithProvider(wallet.StorageMemory, memory.NewProvider()),
		wallet.WithProvider(wallet.StorageSQLite, sqlite.NewProvider(dir)),
		wallet.WithProvider(wallet.StoragePostgres, postgres.NewProvider(postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns))),
		wallet.WithProvider(wallet.StorageRedis, walletredis.NewProvider(walletredis.WithPool(cfg.Redis))),
	}
	return wallet.NewManager(append(all, opts...)...)
}
