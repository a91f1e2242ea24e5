package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"agentwallet/internal/platform/config"
	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/backends"
)

// app carries the flags shared by every subcommand.
type app struct {
	cfg        config.Config
	configJSON string
	credsJSON  string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.FromEnv()}

	root := &cobra.Command{
		Use:   "walletctl",
		Short: "Inspect and manage agent wallets",
		Long: `walletctl creates and deletes agent wallets and reads the records kept in them.

The wallet is chosen with --config and unlocked with --credentials; both
default to WALLET_CONFIG and WALLET_CREDENTIALS.

EXAMPLES:
  walletctl wallet create
  walletctl record list ConnectionRecord --sort -created_at
  walletctl record search CredentialRecord --tag state=Issued --after created_at=2024-01-01T00:00:00Z
  walletctl record delete ConnectionRecord 5f0c...`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configJSON, "config", a.cfg.Wallet.ConfigJSON, "wallet config JSON")
	flags.StringVar(&a.credsJSON, "credentials", a.cfg.Wallet.CredentialsJSON, "wallet credentials JSON")
	flags.StringVar(&a.cfg.Wallet.Dir, "wallet-dir", a.cfg.Wallet.Dir, "directory for sqlite wallets")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log wallet lifecycle to stderr")

	root.AddCommand(a.walletCmd(), a.recordCmd())
	return root
}

// manager logs to stderr only with --verbose; stdout is reserved for JSON.
func (a *app) manager(cmd *cobra.Command) *wallet.Manager {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if a.verbose {
		log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return backends.NewManager(a.cfg, wallet.WithLogger(log))
}

// withWallet opens the configured wallet for the duration of fn.
func (a *app) withWallet(cmd *cobra.Command, fn func(ctx context.Context, h *wallet.Handle) error) (err error) {
	ctx := cmd.Context()
	m := a.manager(cmd)
	h, err := m.Open(ctx, []byte(a.configJSON), []byte(a.credsJSON))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(ctx, h); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, h)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
