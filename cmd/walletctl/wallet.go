package main

import (
	"github.com/spf13/cobra"
)

func (a *app) walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Create or delete the configured wallet",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the wallet named by --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.manager(cmd).Create(cmd.Context(), []byte(a.configJSON), []byte(a.credsJSON)); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"status": "created"})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the wallet and every record in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.manager(cmd).Delete(cmd.Context(), []byte(a.configJSON), []byte(a.credsJSON)); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"status": "deleted"})
		},
	})

	return cmd
}
