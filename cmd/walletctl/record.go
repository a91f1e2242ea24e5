package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"agentwallet/internal/record"
	"agentwallet/internal/record/search"
	"agentwallet/internal/recordstore"
	"agentwallet/internal/wallet"
)

type searchFlags struct {
	tags   []string
	after  []string
	before []string
	sort   []string
	limit  int
	skip   int
}

func (f *searchFlags) register(cmd *cobra.Command, filters bool) {
	if filters {
		cmd.Flags().StringArrayVar(&f.tags, "tag", nil, "match tag name=value (repeatable)")
		cmd.Flags().StringArrayVar(&f.after, "after", nil, "timestamp tag strictly after name=RFC3339 (repeatable)")
		cmd.Flags().StringArrayVar(&f.before, "before", nil, "timestamp tag strictly before name=RFC3339 (repeatable)")
	}
	cmd.Flags().StringSliceVar(&f.sort, "sort", nil, "sort by tag; prefix with - for descending")
	cmd.Flags().IntVar(&f.limit, "limit", wallet.DefaultSearchLimit, "maximum records to return")
	cmd.Flags().IntVar(&f.skip, "skip", 0, "records to skip before the first result")
}

func (f *searchFlags) options() wallet.SearchOptions {
	return wallet.SearchOptions{Sort: search.ParseSort(f.sort), Limit: f.limit, Skip: f.skip}
}

func (a *app) recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Read and delete records in the wallet",
	}
	store := recordstore.New()

	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List the record types this build understands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, record.DefaultRegistry().Types())
		},
	})

	var list searchFlags
	listCmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List every record of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.find(cmd, store, args[0], search.All(), list.options())
		},
	}
	list.register(listCmd, false)
	cmd.AddCommand(listCmd)

	var find searchFlags
	searchCmd := &cobra.Command{
		Use:   "search <type>",
		Short: "Search records of a type by tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := search.ParseFilters(find.tags, find.after, find.before)
			if err != nil {
				return err
			}
			return a.find(cmd, store, args[0], q, find.options())
		},
	}
	find.register(searchCmd, true)
	cmd.AddCommand(searchCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWallet(cmd, func(ctx context.Context, h *wallet.Handle) error {
				rec, err := store.Load(ctx, h, args[0], args[1])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("%s %s not found", args[0], args[1])
				}
				return printJSON(cmd, record.NewView(rec))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withWallet(cmd, func(ctx context.Context, h *wallet.Handle) error {
				if err := store.Remove(ctx, h, args[0], args[1]); err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"status": "deleted", "type": args[0], "id": args[1]})
			})
		},
	})

	return cmd
}

func (a *app) find(cmd *cobra.Command, store *recordstore.Service, typeName string, q search.Query, opts wallet.SearchOptions) error {
	return a.withWallet(cmd, func(ctx context.Context, h *wallet.Handle) error {
		recs, err := store.Find(ctx, h, typeName, q, opts)
		if err != nil {
			return err
		}
		views := make([]record.View, 0, len(recs))
		for _, rec := range recs {
			views = append(views, record.NewView(rec))
		}
		return printJSON(cmd, views)
	})
}
