package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/redcoatwright/privatebooks/internal/daemon"
	"github.com/redcoatwright/privatebooks/internal/service"
	"github.com/redcoatwright/privatebooks/pkg/api"
)

func (c *cli) newIngestCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a bank export, statement or mailbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				res, err := app.Service.ParseSource(ctx, args[0], format)
				if err != nil {
					return nil, err
				}
				return api.IngestResult{
					Result:       api.OK(fmt.Sprintf("imported %d transactions", res.Count())),
					Transactions: res.Transactions,
					Count:        res.Count(),
					Failed:       res.Failed,
				}, nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "extractor to use instead of detecting it from the extension")
	return cmd
}

func (c *cli) newListCommand() *cobra.Command {
	var filter api.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				txns, err := app.Service.GetTransactions(ctx, filter)
				if err != nil {
					return nil, err
				}
				return api.TransactionsResult{Result: api.OK(""), Transactions: txns, Total: len(txns)}, nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Start, "start", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.End, "end", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only this category")
	return cmd
}

func (c *cli) newUpdateCommand() *cobra.Command {
	var category, merchant, date, amount, description string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				var patch api.Patch
				flags := cmd.Flags()
				if flags.Changed("category") {
					patch.Category = &category
				}
				if flags.Changed("merchant") {
					patch.Merchant = &merchant
				}
				if flags.Changed("date") {
					patch.Date = &date
				}
				if flags.Changed("description") {
					patch.Description = &description
				}
				if flags.Changed("amount") {
					d, err := decimal.NewFromString(amount)
					if err != nil {
						return nil, fmt.Errorf("%w: amount %q is not a number", service.ErrInvalidInput, amount)
					}
					patch.Amount = &d
				}

				if err := app.Service.UpdateTransaction(ctx, args[0], patch); err != nil {
					return nil, err
				}
				return api.OK("updated " + args[0]), nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().StringVar(&merchant, "merchant", "", "new merchant")
	cmd.Flags().StringVar(&date, "date", "", "new date, YYYY-MM-DD")
	cmd.Flags().StringVar(&amount, "amount", "", "new signed amount")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func (c *cli) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				if err := app.Service.DeleteTransaction(ctx, args[0]); err != nil {
					return nil, err
				}
				return api.OK("deleted " + args[0]), nil
			})
		},
	}
}
