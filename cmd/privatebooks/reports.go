package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redcoatwright/privatebooks/internal/daemon"
	"github.com/redcoatwright/privatebooks/internal/service"
	"github.com/redcoatwright/privatebooks/pkg/api"
)

func addRangeFlags(cmd *cobra.Command, start, end *string) {
	cmd.Flags().StringVar(start, "start", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(end, "end", "", "last date, YYYY-MM-DD")
}

func (c *cli) newSummaryCommand() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total spending, income and net cash flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				sum, err := app.Service.GetSpendingSummary(ctx, start, end)
				if err != nil {
					return nil, err
				}
				return api.SummaryResult{Result: api.OK(""), Summary: &sum}, nil
			})
		},
	}
	addRangeFlags(cmd, &start, &end)
	return cmd
}

func (c *cli) newBreakdownCommand() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Outflows per category, largest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				totals, err := app.Service.GetCategorySummary(ctx, start, end)
				if err != nil {
					return nil, err
				}
				return api.BreakdownResult{Result: api.OK(""), Categories: totals}, nil
			})
		},
	}
	addRangeFlags(cmd, &start, &end)
	return cmd
}

func (c *cli) newMonthlyCommand() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Outflows per month and category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				grid, err := app.Service.GetMonthlyCategorySummary(ctx, start, end)
				if err != nil {
					return nil, err
				}
				return api.MonthlyResult{Result: api.OK(""), MonthlyBreakdown: grid}, nil
			})
		},
	}
	addRangeFlags(cmd, &start, &end)
	return cmd
}

func (c *cli) newTrendsCommand() *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Outflows for the trailing months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				trend, err := app.Service.GetTrends(ctx, months, time.Now())
				if err != nil {
					return nil, err
				}
				return api.TrendsResult{Result: api.OK(""), Months: trend}, nil
			})
		},
	}
	cmd.Flags().IntVar(&months, "months", service.DefaultTrendMonths, "number of months, including the current one")
	return cmd
}

func (c *cli) newCategoriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the category vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				cats, err := app.Service.GetCategories(ctx)
				if err != nil {
					return nil, err
				}
				return api.CategoriesResult{Result: api.OK(""), Categories: cats}, nil
			})
		},
	}

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				if err := app.Service.AddCategory(ctx, api.Category{Name: args[0], Color: color}); err != nil {
					return nil, err
				}
				return api.OK("added " + args[0]), nil
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "display color, e.g. #4caf50")
	cmd.AddCommand(add)

	return cmd
}

func (c *cli) newTrainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Offer corrected categories to the categorizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, app *daemon.App) (any, error) {
				n, err := app.Service.Train(ctx)
				if err != nil {
					return nil, err
				}
				return api.OK(fmt.Sprintf("offered %d corrected transactions", n)), nil
			})
		},
	}
}
