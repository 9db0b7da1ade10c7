package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/bootstrap"
	"quote_pipeline_backend/internal/quotes/domain"
	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/db"
	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quotesctl",
		Short:         "Operate the quote pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(migrateCmd(), expireCmd(), reopenCmd(), priceCmd())
	return cmd
}

// session loads config and a logger bound to the command's signal context.
func session(cmd *cobra.Command) (context.Context, context.CancelFunc, *config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return ctx, stop, cfg, logger.New(cfg.Env), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop, cfg, log, err := session(cmd)
			if err != nil {
				return err
			}
			defer stop()

			if err := db.RunMigrations(ctx, cfg, log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations up to date")
			return nil
		},
	}
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire every sent quote whose validity has ended",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop, cfg, log, err := session(cmd)
			if err != nil {
				return err
			}
			defer stop()

			infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer infra.Close()

			modules, err := bootstrap.BuildModules(infra)
			if err != nil {
				return err
			}

			expired, err := modules.Quotes.Service().ExpireOverdue(ctx)
			infra.Bus.Wait()
			if err != nil {
				return err
			}
			for _, id := range expired {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d quote(s) expired\n", len(expired))
			return nil
		},
	}
}

func reopenCmd() *cobra.Command {
	var (
		reason  string
		actorID string
	)

	cmd := &cobra.Command{
		Use:   "reopen <quote-id>",
		Short: "Return a refused or expired quote to draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quoteID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid quote id %q", args[0])
			}
			actor, err := uuid.Parse(actorID)
			if err != nil {
				return fmt.Errorf("--actor must be the user id of an admin")
			}
			if strings.TrimSpace(reason) == "" {
				return fmt.Errorf("--reason is required")
			}

			ctx, stop, cfg, log, err := session(cmd)
			if err != nil {
				return err
			}
			defer stop()

			infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer infra.Close()

			modules, err := bootstrap.BuildModules(infra)
			if err != nil {
				return err
			}

			quote, err := modules.Quotes.Service().Reopen(ctx, authz.Actor{
				ID:    actor,
				Roles: []string{string(authz.RoleAdmin)},
			}, quoteID, reason)
			infra.Bus.Wait()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "quote %s is %s\n", quote.QuoteNumber, quote.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the quote is reopened (stored in its history)")
	cmd.Flags().StringVar(&actorID, "actor", "", "User id of the admin performing the reopen")
	return cmd
}

// priceOutput is the printed result of the price command.
type priceOutput struct {
	Lines    []pricedLine `json:"lines" yaml:"lines"`
	Subtotal int64        `json:"subtotalCents" yaml:"subtotalCents"`
	Tax      int64        `json:"taxAmountCents" yaml:"taxAmountCents"`
	Discount int64        `json:"discountAmountCents" yaml:"discountAmountCents"`
	Total    int64        `json:"totalCents" yaml:"totalCents"`
}

type pricedLine struct {
	Description    string  `json:"description" yaml:"description"`
	Quantity       float64 `json:"quantity" yaml:"quantity"`
	UnitPriceCents int64   `json:"unitPriceCents" yaml:"unitPriceCents"`
	LineTotalCents int64   `json:"lineTotalCents" yaml:"lineTotalCents"`
}

func priceCmd() *cobra.Command {
	var (
		rawLines []string
		tax      float64
		discount float64
		output   string
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Compute quote amounts offline",
		Example: `  quotesctl price --line "Installation:1:10000" --line "Cable:2.5:1000" --discount 10
  quotesctl price --line "Service:3:3333" -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines := make([]domain.Line, 0, len(rawLines))
			for _, raw := range rawLines {
				line, err := parseLine(raw)
				if err != nil {
					return err
				}
				lines = append(lines, line)
			}

			amounts, err := domain.Price(lines, domain.Rates{TaxRate: tax, DiscountRate: discount}, domain.StatusDraft)
			if err != nil {
				return err
			}

			out := priceOutput{
				Lines:    make([]pricedLine, 0, len(lines)),
				Subtotal: amounts.SubtotalCents,
				Tax:      amounts.TaxAmountCents,
				Discount: amounts.DiscountAmountCents,
				Total:    amounts.TotalCents,
			}
			for _, l := range lines {
				out.Lines = append(out.Lines, pricedLine{
					Description:    l.Description,
					Quantity:       l.Quantity,
					UnitPriceCents: l.UnitPriceCents,
					LineTotalCents: domain.LineTotalCents(l),
				})
			}
			return writeOutput(cmd.OutOrStdout(), output, out)
		},
	}

	cmd.Flags().StringArrayVar(&rawLines, "line", nil, `Line item as "description:quantity:unitPriceCents" (repeatable)`)
	cmd.Flags().Float64Var(&tax, "tax", domain.DefaultTaxRate, "Tax rate in percent")
	cmd.Flags().Float64Var(&discount, "discount", 0, "Discount rate in percent")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (yaml, json)")
	return cmd
}

// parseLine reads "description:quantity:unitPriceCents". The description may
// itself contain colons.
func parseLine(raw string) (domain.Line, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return domain.Line{}, fmt.Errorf("line %q: want description:quantity:unitPriceCents", raw)
	}
	n := len(parts)
	qty, err := strconv.ParseFloat(strings.TrimSpace(parts[n-2]), 64)
	if err != nil {
		return domain.Line{}, fmt.Errorf("line %q: invalid quantity", raw)
	}
	unit, err := strconv.ParseInt(strings.TrimSpace(parts[n-1]), 10, 64)
	if err != nil {
		return domain.Line{}, fmt.Errorf("line %q: invalid unit price", raw)
	}
	return domain.Line{
		Description:    strings.TrimSpace(strings.Join(parts[:n-2], ":")),
		Quantity:       qty,
		UnitPriceCents: unit,
	}, nil
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
