// Command ledgerctl runs maintenance tasks against the ledger database.
//
//	ledgerctl migrate
//	ledgerctl seed-plans [-file configs/plans.yaml]
//	ledgerctl snapshot -user <id>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kingsinvest/kings_invest/internal/config"
	"github.com/kingsinvest/kings_invest/internal/infra"
	"github.com/kingsinvest/kings_invest/internal/ledger"
	"github.com/kingsinvest/kings_invest/internal/logging"
	"github.com/kingsinvest/kings_invest/internal/plan"
)

var errUsage = errors.New("usage: ledgerctl <migrate|seed-plans|snapshot> [flags]")

func main() {
	cfg, err := config.LoadTooling()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, errUsage)
			os.Exit(2)
		}
		logger.Error("ledgerctl failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "migrate", "seed-plans", "snapshot":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch args[0] {
	case "migrate":
		if err := infra.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("schema applied")
		return nil

	case "seed-plans":
		fs := flag.NewFlagSet("seed-plans", flag.ContinueOnError)
		file := fs.String("file", firstNonEmpty(cfg.PlansFile, "configs/plans.yaml"), "plan catalog YAML")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		n, err := plan.NewService(plan.NewPostgresRepository(pool), logger).SeedFile(ctx, *file)
		if err != nil {
			return err
		}
		logger.Info("plans seeded", slog.Int("count", n), slog.String("file", *file))
		return nil

	case "snapshot":
		fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
		user := fs.String("user", "", "user id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *user == "" {
			return fmt.Errorf("%w: -user is required", errUsage)
		}
		svc := ledger.NewService(ledger.NewPostgresStore(pool), nil, nil, logger, ledger.Options{
			CanonicalCurrency: cfg.CanonicalCurrency,
		})
		snap, err := svc.Snapshot(ctx, *user)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"user_id":           *user,
			"balance":           snap.Balance.String(),
			"invested":          snap.Invested.String(),
			"earnings":          snap.Earnings.String(),
			"total_withdrawals": snap.TotalWithdrawals.String(),
			"as_of":             snap.AsOf,
		})

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
