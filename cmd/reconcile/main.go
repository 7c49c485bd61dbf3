package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"savings-intents-go/internal/common"
	"savings-intents-go/internal/config"
	"savings-intents-go/internal/models"

	"go.uber.org/zap"
)

type options struct {
	dryRun bool
	asJson bool
	actor  string
}

func run(ctx context.Context, cfg *models.Config, opts options, logger *zap.Logger) error {
	services, err := common.InitializeServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	logger.Info("Starting reconciliation", zap.Bool("dry_run", opts.dryRun))

	var report *models.ReconciliationReport
	if opts.dryRun {
		report, err = services.Reconciler.VerifyAllAccounts(ctx)
	} else {
		report, err = services.Reconciler.ReconcileAllAccounts(ctx, opts.actor)
	}
	if report == nil {
		return err
	}

	if opts.asJson {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if encodeErr := encoder.Encode(report); encodeErr != nil {
			logger.Error("Failed to encode report", zap.Error(encodeErr))
		}
	} else {
		common.PrintReconciliationReport(report, common.WideWidth)
	}

	if err != nil {
		logger.Error("Reconciliation interrupted", zap.Int("accounts_checked", report.TotalAccounts))
		return err
	}

	logger.Info("Reconciliation completed",
		zap.Int("total_accounts", report.TotalAccounts),
		zap.Int("updated_accounts", report.UpdatedAccounts))
	return nil
}

func main() {
	dryRun := flag.Bool("dry-run", false, "Report differences without correcting cached balances")
	asJson := flag.Bool("json", false, "Print the report as JSON instead of a table")
	actor := flag.String("actor", "system:cli", "Actor recorded in the audit log")
	flag.Parse()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Cancellation stops the run between accounts; corrected accounts stay corrected.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, options{dryRun: *dryRun, asJson: *asJson, actor: *actor}, logger); err != nil {
		logger.Fatal("Reconciliation failed", zap.Error(err))
	}
}
