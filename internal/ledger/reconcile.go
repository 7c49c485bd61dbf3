package ledger

import (
	"context"
	"fmt"
	"time"

	"savings-intents-go/internal/audit"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"go.uber.org/zap"
)

// Reconciler recomputes cached balances from completed intents
type Reconciler struct {
	store    store.IntentStore
	recorder audit.Recorder
	now      func() time.Time
}

func NewReconciler(s store.IntentStore, recorder audit.Recorder) *Reconciler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Reconciler{store: s, recorder: recorder, now: time.Now}
}

// ReconcileAllAccounts corrects every account whose cached balance differs
// from its ledger. Each account is checked and written in its own unit of
// work, so a cancelled run leaves already-processed accounts corrected and
// returns the partial report together with the context error.
func (r *Reconciler) ReconcileAllAccounts(ctx context.Context, actor string) (*models.ReconciliationReport, error) {
	report, err := r.run(ctx, false)
	r.recorder.Record(ctx, actor, audit.ActionReconcile, "", map[string]any{
		"total_accounts":   report.TotalAccounts,
		"updated_accounts": report.UpdatedAccounts,
		"complete":         report.Complete,
	})
	return report, err
}

// VerifyAllAccounts produces the same report without writing any balance.
func (r *Reconciler) VerifyAllAccounts(ctx context.Context) (*models.ReconciliationReport, error) {
	return r.run(ctx, true)
}

func (r *Reconciler) run(ctx context.Context, dryRun bool) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{
		Rows:      []models.ReconciliationRow{},
		DryRun:    dryRun,
		StartedAt: r.now().UTC(),
	}

	accounts, err := r.store.ListAccounts(ctx)
	if err != nil {
		return r.interrupt(report, fmt.Errorf("unable to list accounts: %w", err))
	}

	zap.L().Info("Starting reconciliation", zap.Int("accounts", len(accounts)), zap.Bool("dry_run", dryRun))

	for _, summary := range accounts {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("Reconciliation interrupted",
				zap.Int("processed", report.TotalAccounts),
				zap.Int("remaining", len(accounts)-report.TotalAccounts))
			return r.interrupt(report, err)
		}

		row, err := r.reconcileAccount(ctx, summary, dryRun)
		if err != nil {
			return r.interrupt(report, fmt.Errorf("unable to reconcile account %s: %w", summary.AccountNumber, err))
		}

		report.TotalAccounts++
		if row != nil {
			report.Rows = append(report.Rows, *row)
			if !dryRun {
				report.UpdatedAccounts++
			}
		}
	}

	report.Complete = true
	report.FinishedAt = r.now().UTC()
	zap.L().Info("Reconciliation finished",
		zap.Int("total_accounts", report.TotalAccounts),
		zap.Int("discrepancies", len(report.Rows)),
		zap.Int("updated_accounts", report.UpdatedAccounts),
		zap.Bool("dry_run", dryRun))
	return report, nil
}

// interrupt closes an incomplete report. Accounts already in the report
// stay corrected.
func (r *Reconciler) interrupt(report *models.ReconciliationReport, err error) (*models.ReconciliationReport, error) {
	report.FinishedAt = r.now().UTC()
	report.Interruption = err.Error()
	return report, err
}

// reconcileAccount returns a row only when the cached balance was wrong
func (r *Reconciler) reconcileAccount(ctx context.Context, summary models.AccountSummary, dryRun bool) (*models.ReconciliationRow, error) {
	var row *models.ReconciliationRow

	err := store.Atomically(ctx, r.store, func(tx store.Tx) error {
		row = nil

		account, err := tx.GetAccount(ctx, summary.Id)
		if err != nil {
			return err
		}
		completed, err := tx.ListCompletedIntents(ctx, account.Id)
		if err != nil {
			return err
		}

		correct, count := Sum(completed)
		if correct.Equal(account.Balance) {
			return nil
		}

		row = &models.ReconciliationRow{
			AccountId:            account.Id,
			AccountNumber:        account.AccountNumber,
			AccountType:          account.AccountType,
			Owner:                summary.OwnerName,
			OldBalance:           account.Balance,
			NewBalance:           correct,
			Difference:           correct.Sub(account.Balance),
			CompletedIntentCount: count,
		}
		if dryRun {
			return nil
		}
		return tx.UpdateAccountBalance(ctx, account.Id, correct, account.Version)
	})
	if err != nil {
		return nil, err
	}

	if row != nil {
		zap.L().Warn("Balance discrepancy",
			zap.String("account_number", row.AccountNumber),
			zap.String("old_balance", row.OldBalance.String()),
			zap.String("new_balance", row.NewBalance.String()),
			zap.String("difference", row.Difference.String()),
			zap.Bool("corrected", !dryRun))
	}
	return row, nil
}
