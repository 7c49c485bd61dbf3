package api

import (
	"context"
	"net/http"
	"time"

	"savings-intents-go/internal/intent"
	"savings-intents-go/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.HealthCheck(ctx); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Reconcile recomputes every cached balance. Pass ?dryRun=true to report
// differences without writing them. A run cut short after some accounts
// were checked still answers with its partial report, marked incomplete
// with the interruption cause, since those corrections are committed.
func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var (
		report *models.ReconciliationReport
		err    error
	)
	if r.URL.Query().Get("dryRun") == "true" {
		report, err = h.reconciler.VerifyAllAccounts(r.Context())
	} else {
		report, err = h.reconciler.ReconcileAllAccounts(r.Context(), principal.Actor())
	}
	if err != nil {
		if report == nil || report.TotalAccounts == 0 {
			writeError(w, r, err)
			return
		}
		zap.L().Warn("Reconciliation interrupted",
			zap.String("actor", principal.Actor()),
			zap.Bool("dry_run", report.DryRun),
			zap.Int("checked_accounts", report.TotalAccounts),
			zap.Int("updated_accounts", report.UpdatedAccounts),
			zap.Error(err))
		writeJSON(w, http.StatusOK, report)
		return
	}

	zap.L().Info("Reconciliation requested",
		zap.String("actor", principal.Actor()),
		zap.Bool("dry_run", report.DryRun),
		zap.Int("total_accounts", report.TotalAccounts),
		zap.Int("updated_accounts", report.UpdatedAccounts))
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) OverrideIntent(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req models.OverrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in, err := h.intents.Override(r.Context(), principal, intent.OverrideParams{
		IntentId:              chi.URLParam(r, "id"),
		Status:                models.IntentStatus(req.Status),
		Reason:                req.Reason,
		ProviderTransactionId: req.ProviderTransactionId,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(in, principal))
}
