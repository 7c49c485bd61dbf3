package intent

import (
	"context"
	"fmt"
	"strings"

	"savings-intents-go/internal/audit"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OverrideParams contains the parameters of an administrative override.
type OverrideParams struct {
	IntentId              string
	Status                models.IntentStatus
	Reason                string
	ProviderTransactionId string
}

// Override sets an intent to any status, including out of a terminal one.
// The previous status, new status, actor and reason are appended to the
// trail. Leaving or entering COMPLETED applies the compensating balance
// delta so the account still matches its completed intents; a delta that
// would overdraw the account is rejected with ErrInsufficientFunds and
// nothing is written.
func (s *Service) Override(ctx context.Context, principal models.Principal, params OverrideParams) (*models.Intent, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("%w: override requires the admin role", store.ErrForbidden)
	}
	reason := strings.TrimSpace(params.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: override reason is required", store.ErrValidation)
	}
	status, err := models.ParseIntentStatus(string(params.Status))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	var (
		result   *models.Intent
		previous models.IntentStatus
	)

	err = store.Atomically(ctx, s.store, func(tx store.Tx) error {
		result = nil

		in, err := tx.GetIntent(ctx, params.IntentId)
		if err != nil {
			return err
		}
		previous = in.Status
		if in.Status == status && (params.ProviderTransactionId == "" || params.ProviderTransactionId == in.ProviderTransactionId) {
			return fmt.Errorf("%w: intent is already %s", store.ErrValidation, in.Status)
		}

		delta := contribution(in, status).Sub(contribution(in, in.Status))
		if !delta.IsZero() {
			account, err := tx.GetAccount(ctx, in.AccountId)
			if err != nil {
				return err
			}
			balance := account.Balance.Add(delta)
			if delta.IsNegative() && balance.IsNegative() {
				return fmt.Errorf("%w: override would take balance %s to %s", store.ErrInsufficientFunds, account.Balance, balance)
			}
			if err := tx.UpdateAccountBalance(ctx, account.Id, balance, account.Version); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		if params.ProviderTransactionId != "" && params.ProviderTransactionId != in.ProviderTransactionId {
			if in.ProviderTransactionId != "" {
				in.AppendAdminNote(fmt.Sprintf("provider transaction changed from %s to %s by %s", in.ProviderTransactionId, params.ProviderTransactionId, principal.Actor()))
			}
			in.ProviderTransactionId = params.ProviderTransactionId
		}
		in.AppendAdminNote(fmt.Sprintf("override %s -> %s by %s: %s", in.Status, status, principal.Actor(), reason))

		expected := in.Status
		stamp(in, status, principal.Actor(), reason, now, true)
		if err := tx.UpdateIntent(ctx, in, expected); err != nil {
			return err
		}
		result = in
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Intent status overridden",
		zap.String("intent_id", result.Id),
		zap.String("reference", result.ReferenceNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(result.Status)),
		zap.String("actor", principal.Actor()))

	s.recorder.Record(ctx, principal.Actor(), audit.ActionIntentOverride, result.Id, map[string]any{
		"from":   previous,
		"to":     result.Status,
		"reason": reason,
	})
	return result, nil
}

// contribution is what in adds to its account balance while in status
func contribution(in *models.Intent, status models.IntentStatus) decimal.Decimal {
	if status == models.StatusCompleted {
		return in.SignedAmount()
	}
	return decimal.Zero
}
