package intent

import (
	"context"
	"fmt"
	"time"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/shopspring/decimal"
)

const NoteInsufficientFunds = "insufficient funds"

// StatusUpdate describes one automatic state change
type StatusUpdate struct {
	Next     models.IntentStatus
	Actor    string
	Note     string
	At       time.Time
	Callback *models.CallbackRecord
}

// Outcome reports what ApplyStatus committed
type Outcome struct {
	// Completed is set when a first-time completion moved the balance
	Completed bool
	Balance   decimal.Decimal
	// Err is a business failure persisted together with the intent, such as
	// a withdrawal failed for insufficient funds
	Err error
}

// ApplyStatus applies an automatic transition to in within tx. It is the
// single path by which a completion reaches an account balance: the account
// is re-read inside the unit of work, a withdrawal that would overdraw it is
// turned into FAILED with an "insufficient funds" note, and the intent write
// is conditional on the status the caller loaded.
func ApplyStatus(ctx context.Context, tx store.Tx, in *models.Intent, update StatusUpdate) (Outcome, error) {
	var outcome Outcome

	expected := in.Status
	if !expected.CanTransitionTo(update.Next) {
		return outcome, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, expected, update.Next)
	}

	next := update.Next
	note := update.Note
	if next == models.StatusCompleted {
		account, err := tx.GetAccount(ctx, in.AccountId)
		if err != nil {
			return outcome, err
		}

		balance := account.Balance.Add(in.SignedAmount())
		if in.Type.IsDebit() && balance.IsNegative() {
			next = models.StatusFailed
			note = NoteInsufficientFunds
			in.AppendAdminNote(NoteInsufficientFunds)
			outcome.Err = fmt.Errorf("%w: balance %s below withdrawal %s", store.ErrInsufficientFunds, account.Balance, in.Amount)
		} else {
			if err := tx.UpdateAccountBalance(ctx, account.Id, balance, account.Version); err != nil {
				return outcome, err
			}
			outcome.Completed = true
			outcome.Balance = balance
		}
	}

	if update.Callback != nil {
		update.Callback.MappedStatus = update.Next
		switch {
		case outcome.Err != nil:
			update.Callback.Outcome = OutcomeInsufficientFunds
		default:
			update.Callback.Outcome = OutcomeApplied
		}
		in.Metadata.Callbacks = append(in.Metadata.Callbacks, *update.Callback)
	}

	stamp(in, next, update.Actor, note, update.At, false)
	if err := tx.UpdateIntent(ctx, in, expected); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// Callback record outcomes
const (
	OutcomeApplied           = "applied"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomePending           = "pending"
	OutcomeDuplicate         = "duplicate"
	OutcomeDiscrepancy       = "discrepancy"
	OutcomeAmountMismatch    = "amount_mismatch"
)

// stamp records a status change on the intent and its trail
func stamp(in *models.Intent, next models.IntentStatus, actor, reason string, at time.Time, override bool) {
	in.Metadata.Trail = append(in.Metadata.Trail, models.StatusChange{
		From:     in.Status,
		To:       next,
		Actor:    actor,
		Reason:   reason,
		Override: override,
		At:       at,
	})
	in.Status = next
	in.UpdatedAt = at
	if next.IsTerminal() && in.PaymentCompletedAt == nil {
		completedAt := at
		in.PaymentCompletedAt = &completedAt
	}
}
