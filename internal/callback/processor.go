// Package callback turns at-least-once payment provider notifications into
// at most one state transition and at most one balance update per intent.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"savings-intents-go/internal/audit"
	"savings-intents-go/internal/intent"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/notify"
	"savings-intents-go/internal/store"

	"go.uber.org/zap"
)

const (
	actorProvider        = "provider"
	defaultNotifyTimeout = 2 * time.Second
)

// Result is the processed outcome acknowledged back to the provider
type Result struct {
	Intent  *models.Intent
	Status  models.IntentStatus
	Outcome string
	Message string
}

type Processor struct {
	store         store.IntentStore
	notifier      notify.Notifier
	recorder      audit.Recorder
	notifyTimeout time.Duration
	now           func() time.Time
}

func NewProcessor(s store.IntentStore, notifier notify.Notifier, recorder audit.Recorder, notifyTimeout time.Duration) *Processor {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Processor{
		store:         s,
		notifier:      notifier,
		recorder:      recorder,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
	}
}

// Parse decodes a raw webhook body and checks the required fields.
func Parse(body []byte) (models.CallbackPayload, error) {
	var payload models.CallbackPayload

	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", store.ErrMalformedCallback, err)
	}

	var missing []string
	if strings.TrimSpace(payload.TransactionId) == "" {
		missing = append(missing, "transactionId")
	}
	if strings.TrimSpace(payload.Status) == "" {
		missing = append(missing, "status")
	}
	if !payload.Amount.Valid {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(payload.ReferenceNumber) == "" {
		missing = append(missing, "referenceNumber")
	}
	if len(missing) > 0 {
		return payload, fmt.Errorf("%w: missing %s", store.ErrMalformedCallback, strings.Join(missing, ", "))
	}
	return payload, nil
}

// Process parses and applies one provider callback body.
func (p *Processor) Process(ctx context.Context, body []byte) (*Result, error) {
	payload, err := Parse(body)
	if err != nil {
		zap.L().Warn("Rejected malformed callback", zap.Error(err))
		return nil, err
	}
	return p.Apply(ctx, payload, body)
}

// Apply applies a parsed callback. A business failure such as insufficient
// funds is committed and returned together with a non-nil Result; the
// provider should treat it as a definitive outcome.
func (p *Processor) Apply(ctx context.Context, payload models.CallbackPayload, raw []byte) (*Result, error) {
	mapped := models.ParseProviderStatus(payload.Status).IntentStatus()

	var (
		result      *Result
		outcome     intent.Outcome
		businessErr error
	)

	err := store.Atomically(ctx, p.store, func(tx store.Tx) error {
		result, outcome, businessErr = nil, intent.Outcome{}, nil

		in, err := tx.GetIntentByReference(ctx, payload.ReferenceNumber)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", store.ErrUnknownReference, payload.ReferenceNumber)
			}
			return err
		}

		now := p.now().UTC()
		record := &models.CallbackRecord{
			ReceivedAt:            now,
			ProviderTransactionId: payload.TransactionId,
			ProviderStatus:        payload.Status,
			MappedStatus:          mapped,
			Payload:               compactPayload(raw),
		}
		result = &Result{Intent: in}

		if in.Status.IsTerminal() {
			return p.applyToTerminal(ctx, tx, in, payload, mapped, record, result)
		}

		recordProviderTransaction(in, payload.TransactionId, now)
		in.ProviderStatus = payload.Status

		switch mapped {
		case models.StatusPending:
			record.Outcome = intent.OutcomePending
			result.Outcome = intent.OutcomePending
			in.Metadata.Callbacks = append(in.Metadata.Callbacks, *record)
			in.UpdatedAt = now
			return tx.UpdateIntent(ctx, in, in.Status)

		case models.StatusCompleted:
			if !payload.Amount.Decimal.Equal(in.Amount) {
				note := fmt.Sprintf("amount mismatch: provider reported %s for intent amount %s (transaction %s)",
					payload.Amount.Decimal, in.Amount, payload.TransactionId)
				in.AppendAdminNote(note)
				record.Outcome = intent.OutcomeAmountMismatch
				result.Outcome = intent.OutcomeAmountMismatch
				in.Metadata.Callbacks = append(in.Metadata.Callbacks, *record)
				in.UpdatedAt = now
				businessErr = fmt.Errorf("%w: %s", store.ErrValidation, note)
				return tx.UpdateIntent(ctx, in, in.Status)
			}
		}

		outcome, err = intent.ApplyStatus(ctx, tx, in, intent.StatusUpdate{
			Next:     mapped,
			Actor:    actorProvider,
			Note:     "provider reported " + payload.Status,
			At:       now,
			Callback: record,
		})
		if err != nil {
			return err
		}
		result.Outcome = record.Outcome
		businessErr = outcome.Err
		return nil
	})
	if err != nil {
		zap.L().Warn("Callback not applied",
			zap.String("reference", payload.ReferenceNumber),
			zap.String("provider_transaction_id", payload.TransactionId),
			zap.Error(err))
		return nil, err
	}

	result.Status = result.Intent.Status
	result.Message = message(result, outcome, businessErr)

	zap.L().Info("Callback processed",
		zap.String("reference", payload.ReferenceNumber),
		zap.String("provider_status", payload.Status),
		zap.String("mapped_status", string(mapped)),
		zap.String("status", string(result.Status)),
		zap.String("outcome", result.Outcome))

	if outcome.Completed {
		p.notifyCompletion(ctx, result.Intent, outcome)
	}
	p.recorder.Record(ctx, actorProvider, audit.ActionCallbackProcess, result.Intent.Id, map[string]any{
		"reference":               payload.ReferenceNumber,
		"provider_transaction_id": payload.TransactionId,
		"provider_status":         payload.Status,
		"outcome":                 result.Outcome,
		"status":                  result.Status,
	})

	return result, businessErr
}

// applyToTerminal never moves a balance. An exact redelivery, or one whose
// status and transaction were already recorded, is ignored; anything else
// that disagrees with the stored outcome is kept as an admin note once.
func (p *Processor) applyToTerminal(ctx context.Context, tx store.Tx, in *models.Intent, payload models.CallbackPayload,
	mapped models.IntentStatus, record *models.CallbackRecord, result *Result) error {

	sameTransaction := in.ProviderTransactionId == "" || in.ProviderTransactionId == payload.TransactionId
	if (mapped == in.Status && sameTransaction) || seenCallback(in, mapped, payload.TransactionId) {
		result.Outcome = intent.OutcomeDuplicate
		return nil
	}

	note := fmt.Sprintf("callback discrepancy: provider reported %q (transaction %s) for %s intent",
		payload.Status, payload.TransactionId, in.Status)
	if !sameTransaction {
		note += " recorded with transaction " + in.ProviderTransactionId
	}
	in.AppendAdminNote(note)
	record.Outcome = intent.OutcomeDiscrepancy
	result.Outcome = intent.OutcomeDiscrepancy
	in.Metadata.Callbacks = append(in.Metadata.Callbacks, *record)
	in.UpdatedAt = record.ReceivedAt

	zap.L().Warn("Callback disagrees with terminal intent",
		zap.String("reference", in.ReferenceNumber),
		zap.String("status", string(in.Status)),
		zap.String("provider_status", payload.Status))
	return tx.UpdateIntent(ctx, in, in.Status)
}

func seenCallback(in *models.Intent, mapped models.IntentStatus, transactionId string) bool {
	for _, record := range in.Metadata.Callbacks {
		if record.MappedStatus == mapped && record.ProviderTransactionId == transactionId {
			return true
		}
	}
	return false
}

// recordProviderTransaction sets the provider transaction id once. A
// different id on a later callback is noted and never overwrites it.
func recordProviderTransaction(in *models.Intent, transactionId string, at time.Time) {
	switch in.ProviderTransactionId {
	case "":
		in.ProviderTransactionId = transactionId
	case transactionId:
	default:
		in.AppendAdminNote(fmt.Sprintf("%s: callback carried provider transaction %s, keeping %s",
			at.Format(time.RFC3339), transactionId, in.ProviderTransactionId))
	}
}

func (p *Processor) notifyCompletion(ctx context.Context, in *models.Intent, outcome intent.Outcome) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.notifyTimeout)
	defer cancel()

	completedAt := in.UpdatedAt
	if in.PaymentCompletedAt != nil {
		completedAt = *in.PaymentCompletedAt
	}
	summary := models.IntentSummary{
		IntentId:        in.Id,
		ReferenceNumber: in.ReferenceNumber,
		AccountId:       in.AccountId,
		Type:            in.Type,
		Amount:          in.Amount,
		Status:          in.Status,
		NewBalance:      outcome.Balance,
		CompletedAt:     completedAt,
	}
	if err := p.notifier.NotifyCompletion(notifyCtx, in.UserId, summary); err != nil {
		zap.L().Error("Failed to send completion notification",
			zap.String("reference", in.ReferenceNumber),
			zap.Error(err))
	}
}

func message(result *Result, outcome intent.Outcome, businessErr error) string {
	switch {
	case errors.Is(businessErr, store.ErrInsufficientFunds):
		return "payment failed: insufficient funds"
	case businessErr != nil:
		return businessErr.Error()
	case result.Outcome == intent.OutcomeDuplicate:
		return "callback already processed"
	case result.Outcome == intent.OutcomeDiscrepancy:
		return "intent already " + strings.ToLower(string(result.Status)) + ", discrepancy recorded"
	case outcome.Completed:
		return "payment completed"
	case result.Outcome == intent.OutcomePending:
		return "payment pending"
	}
	return "payment " + strings.ToLower(string(result.Status))
}

func compactPayload(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil
	}
	return buf.Bytes()
}
