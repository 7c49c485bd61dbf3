// Package intent implements the transaction intent lifecycle: creation,
// lookup, automatic state transitions and audited administrative overrides.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"savings-intents-go/internal/audit"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultReferenceAttempts = 3

// MethodCatalog reports whether a payment method is accepted
type MethodCatalog interface {
	Accepts(method string) bool
}

// CreateParams contains the parameters for recording a new intent.
type CreateParams struct {
	UserId        string
	AccountId     string
	Type          string
	Amount        decimal.Decimal
	PaymentMethod string
	Tranche       string
	Term          string
	Notes         string
}

type Service struct {
	store    store.IntentStore
	methods  MethodCatalog
	recorder audit.Recorder
	attempts int

	now    func() time.Time
	suffix func() string
}

func NewService(s store.IntentStore, methods MethodCatalog, recorder audit.Recorder, cfg models.IntentsConfig) *Service {
	attempts := cfg.ReferenceAttempts
	if attempts <= 0 {
		attempts = defaultReferenceAttempts
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		store:    s,
		methods:  methods,
		recorder: recorder,
		attempts: attempts,
		now:      time.Now,
		suffix:   randomSuffix,
	}
}

// Create validates and persists a new PENDING intent under a fresh
// reference number. A reference collision is retried with a new number up
// to the configured attempts before ErrConflict is returned.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Intent, error) {
	intentType, err := models.ParseIntentType(params.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero, got %s", store.ErrValidation, params.Amount)
	}
	method := strings.TrimSpace(params.PaymentMethod)
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", store.ErrValidation)
	}
	if s.methods != nil && !s.methods.Accepts(method) {
		return nil, fmt.Errorf("%w: payment method %q is not supported", store.ErrValidation, method)
	}
	if params.UserId == "" || params.AccountId == "" {
		return nil, fmt.Errorf("%w: user and account are required", store.ErrValidation)
	}

	if _, err := s.store.GetUserById(ctx, params.UserId); err != nil {
		return nil, err
	}
	account, err := s.store.GetAccountById(ctx, params.AccountId)
	if err != nil {
		return nil, err
	}
	if account.UserId != params.UserId {
		return nil, fmt.Errorf("%w: account %s does not belong to user %s", store.ErrValidation, account.AccountNumber, params.UserId)
	}
	if account.Status != models.AccountActive {
		return nil, fmt.Errorf("%w: account %s is %s", store.ErrValidation, account.AccountNumber, account.Status)
	}

	now := s.now().UTC()
	actor := string(models.RoleUser) + ":" + params.UserId
	intent := &models.Intent{
		Id:            uuid.New().String(),
		UserId:        params.UserId,
		AccountId:     account.Id,
		Type:          intentType,
		Amount:        params.Amount,
		PaymentMethod: method,
		Tranche:       params.Tranche,
		Term:          params.Term,
		UserNotes:     params.Notes,
		Status:        models.StatusPending,
		Metadata: models.IntentMetadata{
			Trail: []models.StatusChange{{To: models.StatusPending, Actor: actor, Reason: "created", At: now}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		intent.ReferenceNumber = NewReferenceNumber(intentType, now, s.suffix())

		err := s.store.InsertIntent(ctx, intent)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= s.attempts {
			return nil, err
		}
		zap.L().Warn("Reference number collision, regenerating",
			zap.String("reference", intent.ReferenceNumber),
			zap.Int("attempt", attempt))
	}

	zap.L().Info("Intent created",
		zap.String("intent_id", intent.Id),
		zap.String("reference", intent.ReferenceNumber),
		zap.String("type", string(intent.Type)),
		zap.String("amount", intent.Amount.String()))

	s.recorder.Record(ctx, actor, audit.ActionIntentCreate, intent.Id, map[string]any{
		"reference": intent.ReferenceNumber,
		"type":      intent.Type,
		"amount":    intent.Amount.String(),
	})
	return intent, nil
}

func (s *Service) FindById(ctx context.Context, intentId string) (*models.IntentWithOwner, error) {
	return s.store.GetIntentById(ctx, intentId)
}

func (s *Service) FindByReference(ctx context.Context, reference string) (*models.IntentWithOwner, error) {
	return s.store.GetIntentByReference(ctx, reference)
}

// Transition moves an intent along the automatic state graph. Requesting
// the status the intent already has is an idempotent no-op. A completion
// goes through the balance update in the same unit of work; when it fails
// for insufficient funds the intent is committed as FAILED and the error is
// returned alongside it.
func (s *Service) Transition(ctx context.Context, intentId string, next models.IntentStatus, note, actor string) (*models.Intent, error) {
	var (
		result  *models.Intent
		outcome Outcome
		changed bool
	)

	err := store.Atomically(ctx, s.store, func(tx store.Tx) error {
		result, outcome, changed = nil, Outcome{}, false

		in, err := tx.GetIntent(ctx, intentId)
		if err != nil {
			return err
		}
		result = in
		if in.Status == next {
			return nil
		}

		outcome, err = ApplyStatus(ctx, tx, in, StatusUpdate{Next: next, Actor: actor, Note: note, At: s.now().UTC()})
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logTransition(result, actor)
		s.recorder.Record(ctx, actor, audit.ActionIntentTransit, result.Id, map[string]any{
			"status": result.Status,
			"note":   note,
		})
	}
	return result, outcome.Err
}

// MarkPaymentInitiated hands a PENDING intent to the provider, moving it to
// PROCESSING. The provider transaction id is recorded if none is set yet.
func (s *Service) MarkPaymentInitiated(ctx context.Context, principal models.Principal, intentId, providerTransactionId string) (*models.Intent, error) {
	var (
		result  *models.Intent
		changed bool
	)

	err := store.Atomically(ctx, s.store, func(tx store.Tx) error {
		result, changed = nil, false

		in, err := tx.GetIntent(ctx, intentId)
		if err != nil {
			return err
		}
		if err := authorize(principal, in); err != nil {
			return err
		}
		if in.ProviderTransactionId != "" && providerTransactionId != "" && in.ProviderTransactionId != providerTransactionId {
			return fmt.Errorf("%w: intent already has provider transaction %s", store.ErrValidation, in.ProviderTransactionId)
		}
		result = in
		if in.Status == models.StatusProcessing {
			return nil
		}
		if in.Status != models.StatusPending {
			return fmt.Errorf("%w: cannot initiate payment for %s intent", store.ErrInvalidTransition, in.Status)
		}

		now := s.now().UTC()
		if in.ProviderTransactionId == "" {
			in.ProviderTransactionId = providerTransactionId
		}
		in.PaymentInitiatedAt = &now

		expected := in.Status
		stamp(in, models.StatusProcessing, principal.Actor(), "payment initiated", now, false)
		if err := tx.UpdateIntent(ctx, in, expected); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logTransition(result, principal.Actor())
		s.recorder.Record(ctx, principal.Actor(), audit.ActionIntentInitiate, result.Id, map[string]any{
			"provider_transaction_id": result.ProviderTransactionId,
		})
	}
	return result, nil
}

// Cancel cancels a PENDING or PROCESSING intent on behalf of its owner or
// an administrator. Cancelling an already cancelled intent is a no-op.
func (s *Service) Cancel(ctx context.Context, principal models.Principal, intentId, reason string) (*models.Intent, error) {
	var (
		result  *models.Intent
		changed bool
	)

	err := store.Atomically(ctx, s.store, func(tx store.Tx) error {
		result, changed = nil, false

		in, err := tx.GetIntent(ctx, intentId)
		if err != nil {
			return err
		}
		if err := authorize(principal, in); err != nil {
			return err
		}
		result = in
		if in.Status == models.StatusCancelled {
			return nil
		}
		if reason == "" {
			reason = "cancelled by " + string(principal.Role)
		}
		if _, err := ApplyStatus(ctx, tx, in, StatusUpdate{
			Next:  models.StatusCancelled,
			Actor: principal.Actor(),
			Note:  reason,
			At:    s.now().UTC(),
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logTransition(result, principal.Actor())
		s.recorder.Record(ctx, principal.Actor(), audit.ActionIntentCancel, result.Id, map[string]any{"reason": reason})
	}
	return result, nil
}

// ExpireStale cancels one PENDING intent that was never initiated. An intent
// that moved on since it was listed is left alone.
func (s *Service) ExpireStale(ctx context.Context, intentId string, window time.Duration) (bool, error) {
	var expired bool
	actor := "system:expiry"

	err := store.Atomically(ctx, s.store, func(tx store.Tx) error {
		expired = false

		in, err := tx.GetIntent(ctx, intentId)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if in.Status != models.StatusPending || now.Sub(in.CreatedAt) < window {
			return nil
		}
		if _, err := ApplyStatus(ctx, tx, in, StatusUpdate{
			Next:  models.StatusCancelled,
			Actor: actor,
			Note:  fmt.Sprintf("expired after %s without payment", window),
			At:    now,
		}); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if expired {
		s.recorder.Record(ctx, actor, audit.ActionIntentExpire, intentId, nil)
	}
	return expired, nil
}

func (s *Service) logTransition(in *models.Intent, actor string) {
	zap.L().Info("Intent status changed",
		zap.String("intent_id", in.Id),
		zap.String("reference", in.ReferenceNumber),
		zap.String("status", string(in.Status)),
		zap.String("actor", actor))
}

func authorize(principal models.Principal, in *models.Intent) error {
	if principal.IsAdmin() || (principal.UserId != "" && principal.UserId == in.UserId) {
		return nil
	}
	return fmt.Errorf("%w: intent %s", store.ErrForbidden, in.Id)
}
