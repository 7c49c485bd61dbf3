package callback

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"savings-intents-go/internal/database"
	"savings-intents-go/internal/intent"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyCompletion(ctx context.Context, userId string, summary models.IntentSummary) error {
	args := m.Called(ctx, userId, summary)
	return args.Error(0)
}

type fixture struct {
	store     *database.Service
	intents   *intent.Service
	processor *Processor
	notifier  *MockNotifier
	account   *models.Account
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	svc, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "callback.db"),
		MaxOpenConns: 8,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	userId := uuid.New().String()
	_, err = svc.CreateUser(ctx, userId, "Awa Sow", userId+"@example.com")
	require.NoError(t, err)
	account, err := svc.CreateAccount(ctx, store.CreateAccountParams{
		Id:            uuid.New().String(),
		AccountNumber: "ACC-" + userId[:8],
		UserId:        userId,
		AccountType:   models.AccountPrimarySavings,
	})
	require.NoError(t, err)

	notifier := &MockNotifier{}
	return &fixture{
		store:     svc,
		intents:   intent.NewService(svc, nil, nil, models.IntentsConfig{}),
		processor: NewProcessor(svc, notifier, nil, time.Second),
		notifier:  notifier,
		account:   account,
	}
}

func (f *fixture) create(t *testing.T, intentType models.IntentType, amount int64) *models.Intent {
	t.Helper()
	in, err := f.intents.Create(context.Background(), intent.CreateParams{
		UserId:        f.account.UserId,
		AccountId:     f.account.Id,
		Type:          string(intentType),
		Amount:        decimal.NewFromInt(amount),
		PaymentMethod: "orange_money",
	})
	require.NoError(t, err)
	return in
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	account, err := f.store.GetAccountById(context.Background(), f.account.Id)
	require.NoError(t, err)
	return account.Balance
}

func (f *fixture) intent(t *testing.T, id string) *models.IntentWithOwner {
	t.Helper()
	in, err := f.store.GetIntentById(context.Background(), id)
	require.NoError(t, err)
	return in
}

func body(transactionId, status string, amount int64, reference string) []byte {
	return []byte(fmt.Sprintf(`{"transactionId":%q,"status":%q,"amount":%d,"referenceNumber":%q,"customerInfo":{"phone":"+221770000000"}}`,
		transactionId, status, amount, reference))
}

func TestParse_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `status=success`},
		{name: "missing transaction", body: `{"status":"success","amount":1,"referenceNumber":"DEP-1"}`},
		{name: "missing status", body: `{"transactionId":"T","amount":1,"referenceNumber":"DEP-1"}`},
		{name: "missing amount", body: `{"transactionId":"T","status":"success","referenceNumber":"DEP-1"}`},
		{name: "null amount", body: `{"transactionId":"T","status":"success","amount":null,"referenceNumber":"DEP-1"}`},
		{name: "missing reference", body: `{"transactionId":"T","status":"success","amount":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			assert.ErrorIs(t, err, store.ErrMalformedCallback)
		})
	}

	payload, err := Parse([]byte(`{"transactionId":"T","status":"SUCCESS","amount":"50000","referenceNumber":"DEP-1"}`))
	require.NoError(t, err)
	assert.True(t, payload.Amount.Decimal.Equal(decimal.NewFromInt(50000)))
}

// Scenario A
func TestProcess_DepositCompletes(t *testing.T) {
	f := setupFixture(t)
	deposit := f.create(t, models.IntentDeposit, 50000)

	f.notifier.On("NotifyCompletion", mock.Anything, f.account.UserId, mock.MatchedBy(func(s models.IntentSummary) bool {
		return s.ReferenceNumber == deposit.ReferenceNumber && s.NewBalance.Equal(decimal.NewFromInt(50000))
	})).Return(nil).Once()

	result, err := f.processor.Process(context.Background(), body("PRV-1", "success", 50000, deposit.ReferenceNumber))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, "payment completed", result.Message)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(50000)))

	stored := f.intent(t, deposit.Id)
	assert.Equal(t, "PRV-1", stored.ProviderTransactionId)
	assert.Equal(t, "success", stored.ProviderStatus)
	assert.NotNil(t, stored.PaymentCompletedAt)
	require.Len(t, stored.Metadata.Callbacks, 1)
	assert.Equal(t, intent.OutcomeApplied, stored.Metadata.Callbacks[0].Outcome)
	assert.NotEmpty(t, stored.Metadata.Callbacks[0].Payload)

	f.notifier.AssertExpectations(t)
}

// Scenario B
func TestProcess_WithdrawalInsufficientFunds(t *testing.T) {
	f := setupFixture(t)
	f.notifier.On("NotifyCompletion", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	deposit := f.create(t, models.IntentDeposit, 5000)
	_, err := f.processor.Process(context.Background(), body("PRV-D", "completed", 5000, deposit.ReferenceNumber))
	require.NoError(t, err)

	withdrawal := f.create(t, models.IntentWithdrawal, 10000)
	result, err := f.processor.Process(context.Background(), body("PRV-W", "success", 10000, withdrawal.ReferenceNumber))
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)
	require.NotNil(t, result)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, intent.OutcomeInsufficientFunds, result.Outcome)

	stored := f.intent(t, withdrawal.Id)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.AdminNotes, "insufficient funds")
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(5000)))

	f.notifier.AssertNumberOfCalls(t, "NotifyCompletion", 1)
}

// Scenario C
func TestProcess_UnknownReference(t *testing.T) {
	f := setupFixture(t)
	deposit := f.create(t, models.IntentDeposit, 100)

	_, err := f.processor.Process(context.Background(), body("PRV-X", "success", 100, "DEP-00000000000000-NOPE0000"))
	assert.ErrorIs(t, err, store.ErrUnknownReference)

	assert.Equal(t, models.StatusPending, f.intent(t, deposit.Id).Status)
	assert.True(t, f.balance(t).IsZero())
	f.notifier.AssertNotCalled(t, "NotifyCompletion", mock.Anything, mock.Anything, mock.Anything)
}

// Scenario D
func TestProcess_DuplicateDelivery(t *testing.T) {
	f := setupFixture(t)
	f.notifier.On("NotifyCompletion", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	deposit := f.create(t, models.IntentDeposit, 50000)
	payload := body("PRV-1", "success", 50000, deposit.ReferenceNumber)

	_, err := f.processor.Process(context.Background(), payload)
	require.NoError(t, err)
	before := f.intent(t, deposit.Id)

	result, err := f.processor.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, intent.OutcomeDuplicate, result.Outcome)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(50000)))

	after := f.intent(t, deposit.Id)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "duplicate must not write")
	f.notifier.AssertNumberOfCalls(t, "NotifyCompletion", 1)
}

func TestProcess_TerminalDiscrepancyRecorded(t *testing.T) {
	f := setupFixture(t)
	f.notifier.On("NotifyCompletion", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	deposit := f.create(t, models.IntentDeposit, 50000)
	_, err := f.processor.Process(context.Background(), body("PRV-1", "success", 50000, deposit.ReferenceNumber))
	require.NoError(t, err)

	result, err := f.processor.Process(context.Background(), body("PRV-1", "failed", 50000, deposit.ReferenceNumber))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, intent.OutcomeDiscrepancy, result.Outcome)

	stored := f.intent(t, deposit.Id)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Contains(t, stored.AdminNotes, "callback discrepancy")
	assert.Len(t, stored.Metadata.Callbacks, 2)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(50000)))
}

func TestProcess_RedeliveryToFailedWithdrawalRecordedOnce(t *testing.T) {
	f := setupFixture(t)

	withdrawal := f.create(t, models.IntentWithdrawal, 700)
	payload := body("PRV-W", "success", 700, withdrawal.ReferenceNumber)
	_, err := f.processor.Process(context.Background(), payload)
	require.ErrorIs(t, err, store.ErrInsufficientFunds)
	before := f.intent(t, withdrawal.Id)
	require.Len(t, before.Metadata.Callbacks, 1)

	for i := 0; i < 3; i++ {
		result, err := f.processor.Process(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, result.Status)
		assert.Equal(t, intent.OutcomeDuplicate, result.Outcome)
	}

	after := f.intent(t, withdrawal.Id)
	assert.Len(t, after.Metadata.Callbacks, 1)
	assert.Equal(t, before.AdminNotes, after.AdminNotes)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "redelivery must not write")
	assert.True(t, f.balance(t).IsZero())
}

func TestProcess_RepeatedDiscrepancyNotedOnce(t *testing.T) {
	f := setupFixture(t)
	f.notifier.On("NotifyCompletion", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	deposit := f.create(t, models.IntentDeposit, 300)
	_, err := f.processor.Process(context.Background(), body("PRV-1", "success", 300, deposit.ReferenceNumber))
	require.NoError(t, err)

	conflicting := body("PRV-1", "failed", 300, deposit.ReferenceNumber)
	result, err := f.processor.Process(context.Background(), conflicting)
	require.NoError(t, err)
	assert.Equal(t, intent.OutcomeDiscrepancy, result.Outcome)

	result, err = f.processor.Process(context.Background(), conflicting)
	require.NoError(t, err)
	assert.Equal(t, intent.OutcomeDuplicate, result.Outcome)
	assert.Len(t, f.intent(t, deposit.Id).Metadata.Callbacks, 2)
}

func TestProcess_FailedAndCancelledHaveNoBalanceEffect(t *testing.T) {
	f := setupFixture(t)

	failed := f.create(t, models.IntentDeposit, 100)
	result, err := f.processor.Process(context.Background(), body("PRV-F", "ERROR", 100, failed.ReferenceNumber))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, result.Status)

	cancelled := f.create(t, models.IntentDeposit, 100)
	result, err = f.processor.Process(context.Background(), body("PRV-C", "Canceled", 100, cancelled.ReferenceNumber))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, result.Status)

	assert.True(t, f.balance(t).IsZero())
	f.notifier.AssertNotCalled(t, "NotifyCompletion", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_UnmappedStatusKeepsPending(t *testing.T) {
	f := setupFixture(t)
	deposit := f.create(t, models.IntentDeposit, 100)

	result, err := f.processor.Process(context.Background(), body("PRV-P", "in_progress", 100, deposit.ReferenceNumber))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, result.Status)
	assert.Equal(t, intent.OutcomePending, result.Outcome)

	stored := f.intent(t, deposit.Id)
	assert.Equal(t, "PRV-P", stored.ProviderTransactionId)
	assert.Equal(t, "in_progress", stored.ProviderStatus)
	assert.Len(t, stored.Metadata.Callbacks, 1)
}

func TestProcess_ProviderTransactionIdNeverOverwritten(t *testing.T) {
	f := setupFixture(t)
	f.notifier.On("NotifyCompletion", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	deposit := f.create(t, models.IntentDeposit, 100)

	_, err := f.processor.Process(context.Background(), body("PRV-FIRST", "pending", 100, deposit.ReferenceNumber))
	require.NoError(t, err)
	_, err = f.processor.Process(context.Background(), body("PRV-SECOND", "success", 100, deposit.ReferenceNumber))
	require.NoError(t, err)

	stored := f.intent(t, deposit.Id)
	assert.Equal(t, "PRV-FIRST", stored.ProviderTransactionId)
	assert.Contains(t, stored.AdminNotes, "PRV-SECOND")
}

func TestProcess_AmountMismatchRejected(t *testing.T) {
	f := setupFixture(t)
	deposit := f.create(t, models.IntentDeposit, 50000)

	result, err := f.processor.Process(context.Background(), body("PRV-1", "success", 5000, deposit.ReferenceNumber))
	assert.ErrorIs(t, err, store.ErrValidation)
	require.NotNil(t, result)
	assert.Equal(t, models.StatusPending, result.Status)

	stored := f.intent(t, deposit.Id)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Contains(t, stored.AdminNotes, "amount mismatch")
	assert.True(t, f.balance(t).IsZero())
}

func TestProcess_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := setupFixture(t)
	f.notifier.On("NotifyCompletion", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	deposit := f.create(t, models.IntentDeposit, 700)
	result, err := f.processor.Process(context.Background(), body("PRV-1", "success", 700, deposit.ReferenceNumber))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(700)))
}

func TestProcess_ConcurrentCompletionsApplyOnce(t *testing.T) {
	f := setupFixture(t)
	f.notifier.On("NotifyCompletion", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	deposit := f.create(t, models.IntentDeposit, 50000)
	payload := body("PRV-1", "success", 50000, deposit.ReferenceNumber)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.processor.Process(context.Background(), payload)
			if err != nil {
				errs <- err
				return
			}
			if result.Status != models.StatusCompleted {
				errs <- fmt.Errorf("unexpected status %s", result.Status)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent callback failed: %v", err)
	}
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(50000)), "balance %s", f.balance(t))
	f.notifier.AssertNumberOfCalls(t, "NotifyCompletion", 1)
}
