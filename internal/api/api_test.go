package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"savings-intents-go/internal/audit"
	"savings-intents-go/internal/auth"
	"savings-intents-go/internal/callback"
	"savings-intents-go/internal/database"
	"savings-intents-go/internal/intent"
	"savings-intents-go/internal/ledger"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/notify"
	"savings-intents-go/internal/query"
	"savings-intents-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type anyMethod struct{}

func (anyMethod) Accepts(method string) bool { return method != "" }

type testServer struct {
	db       *database.Service
	handler  http.Handler
	verifier *auth.Verifier
	user     models.Principal
	other    models.Principal
	admin    models.Principal
	account  *models.Account
}

type stubReconciler struct {
	report *models.ReconciliationReport
	err    error
}

func (s stubReconciler) ReconcileAllAccounts(context.Context, string) (*models.ReconciliationReport, error) {
	return s.report, s.err
}

func (s stubReconciler) VerifyAllAccounts(context.Context) (*models.ReconciliationReport, error) {
	return s.report, s.err
}

func setupServer(t *testing.T, signingSecret string) *testServer {
	return newTestServer(t, signingSecret, models.ServerConfig{
		CallbackTimeout:  10 * time.Second,
		ReconcileTimeout: time.Minute,
	}, nil)
}

// newTestServer uses the ledger reconciler when reconciler is nil
func newTestServer(t *testing.T, signingSecret string, cfg models.ServerConfig, reconciler Reconciler) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	verifier, err := auth.NewVerifier(models.AuthConfig{JwtSecret: "api-test-secret"})
	require.NoError(t, err)

	recorder := audit.Nop{}
	if reconciler == nil {
		reconciler = ledger.NewReconciler(db, recorder)
	}
	handlers := NewHandlers(
		intent.NewService(db, anyMethod{}, recorder, models.IntentsConfig{}),
		callback.NewProcessor(db, notify.LogNotifier{}, recorder, time.Second),
		query.NewService(db),
		reconciler,
		db,
		signingSecret,
	)

	s := &testServer{
		db:       db,
		handler:  Routes(handlers, verifier, cfg),
		verifier: verifier,
		admin:    models.Principal{UserId: "admin-1", Role: models.RoleAdmin},
	}
	s.user, s.account = s.addAccount(t)
	s.other, _ = s.addAccount(t)
	return s
}

func (s *testServer) addAccount(t *testing.T) (models.Principal, *models.Account) {
	t.Helper()
	ctx := context.Background()
	userId := uuid.New().String()
	_, err := s.db.CreateUser(ctx, userId, "Saver", userId+"@example.com")
	require.NoError(t, err)
	account, err := s.db.CreateAccount(ctx, store.CreateAccountParams{
		Id:            uuid.New().String(),
		AccountNumber: "ACC-" + userId[:8],
		UserId:        userId,
		AccountType:   models.AccountPrimarySavings,
		Status:        models.AccountActive,
	})
	require.NoError(t, err)
	return models.Principal{UserId: userId, Role: models.RoleUser}, account
}

func (s *testServer) do(t *testing.T, principal *models.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		token, err := s.verifier.Issue(*principal, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createIntent(t *testing.T, intentType models.IntentType, amount int64) models.IntentView {
	t.Helper()
	rec := s.do(t, &s.user, http.MethodPost, "/api/v1/intents", models.CreateIntentRequest{
		AccountId:     s.account.Id,
		Type:          string(intentType),
		Amount:        decimal.NewFromInt(amount),
		PaymentMethod: "wave",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view models.IntentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func (s *testServer) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	account, err := s.db.GetAccountById(context.Background(), s.account.Id)
	require.NoError(t, err)
	return account.Balance
}

func callbackBody(reference, status string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"transactionId":"tx-%s","status":%q,"amount":%d,"referenceNumber":%q}`,
		reference, status, amount, reference))
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) models.CallbackAck {
	t.Helper()
	var ack models.CallbackAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	return ack
}

func TestHealth(t *testing.T) {
	s := setupServer(t, "")
	rec := s.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIntentsRequireToken(t *testing.T) {
	s := setupServer(t, "")
	rec := s.do(t, nil, http.MethodGet, "/api/v1/intents", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndFetchIntent(t *testing.T) {
	s := setupServer(t, "")
	created := s.createIntent(t, models.IntentDeposit, 50000)
	assert.Equal(t, models.StatusPending, created.Status)

	rec := s.do(t, &s.user, http.MethodGet, "/api/v1/intents/reference/"+created.ReferenceNumber, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.IntentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created.Id, fetched.Id)
	assert.True(t, fetched.Amount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, models.IntentDeposit, fetched.Type)
	assert.Equal(t, s.account.AccountNumber, fetched.AccountNumber)

	rec = s.do(t, &s.other, http.MethodGet, "/api/v1/intents/"+created.Id, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, &s.admin, http.MethodGet, "/api/v1/intents/"+created.Id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, &s.user, http.MethodGet, "/api/v1/intents/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateIntent_Validation(t *testing.T) {
	s := setupServer(t, "")
	tests := map[string]any{
		"zero amount": models.CreateIntentRequest{AccountId: s.account.Id, Type: "DEPOSIT", Amount: decimal.Zero, PaymentMethod: "wave"},
		"bad type":    models.CreateIntentRequest{AccountId: s.account.Id, Type: "LOAN", Amount: decimal.NewFromInt(1), PaymentMethod: "wave"},
		"bad json":    []byte(`{"amount":`),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, &s.user, http.MethodPost, "/api/v1/intents", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPaymentCallback_CompletesOnce(t *testing.T) {
	s := setupServer(t, "")
	created := s.createIntent(t, models.IntentDeposit, 50000)
	body := callbackBody(created.ReferenceNumber, "success", 50000)

	for i := 0; i < 2; i++ {
		rec := s.do(t, nil, http.MethodPost, "/api/v1/callbacks/payment", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ack := decodeAck(t, rec)
		assert.True(t, ack.Success)
		assert.Equal(t, models.StatusCompleted, ack.Status)
		assert.Equal(t, "tx-"+created.ReferenceNumber, ack.TransactionId)
	}
	assert.True(t, s.balance(t).Equal(decimal.NewFromInt(50000)))
}

func TestPaymentCallback_InsufficientFundsIsAcknowledged(t *testing.T) {
	s := setupServer(t, "")
	created := s.createIntent(t, models.IntentWithdrawal, 10000)

	rec := s.do(t, nil, http.MethodPost, "/api/v1/callbacks/payment", callbackBody(created.ReferenceNumber, "completed", 10000))
	require.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	assert.False(t, ack.Success)
	assert.Equal(t, models.StatusFailed, ack.Status)
	assert.True(t, s.balance(t).IsZero())
}

func TestPaymentCallback_Rejections(t *testing.T) {
	s := setupServer(t, "")

	rec := s.do(t, nil, http.MethodPost, "/api/v1/callbacks/payment", []byte(`{"status":"success"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, nil, http.MethodPost, "/api/v1/callbacks/payment", callbackBody("DEP-UNKNOWN", "success", 10))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentCallback_Signature(t *testing.T) {
	secret := "whsec"
	s := setupServer(t, secret)
	created := s.createIntent(t, models.IntentDeposit, 700)
	body := callbackBody(created.ReferenceNumber, "success", 700)

	send := func(signature string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/payment", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set(signatureHeader, signature)
		}
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send("deadbeef"))
	assert.Equal(t, http.StatusOK, send("sha256="+hex.EncodeToString(sign([]byte(secret), body))))
	assert.True(t, s.balance(t).Equal(decimal.NewFromInt(700)))
}

func TestVerifyCallback(t *testing.T) {
	s := setupServer(t, "")

	rec := s.do(t, nil, http.MethodGet, "/api/v1/callbacks/verify?challenge=abc123", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"abc123"}`, rec.Body.String())

	rec = s.do(t, nil, http.MethodPost, "/api/v1/callbacks/verify", models.VerifyChallenge{Challenge: "xyz"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"xyz"}`, rec.Body.String())

	rec = s.do(t, nil, http.MethodGet, "/api/v1/callbacks/verify", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiateAndCancel(t *testing.T) {
	s := setupServer(t, "")
	created := s.createIntent(t, models.IntentInvestment, 1000)

	rec := s.do(t, &s.user, http.MethodPost, "/api/v1/intents/"+created.Id+"/initiate",
		models.InitiatePaymentRequest{ProviderTransactionId: "prov-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, &s.other, http.MethodPost, "/api/v1/intents/"+created.Id+"/cancel", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, &s.user, http.MethodPost, "/api/v1/intents/"+created.Id+"/cancel", map[string]string{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.IntentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, models.StatusCancelled, view.Status)

	rec = s.do(t, &s.user, http.MethodPost, "/api/v1/intents/"+created.Id+"/initiate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListIntents(t *testing.T) {
	s := setupServer(t, "")
	for i := 0; i < 3; i++ {
		s.createIntent(t, models.IntentDeposit, int64(100*(i+1)))
	}

	rec := s.do(t, &s.user, http.MethodGet, "/api/v1/intents?status=pending&page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var response models.IntentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Items, 2)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, response.Pagination)
	assert.Equal(t, 3, response.Counts.Pending)

	rec = s.do(t, &s.other, http.MethodGet, "/api/v1/intents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	response = models.IntentListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Empty(t, response.Items)

	rec = s.do(t, &s.user, http.MethodGet, "/api/v1/intents?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcile(t *testing.T) {
	s := setupServer(t, "")
	created := s.createIntent(t, models.IntentDeposit, 900)
	rec := s.do(t, nil, http.MethodPost, "/api/v1/callbacks/payment", callbackBody(created.ReferenceNumber, "success", 900))
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	require.NoError(t, s.db.WithinTx(ctx, func(tx store.Tx) error {
		account, err := tx.GetAccount(ctx, s.account.Id)
		if err != nil {
			return err
		}
		return tx.UpdateAccountBalance(ctx, s.account.Id, decimal.NewFromInt(12), account.Version)
	}))

	rec = s.do(t, &s.user, http.MethodPost, "/api/v1/admin/reconcile", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, &s.admin, http.MethodPost, "/api/v1/admin/reconcile?dryRun=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.balance(t).Equal(decimal.NewFromInt(12)))

	rec = s.do(t, &s.admin, http.MethodPost, "/api/v1/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.ReconciliationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.UpdatedAccounts)
	require.Len(t, report.Rows, 1)
	assert.True(t, report.Rows[0].NewBalance.Equal(decimal.NewFromInt(900)))
	assert.True(t, s.balance(t).Equal(decimal.NewFromInt(900)))
}

func TestReconcile_InterruptedRunReturnsPartialReport(t *testing.T) {
	partial := &models.ReconciliationReport{
		Rows: []models.ReconciliationRow{
			{AccountNumber: "ACC-1", OldBalance: decimal.NewFromInt(5), NewBalance: decimal.NewFromInt(50), Difference: decimal.NewFromInt(45)},
			{AccountNumber: "ACC-2", OldBalance: decimal.NewFromInt(7), NewBalance: decimal.Zero, Difference: decimal.NewFromInt(-7)},
		},
		TotalAccounts:   3,
		UpdatedAccounts: 2,
		Interruption:    "unable to reconcile account ACC-4: context deadline exceeded",
	}
	cause := fmt.Errorf("unable to reconcile account ACC-4: %w", context.DeadlineExceeded)
	s := newTestServer(t, "", models.ServerConfig{CallbackTimeout: 10 * time.Second},
		stubReconciler{report: partial, err: cause})

	rec := s.do(t, &s.admin, http.MethodPost, "/api/v1/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.ReconciliationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Complete)
	assert.Equal(t, 3, report.TotalAccounts)
	assert.Equal(t, 2, report.UpdatedAccounts)
	assert.Len(t, report.Rows, 2)
	assert.Contains(t, report.Interruption, "deadline exceeded")
}

func TestReconcile_FailureBeforeAnyAccountIsAnError(t *testing.T) {
	empty := &models.ReconciliationReport{Rows: []models.ReconciliationRow{}, Interruption: "unable to list accounts"}
	cause := fmt.Errorf("unable to list accounts: %w", store.ErrStoreUnavailable)
	s := newTestServer(t, "", models.ServerConfig{CallbackTimeout: 10 * time.Second},
		stubReconciler{report: empty, err: cause})

	rec := s.do(t, &s.admin, http.MethodPost, "/api/v1/admin/reconcile", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReconcile_NotBoundByRequestTimeout(t *testing.T) {
	s := newTestServer(t, "", models.ServerConfig{
		CallbackTimeout:  time.Nanosecond,
		ReconcileTimeout: time.Minute,
	}, nil)

	ctx := context.Background()
	require.NoError(t, s.db.WithinTx(ctx, func(tx store.Tx) error {
		account, err := tx.GetAccount(ctx, s.account.Id)
		if err != nil {
			return err
		}
		return tx.UpdateAccountBalance(ctx, s.account.Id, decimal.NewFromInt(30), account.Version)
	}))

	rec := s.do(t, &s.admin, http.MethodPost, "/api/v1/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.ReconciliationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Complete)
	assert.Empty(t, report.Interruption)
	assert.Equal(t, 1, report.UpdatedAccounts)
	assert.True(t, s.balance(t).IsZero())
}

func TestOverrideIntent(t *testing.T) {
	s := setupServer(t, "")
	created := s.createIntent(t, models.IntentDeposit, 400)
	rec := s.do(t, nil, http.MethodPost, "/api/v1/callbacks/payment", callbackBody(created.ReferenceNumber, "failed", 400))
	require.Equal(t, http.StatusOK, rec.Code)

	path := "/api/v1/admin/intents/" + created.Id + "/override"
	rec = s.do(t, &s.admin, http.MethodPost, path, models.OverrideRequest{Status: "COMPLETED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reason is required")

	rec = s.do(t, &s.admin, http.MethodPost, path, models.OverrideRequest{Status: "COMPLETED", Reason: "bank confirmed settlement"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, s.balance(t).Equal(decimal.NewFromInt(400)))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", store.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: x", store.ErrInvalidTransition), http.StatusBadRequest},
		{store.ErrMalformedCallback, http.StatusBadRequest},
		{store.ErrForbidden, http.StatusForbidden},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrUnknownReference, http.StatusNotFound},
		{store.ErrConflict, http.StatusConflict},
		{store.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
