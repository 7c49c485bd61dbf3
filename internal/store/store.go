package store

import (
	"context"
	"errors"
	"time"

	"savings-intents-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations and services.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrMalformedCallback = errors.New("malformed callback")
	ErrUnknownReference  = errors.New("unknown reference number")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// CreateAccountParams contains the parameters for opening an account.
type CreateAccountParams struct {
	Id            string
	AccountNumber string
	UserId        string
	AccountType   models.AccountType
	Status        models.AccountStatus
}

// IntentFilter narrows an intent listing. Empty fields do not filter.
type IntentFilter struct {
	UserId    string
	AccountId string
	Status    models.IntentStatus
	Limit     int
	Offset    int
}

// Tx is one atomic unit of work. Every read performed through it observes
// the state the unit will commit against, and writes are compare-and-swap:
// UpdateIntent only applies while the stored status equals expected, and
// UpdateAccountBalance only applies while the stored version equals
// expectedVersion. A failed compare returns ErrConflict.
type Tx interface {
	GetIntent(ctx context.Context, intentId string) (*models.Intent, error)
	GetIntentByReference(ctx context.Context, reference string) (*models.Intent, error)
	GetAccount(ctx context.Context, accountId string) (*models.Account, error)
	ListCompletedIntents(ctx context.Context, accountId string) ([]models.Intent, error)
	UpdateIntent(ctx context.Context, intent *models.Intent, expected models.IntentStatus) error
	UpdateAccountBalance(ctx context.Context, accountId string, balance decimal.Decimal, expectedVersion int64) error
}

// IntentStore defines the contract that every backend (SQLite, PostgreSQL) must satisfy.
type IntentStore interface {
	// --- Users ---
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)

	// --- Accounts ---
	CreateAccount(ctx context.Context, params CreateAccountParams) (*models.Account, error)
	GetAccountById(ctx context.Context, accountId string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.AccountSummary, error)

	// --- Intents ---
	InsertIntent(ctx context.Context, intent *models.Intent) error
	GetIntentById(ctx context.Context, intentId string) (*models.IntentWithOwner, error)
	GetIntentByReference(ctx context.Context, reference string) (*models.IntentWithOwner, error)
	ListCompletedIntents(ctx context.Context, accountId string) ([]models.Intent, error)
	ListIntents(ctx context.Context, filter IntentFilter) ([]models.IntentWithOwner, int, error)
	CountIntentsByStatus(ctx context.Context, filter IntentFilter) (map[models.IntentStatus]int, error)
	ListPendingIntentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Intent, error)

	// --- Unit of work ---
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
