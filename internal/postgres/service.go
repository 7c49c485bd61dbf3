// Package postgres implements store.IntentStore on PostgreSQL through a pgx
// connection pool. Units of work take row locks with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.IntentStore.
var _ store.IntentStore = (*Service)(nil)

const uniqueViolation = "23505"

type Service struct {
	pool *pgxpool.Pool
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Url == "" {
		return nil, fmt.Errorf("database url cannot be empty")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect: %v", store.ErrStoreUnavailable, err)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: unable to ping database: %v", store.ErrStoreUnavailable, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("PostgreSQL store initialized", zap.Int32("max_conns", poolConfig.MaxConns))
	return &Service{pool: pool}, nil
}

func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classifyError(err, "ping")
	}
	return nil
}

// WithinTx runs fn inside one transaction, committing only when fn returns nil.
func (s *Service) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classifyError(err, "begin transaction")
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	if err := fn(&unitOfWork{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyError(err, "commit transaction")
	}
	return nil
}

// --- Users ---

func (s *Service) CreateUser(ctx context.Context, userId, name, email string) (*models.User, error) {
	tag, err := s.pool.Exec(ctx, queryInsertUser, userId, name, email)
	if err != nil {
		return nil, classifyError(err, "insert user")
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: user with email %s already exists", store.ErrConflict, email)
	}
	return s.GetUserByEmail(ctx, email)
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Service) getUser(ctx context.Context, query, key string) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, query, key).Scan(&user.Id, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, classifyError(err, "user "+key)
	}
	return &user, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, queryGetActiveUsers)
	if err != nil {
		return nil, classifyError(err, "query users")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.Id, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, user)
	}
	return users, classifyError(rows.Err(), "iterate users")
}

// --- Accounts ---

func (s *Service) CreateAccount(ctx context.Context, params store.CreateAccountParams) (*models.Account, error) {
	status := params.Status
	if status == "" {
		status = models.AccountActive
	}
	_, err := s.pool.Exec(ctx, queryInsertAccount,
		params.Id, params.AccountNumber, params.UserId, params.AccountType, status, time.Now().UTC())
	if err != nil {
		return nil, classifyError(err, "insert account")
	}
	return s.GetAccountById(ctx, params.Id)
}

func (s *Service) GetAccountById(ctx context.Context, accountId string) (*models.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, queryGetAccountById, accountId))
	if err != nil {
		return nil, classifyError(err, "account "+accountId)
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.AccountSummary, error) {
	rows, err := s.pool.Query(ctx, queryListAccounts)
	if err != nil {
		return nil, classifyError(err, "query accounts")
	}
	defer rows.Close()

	var accounts []models.AccountSummary
	for rows.Next() {
		var summary models.AccountSummary
		account, err := scanAccount(rows, &summary.OwnerName, &summary.OwnerEmail)
		if err != nil {
			return nil, fmt.Errorf("unable to scan account row: %w", err)
		}
		summary.Account = *account
		accounts = append(accounts, summary)
	}
	return accounts, classifyError(rows.Err(), "iterate accounts")
}

// --- Intents ---

func (s *Service) InsertIntent(ctx context.Context, intent *models.Intent) error {
	metadata, err := json.Marshal(intent.Metadata)
	if err != nil {
		return fmt.Errorf("unable to encode intent metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, queryInsertIntent,
		intent.Id, intent.ReferenceNumber, intent.UserId, intent.AccountId, intent.Type,
		intent.Amount, intent.PaymentMethod, intent.Tranche, intent.Term, intent.UserNotes,
		intent.AdminNotes, intent.Status, intent.ProviderTransactionId, intent.ProviderStatus,
		string(metadata), intent.CreatedAt, intent.UpdatedAt, intent.PaymentInitiatedAt, intent.PaymentCompletedAt)
	if err != nil {
		return classifyError(err, "insert intent "+intent.ReferenceNumber)
	}
	return nil
}

func (s *Service) GetIntentById(ctx context.Context, intentId string) (*models.IntentWithOwner, error) {
	intent, err := scanIntentWithOwner(s.pool.QueryRow(ctx, queryGetIntentWithOwnerById, intentId))
	if err != nil {
		return nil, classifyError(err, "intent "+intentId)
	}
	return intent, nil
}

func (s *Service) GetIntentByReference(ctx context.Context, reference string) (*models.IntentWithOwner, error) {
	intent, err := scanIntentWithOwner(s.pool.QueryRow(ctx, queryGetIntentWithOwnerByReference, reference))
	if err != nil {
		return nil, classifyError(err, "reference "+reference)
	}
	return intent, nil
}

func (s *Service) ListCompletedIntents(ctx context.Context, accountId string) ([]models.Intent, error) {
	return collectIntents(s.pool.Query(ctx, queryListCompletedIntents, accountId))
}

func (s *Service) ListPendingIntentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Intent, error) {
	return collectIntents(s.pool.Query(ctx, queryListPendingIntentsBefore, cutoff, limit))
}

func (s *Service) ListIntents(ctx context.Context, filter store.IntentFilter) ([]models.IntentWithOwner, int, error) {
	args := []any{filter.UserId, filter.AccountId, string(filter.Status)}

	var total int
	if err := s.pool.QueryRow(ctx, queryCountIntents, args...).Scan(&total); err != nil {
		return nil, 0, classifyError(err, "count intents")
	}

	rows, err := s.pool.Query(ctx, queryListIntents, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, classifyError(err, "query intents")
	}
	defer rows.Close()

	intents := make([]models.IntentWithOwner, 0)
	for rows.Next() {
		intent, err := scanIntentWithOwner(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("unable to scan intent row: %w", err)
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classifyError(err, "iterate intents")
	}
	return intents, total, nil
}

func (s *Service) CountIntentsByStatus(ctx context.Context, filter store.IntentFilter) (map[models.IntentStatus]int, error) {
	rows, err := s.pool.Query(ctx, queryCountIntentsByStatus, filter.UserId, filter.AccountId, string(filter.Status))
	if err != nil {
		return nil, classifyError(err, "count intents by status")
	}
	defer rows.Close()

	counts := make(map[models.IntentStatus]int)
	for rows.Next() {
		var (
			status models.IntentStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("unable to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, classifyError(rows.Err(), "iterate status counts")
}

// --- Unit of work ---

var _ store.Tx = (*unitOfWork)(nil)

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) GetIntent(ctx context.Context, intentId string) (*models.Intent, error) {
	intent, err := scanIntent(u.tx.QueryRow(ctx, queryLockIntentById, intentId))
	if err != nil {
		return nil, classifyError(err, "intent "+intentId)
	}
	return intent, nil
}

func (u *unitOfWork) GetIntentByReference(ctx context.Context, reference string) (*models.Intent, error) {
	intent, err := scanIntent(u.tx.QueryRow(ctx, queryLockIntentByReference, reference))
	if err != nil {
		return nil, classifyError(err, "reference "+reference)
	}
	return intent, nil
}

func (u *unitOfWork) GetAccount(ctx context.Context, accountId string) (*models.Account, error) {
	account, err := scanAccount(u.tx.QueryRow(ctx, queryLockAccountById, accountId))
	if err != nil {
		return nil, classifyError(err, "account "+accountId)
	}
	return account, nil
}

func (u *unitOfWork) ListCompletedIntents(ctx context.Context, accountId string) ([]models.Intent, error) {
	return collectIntents(u.tx.Query(ctx, queryListCompletedIntents, accountId))
}

func (u *unitOfWork) UpdateIntent(ctx context.Context, intent *models.Intent, expected models.IntentStatus) error {
	metadata, err := json.Marshal(intent.Metadata)
	if err != nil {
		return fmt.Errorf("unable to encode intent metadata: %w", err)
	}
	tag, err := u.tx.Exec(ctx, queryUpdateIntent,
		intent.AdminNotes, intent.Status, intent.ProviderTransactionId, intent.ProviderStatus,
		string(metadata), intent.UpdatedAt, intent.PaymentInitiatedAt, intent.PaymentCompletedAt,
		intent.Id, expected)
	if err != nil {
		return classifyError(err, "update intent")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: intent %s is no longer %s", store.ErrConflict, intent.Id, expected)
	}
	return nil
}

func (u *unitOfWork) UpdateAccountBalance(ctx context.Context, accountId string, balance decimal.Decimal, expectedVersion int64) error {
	tag, err := u.tx.Exec(ctx, queryUpdateAccountBalance, balance, accountId, expectedVersion)
	if err != nil {
		return classifyError(err, "update account balance")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s changed since version %d", store.ErrConflict, accountId, expectedVersion)
	}
	return nil
}

// --- Scanning ---

func scanIntent(row pgx.Row, extra ...any) (*models.Intent, error) {
	var (
		intent   models.Intent
		metadata []byte
	)
	dest := []any{
		&intent.Id, &intent.ReferenceNumber, &intent.UserId, &intent.AccountId, &intent.Type,
		&intent.Amount, &intent.PaymentMethod, &intent.Tranche, &intent.Term, &intent.UserNotes,
		&intent.AdminNotes, &intent.Status, &intent.ProviderTransactionId, &intent.ProviderStatus,
		&metadata, &intent.CreatedAt, &intent.UpdatedAt, &intent.PaymentInitiatedAt, &intent.PaymentCompletedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &intent.Metadata); err != nil {
		return nil, fmt.Errorf("unable to decode metadata of intent %s: %w", intent.Id, err)
	}
	return &intent, nil
}

func scanIntentWithOwner(row pgx.Row) (*models.IntentWithOwner, error) {
	var owner models.IntentWithOwner
	intent, err := scanIntent(row, &owner.AccountNumber, &owner.AccountType, &owner.OwnerName, &owner.OwnerEmail)
	if err != nil {
		return nil, err
	}
	owner.Intent = *intent
	return &owner, nil
}

func scanAccount(row pgx.Row, extra ...any) (*models.Account, error) {
	var account models.Account
	dest := []any{
		&account.Id, &account.AccountNumber, &account.UserId, &account.AccountType, &account.Balance,
		&account.Status, &account.Version, &account.CreatedAt, &account.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &account, nil
}

func collectIntents(rows pgx.Rows, err error) ([]models.Intent, error) {
	if err != nil {
		return nil, classifyError(err, "query intents")
	}
	defer rows.Close()

	var intents []models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan intent row: %w", err)
		}
		intents = append(intents, *intent)
	}
	return intents, classifyError(rows.Err(), "iterate intents")
}

// classifyError maps pgx errors onto the store error taxonomy
func classifyError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s: %s", store.ErrConflict, op, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: %s: %w", store.ErrStoreUnavailable, op, err)
}
