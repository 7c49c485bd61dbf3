package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/shopspring/decimal"
)

// Compile-time check: *unitOfWork must satisfy store.Tx.
var _ store.Tx = (*unitOfWork)(nil)

// unitOfWork routes every read and write through one *sql.Tx
type unitOfWork struct {
	tx *sql.Tx
}

func (u *unitOfWork) GetIntent(ctx context.Context, intentId string) (*models.Intent, error) {
	intent, err := scanIntent(u.tx.QueryRowContext(ctx, queryGetIntentById, intentId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: intent %s", store.ErrNotFound, intentId)
		}
		return nil, classifyError(err, "query intent")
	}
	return intent, nil
}

func (u *unitOfWork) GetIntentByReference(ctx context.Context, reference string) (*models.Intent, error) {
	intent, err := scanIntent(u.tx.QueryRowContext(ctx, queryGetIntentByReference, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: reference %s", store.ErrNotFound, reference)
		}
		return nil, classifyError(err, "query intent by reference")
	}
	return intent, nil
}

func (u *unitOfWork) GetAccount(ctx context.Context, accountId string) (*models.Account, error) {
	account, err := scanAccount(u.tx.QueryRowContext(ctx, queryGetAccountById, accountId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", store.ErrNotFound, accountId)
		}
		return nil, classifyError(err, "query account")
	}
	return account, nil
}

func (u *unitOfWork) ListCompletedIntents(ctx context.Context, accountId string) ([]models.Intent, error) {
	return listCompletedIntents(ctx, u.tx, accountId)
}

func (u *unitOfWork) UpdateIntent(ctx context.Context, intent *models.Intent, expected models.IntentStatus) error {
	metadata, err := encodeMetadata(intent.Metadata)
	if err != nil {
		return err
	}

	result, err := u.tx.ExecContext(ctx, queryUpdateIntent,
		intent.AdminNotes, intent.Status, intent.ProviderTransactionId, intent.ProviderStatus,
		metadata, intent.UpdatedAt, intent.PaymentInitiatedAt, intent.PaymentCompletedAt,
		intent.Id, expected)
	if err != nil {
		return classifyError(err, "update intent")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classifyError(err, "rows affected")
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: intent %s is no longer %s", store.ErrConflict, intent.Id, expected)
	}
	return nil
}

func (u *unitOfWork) UpdateAccountBalance(ctx context.Context, accountId string, balance decimal.Decimal, expectedVersion int64) error {
	result, err := u.tx.ExecContext(ctx, queryUpdateAccountBalance, balance, time.Now().UTC(), accountId, expectedVersion)
	if err != nil {
		return classifyError(err, "update account balance")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classifyError(err, "rows affected")
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %s changed since version %d", store.ErrConflict, accountId, expectedVersion)
	}
	return nil
}
