package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) CreateAccount(ctx context.Context, params store.CreateAccountParams) (*models.Account, error) {
	status := params.Status
	if status == "" {
		status = models.AccountActive
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, queryInsertAccount,
		params.Id, params.AccountNumber, params.UserId, params.AccountType, status, now, now)
	if err != nil {
		zap.L().Error("Failed to insert account",
			zap.String("user_id", params.UserId),
			zap.String("account_number", params.AccountNumber),
			zap.Error(err))
		return nil, classifyError(err, "insert account")
	}

	zap.L().Info("Account created",
		zap.String("account_id", params.Id),
		zap.String("account_number", params.AccountNumber),
		zap.String("account_type", string(params.AccountType)))

	return s.GetAccountById(ctx, params.Id)
}

func (s *Service) GetAccountById(ctx context.Context, accountId string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountById, accountId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", store.ErrNotFound, accountId)
		}
		return nil, classifyError(err, "query account")
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.AccountSummary, error) {
	rows, err := s.db.QueryContext(ctx, queryListAccounts)
	if err != nil {
		return nil, classifyError(err, "query accounts")
	}
	defer closeRows(rows)

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
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "iterate account rows")
	}
	return accounts, nil
}
