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

func (s *Service) InsertIntent(ctx context.Context, intent *models.Intent) error {
	metadata, err := encodeMetadata(intent.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, queryInsertIntent,
		intent.Id, intent.ReferenceNumber, intent.UserId, intent.AccountId, intent.Type,
		intent.Amount, intent.PaymentMethod, intent.Tranche, intent.Term, intent.UserNotes,
		intent.AdminNotes, intent.Status, intent.ProviderTransactionId, intent.ProviderStatus,
		metadata, intent.CreatedAt, intent.UpdatedAt, intent.PaymentInitiatedAt, intent.PaymentCompletedAt)
	if err != nil {
		return classifyError(err, "insert intent "+intent.ReferenceNumber)
	}
	return nil
}

func (s *Service) GetIntentById(ctx context.Context, intentId string) (*models.IntentWithOwner, error) {
	intent, err := scanIntentWithOwner(s.db.QueryRowContext(ctx, queryGetIntentWithOwnerById, intentId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: intent %s", store.ErrNotFound, intentId)
		}
		return nil, classifyError(err, "query intent")
	}
	return intent, nil
}

func (s *Service) GetIntentByReference(ctx context.Context, reference string) (*models.IntentWithOwner, error) {
	intent, err := scanIntentWithOwner(s.db.QueryRowContext(ctx, queryGetIntentWithOwnerByReference, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: reference %s", store.ErrNotFound, reference)
		}
		return nil, classifyError(err, "query intent by reference")
	}
	return intent, nil
}

func (s *Service) ListCompletedIntents(ctx context.Context, accountId string) ([]models.Intent, error) {
	return listCompletedIntents(ctx, s.db, accountId)
}

func (s *Service) ListIntents(ctx context.Context, filter store.IntentFilter) ([]models.IntentWithOwner, int, error) {
	args := filterArgs(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, queryCountIntents, args...).Scan(&total); err != nil {
		return nil, 0, classifyError(err, "count intents")
	}

	rows, err := s.db.QueryContext(ctx, queryListIntents, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, classifyError(err, "query intents")
	}
	defer closeRows(rows)

	intents := make([]models.IntentWithOwner, 0)
	for rows.Next() {
		intent, err := scanIntentWithOwner(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("unable to scan intent row: %w", err)
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classifyError(err, "iterate intent rows")
	}
	return intents, total, nil
}

func (s *Service) CountIntentsByStatus(ctx context.Context, filter store.IntentFilter) (map[models.IntentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, queryCountIntentsByStatus, filterArgs(filter)...)
	if err != nil {
		return nil, classifyError(err, "count intents by status")
	}
	defer closeRows(rows)

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
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "iterate status counts")
	}
	return counts, nil
}

func (s *Service) ListPendingIntentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Intent, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingIntentsBefore, cutoff.UTC(), limit)
	if err != nil {
		return nil, classifyError(err, "query stale intents")
	}
	defer closeRows(rows)

	var intents []models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan intent row: %w", err)
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "iterate stale intents")
	}

	zap.L().Debug("Found stale pending intents", zap.Int("count", len(intents)), zap.Time("cutoff", cutoff))
	return intents, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listCompletedIntents(ctx context.Context, q querier, accountId string) ([]models.Intent, error) {
	rows, err := q.QueryContext(ctx, queryListCompletedIntents, accountId)
	if err != nil {
		return nil, classifyError(err, "query completed intents")
	}
	defer closeRows(rows)

	var intents []models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan intent row: %w", err)
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "iterate completed intents")
	}
	return intents, nil
}

func filterArgs(filter store.IntentFilter) []any {
	status := string(filter.Status)
	return []any{
		filter.UserId, filter.UserId,
		filter.AccountId, filter.AccountId,
		status, status,
	}
}
