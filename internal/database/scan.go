package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"savings-intents-go/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner, extra ...any) (*models.Intent, error) {
	var (
		intent      models.Intent
		metadata    string
		initiatedAt sql.NullTime
		completedAt sql.NullTime
	)

	dest := []any{
		&intent.Id, &intent.ReferenceNumber, &intent.UserId, &intent.AccountId, &intent.Type,
		&intent.Amount, &intent.PaymentMethod, &intent.Tranche, &intent.Term, &intent.UserNotes,
		&intent.AdminNotes, &intent.Status, &intent.ProviderTransactionId, &intent.ProviderStatus,
		&metadata, &intent.CreatedAt, &intent.UpdatedAt, &initiatedAt, &completedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metadata), &intent.Metadata); err != nil {
		return nil, fmt.Errorf("unable to decode metadata of intent %s: %w", intent.Id, err)
	}
	if initiatedAt.Valid {
		t := initiatedAt.Time
		intent.PaymentInitiatedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		intent.PaymentCompletedAt = &t
	}
	return &intent, nil
}

func scanIntentWithOwner(row rowScanner) (*models.IntentWithOwner, error) {
	var owner models.IntentWithOwner
	intent, err := scanIntent(row, &owner.AccountNumber, &owner.AccountType, &owner.OwnerName, &owner.OwnerEmail)
	if err != nil {
		return nil, err
	}
	owner.Intent = *intent
	return &owner, nil
}

func scanAccount(row rowScanner, extra ...any) (*models.Account, error) {
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

func encodeMetadata(metadata models.IntentMetadata) (string, error) {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("unable to encode intent metadata: %w", err)
	}
	return string(encoded), nil
}
