/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.IntentStore.
var _ store.IntentStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// Immediate transactions take the write lock at BEGIN so concurrent
	// units of work serialize instead of failing on lock upgrade.
	dsn := cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("%w: unable to ping database: %v", store.ErrStoreUnavailable, err)
	}

	service := &Service{db: db}
	if err := service.initSchema(ctx, cfg.CreateDummyUsers); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classifyError(err, "ping")
	}
	return nil
}

func (s *Service) initSchema(ctx context.Context, createDummyUsers bool) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if !createDummyUsers {
		zap.L().Info("Skipping dummy user creation (CREATE_DUMMY_USERS=false)")
		return nil
	}

	users := []struct {
		name  string
		email string
	}{
		{"Aminata Diallo", "aminata.diallo@example.com"},
		{"Moussa Traore", "moussa.traore@example.com"},
		{"Fatou Ndiaye", "fatou.ndiaye@example.com"},
	}

	for _, u := range users {
		if _, err := s.db.ExecContext(ctx, queryInsertUser, uuid.New().String(), u.name, u.email); err != nil {
			zap.L().Error("Failed to insert dummy user", zap.String("name", u.name), zap.Error(err))
			continue
		}
		zap.L().Info("Dummy user created", zap.String("name", u.name))
	}
	return nil
}

// WithinTx runs fn inside one database transaction. The transaction commits
// only when fn returns nil; any error rolls back every write made through tx.
func (s *Service) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(err, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	if err := fn(&unitOfWork{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classifyError(err, "commit transaction")
	}
	committed = true
	return nil
}

// classifyError maps driver errors onto the store error taxonomy
func classifyError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, op)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s: %v", store.ErrConflict, op, err)
		case sqliteErr.Code == sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %s: %v", store.ErrValidation, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", store.ErrStoreUnavailable, op, err)
}
