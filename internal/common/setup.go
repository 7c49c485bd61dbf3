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


package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"savings-intents-go/internal/audit"
	"savings-intents-go/internal/callback"
	"savings-intents-go/internal/config"
	"savings-intents-go/internal/database"
	"savings-intents-go/internal/intent"
	"savings-intents-go/internal/ledger"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/notify"
	"savings-intents-go/internal/postgres"
	"savings-intents-go/internal/query"
	"savings-intents-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store      store.IntentStore
	Notifier   notify.Notifier
	Intents    *intent.Service
	Callbacks  *callback.Processor
	Queries    *query.Service
	Calculator *ledger.Calculator
	Reconciler *ledger.Reconciler

	closers []func()
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the configured store and notifier and builds every
// domain service on top of them.
func InitializeServices(ctx context.Context, cfg *models.Config, logger *zap.Logger) (*Services, error) {
	s, closeStore, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	services := &Services{Store: s, closers: []func(){closeStore}}

	methods, err := LoadPaymentMethods(cfg.Intents.PaymentMethodsFile)
	if err != nil {
		services.Close()
		return nil, err
	}

	notifier, closeNotifier, err := NewNotifier(cfg.Notify)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Notifier = notifier
	if closeNotifier != nil {
		services.closers = append(services.closers, closeNotifier)
	}

	recorder := audit.NewZapRecorder(logger)
	services.Intents = intent.NewService(s, methods, recorder, cfg.Intents)
	services.Callbacks = callback.NewProcessor(s, notifier, recorder, cfg.Notify.Timeout)
	services.Queries = query.NewService(s)
	services.Calculator = ledger.NewCalculator(s)
	services.Reconciler = ledger.NewReconciler(s, recorder)

	return services, nil
}

// OpenStore initializes just the configured store backend. Useful for
// read-only tools like the balance listing.
func OpenStore(ctx context.Context, cfg models.DatabaseConfig) (store.IntentStore, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		zap.L().Info("Using PostgreSQL store")
		pg, err := postgres.NewService(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.DriverSqlite, "":
		db, err := database.NewService(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// NewNotifier builds the completion notifier selected by NOTIFY_BACKEND. The
// returned close function may be nil.
func NewNotifier(cfg models.NotifyConfig) (notify.Notifier, func(), error) {
	switch cfg.Backend {
	case config.NotifyRabbitMq:
		n, err := notify.NewRabbitNotifier(cfg)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	case config.NotifyHttp:
		n, err := notify.NewWebhookNotifier(cfg)
		if err != nil {
			return nil, nil, err
		}
		return n, nil, nil
	case config.NotifyLog, "":
		return notify.LogNotifier{}, nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported notify backend %q", cfg.Backend)
}

// Close releases resources in reverse order of acquisition
func (cs *Services) Close() {
	for i := len(cs.closers) - 1; i >= 0; i-- {
		cs.closers[i]()
	}
	cs.closers = nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
