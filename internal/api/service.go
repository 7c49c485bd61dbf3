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


package api

import (
	"context"
	"fmt"

	"savings-intents-go/internal/callback"
	"savings-intents-go/internal/intent"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/query"
)

// Pinger reports store reachability for the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reconciler runs the balance reconciliation behind the admin trigger
type Reconciler interface {
	ReconcileAllAccounts(ctx context.Context, actor string) (*models.ReconciliationReport, error)
	VerifyAllAccounts(ctx context.Context) (*models.ReconciliationReport, error)
}

// Handlers serves the HTTP surface over the intent services
type Handlers struct {
	intents       *intent.Service
	callbacks     *callback.Processor
	queries       *query.Service
	reconciler    Reconciler
	store         Pinger
	signingSecret []byte
}

func NewHandlers(
	intents *intent.Service,
	callbacks *callback.Processor,
	queries *query.Service,
	reconciler Reconciler,
	store Pinger,
	signingSecret string,
) *Handlers {
	h := &Handlers{
		intents:    intents,
		callbacks:  callbacks,
		queries:    queries,
		reconciler: reconciler,
		store:      store,
	}
	if signingSecret != "" {
		h.signingSecret = []byte(signingSecret)
	}
	return h
}

func (h *Handlers) HealthCheck(ctx context.Context) error {
	if err := h.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
