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


// Package sweeper cancels PENDING intents that were abandoned before payment
// was initiated.
package sweeper

import (
	"context"
	"sync"
	"time"

	"savings-intents-go/internal/models"

	"go.uber.org/zap"
)

const defaultBatchSize = 100

// PendingLister lists PENDING intents created before a cutoff
type PendingLister interface {
	ListPendingIntentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Intent, error)
}

// Expirer cancels a single stale intent, reporting whether it changed
type Expirer interface {
	ExpireStale(ctx context.Context, intentId string, window time.Duration) (bool, error)
}

// Config contains configuration for Sweeper
type Config struct {
	Store     PendingLister
	Intents   Expirer
	Window    time.Duration
	Interval  time.Duration
	BatchSize int
}

// Sweeper periodically expires stale PENDING intents
type Sweeper struct {
	store     PendingLister
	intents   Expirer
	window    time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg Config) *Sweeper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Sweeper{
		store:     cfg.Store,
		intents:   cfg.Intents,
		window:    cfg.Window,
		interval:  cfg.Interval,
		batchSize: batchSize,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start launches the sweep loop. A non-positive window or interval disables it.
func (s *Sweeper) Start(ctx context.Context) {
	if s.window <= 0 || s.interval <= 0 {
		zap.L().Info("Intent expiry sweeper disabled")
		close(s.doneChan)
		return
	}

	go s.loop(ctx)

	zap.L().Info("Intent expiry sweeper started",
		zap.Duration("window", s.window),
		zap.Duration("interval", s.interval))
}

// Stop waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.doneChan
	zap.L().Info("Intent expiry sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				zap.L().Error("Intent expiry sweep failed", zap.Error(err))
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce expires one batch of stale intents and returns how many were
// cancelled. Each intent is its own unit of work, so a failure or
// cancellation part way leaves earlier expiries in place.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.window)
	stale, err := s.store.ListPendingIntentsBefore(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, in := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		ok, err := s.intents.ExpireStale(ctx, in.Id, s.window)
		if err != nil {
			zap.L().Warn("Failed to expire intent",
				zap.String("reference", in.ReferenceNumber),
				zap.Error(err))
			continue
		}
		if ok {
			expired++
			zap.L().Info("Expired stale intent",
				zap.String("reference", in.ReferenceNumber),
				zap.Time("created_at", in.CreatedAt))
		}
	}

	if expired > 0 {
		zap.L().Info("Intent expiry sweep complete",
			zap.Int("candidates", len(stale)),
			zap.Int("expired", expired))
	}
	return expired, nil
}
