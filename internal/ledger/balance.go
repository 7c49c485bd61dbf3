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

package ledger

import (
	"context"
	"fmt"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/shopspring/decimal"
)

// Sum folds the signed amounts of COMPLETED intents. Intents in any other
// status contribute nothing.
func Sum(intents []models.Intent) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, intent := range intents {
		if intent.Status != models.StatusCompleted {
			continue
		}
		total = total.Add(intent.SignedAmount())
		count++
	}
	return total, count
}

// Calculator derives balances from the intent ledger
type Calculator struct {
	store store.IntentStore
}

func NewCalculator(s store.IntentStore) *Calculator {
	return &Calculator{store: s}
}

// ComputeBalance returns the ledger-derived balance of an account and the
// number of completed intents it was folded from.
func (c *Calculator) ComputeBalance(ctx context.Context, accountId string) (decimal.Decimal, int, error) {
	if _, err := c.store.GetAccountById(ctx, accountId); err != nil {
		return decimal.Zero, 0, err
	}

	completed, err := c.store.ListCompletedIntents(ctx, accountId)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("unable to load completed intents: %w", err)
	}

	balance, count := Sum(completed)
	return balance, count, nil
}
