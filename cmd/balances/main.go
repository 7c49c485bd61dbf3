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


package main

import (
	"context"
	"flag"
	"fmt"

	"savings-intents-go/internal/common"
	"savings-intents-go/internal/config"
	"savings-intents-go/internal/ledger"
	"savings-intents-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers    int
	totalAccounts int
	mismatched    int
}

// printAccount shows the cached balance next to the one derived from
// completed intents
func printAccount(account models.Account, computed decimal.Decimal, completed int, isLast bool) bool {
	marker := "✓"
	mismatch := !computed.Equal(account.Balance)
	if mismatch {
		marker = "✗"
	}

	fmt.Printf("%s%s %-14s %-16s %-9s cached %14s  ledger %14s (v%d, %d completed)\n",
		common.BoxPrefix(isLast),
		marker,
		account.AccountNumber,
		account.AccountType,
		account.Status,
		common.FormatAmount(account.Balance, false),
		common.FormatAmount(computed, false),
		account.Version,
		completed)
	return mismatch
}

func printUserHeader(user common.UserInfo) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Accounts: %d\n", len(user.Accounts))
	common.PrintBoxSeparator(common.WideWidth - 2)
}

func processUser(ctx context.Context, user common.UserInfo, calculator *ledger.Calculator, logger *zap.Logger, stats *balanceStats) {
	if len(user.Accounts) == 0 {
		return
	}

	printUserHeader(user)
	for i, account := range user.Accounts {
		computed, completed, err := calculator.ComputeBalance(ctx, account.Id)
		if err != nil {
			logger.Error("Failed to compute balance",
				zap.String("account_id", account.Id),
				zap.Error(err))
			continue
		}
		stats.totalAccounts++
		if printAccount(account, computed, completed, i == len(user.Accounts)-1) {
			stats.mismatched++
		}
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only, no notifier needed
	s, closeStore, err := common.OpenStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	users, err := common.InitializeUsers(ctx, s, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("ACCOUNT BALANCE REPORT", common.WideWidth)

	calculator := ledger.NewCalculator(s)
	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		processUser(ctx, user, calculator, logger, &stats)
	}

	summary := fmt.Sprintf("SUMMARY: %d accounts across %d users, %d cached balances out of step (run cmd/reconcile to correct)",
		stats.totalAccounts, stats.totalUsers, stats.mismatched)
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("accounts", stats.totalAccounts),
		zap.Int("mismatched", stats.mismatched))
}
