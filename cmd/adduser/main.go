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
	"errors"
	"flag"
	"fmt"
	"regexp"
	"strings"
	"time"

	"savings-intents-go/internal/auth"
	"savings-intents-go/internal/common"
	"savings-intents-go/internal/config"
	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type accountResult struct {
	accountType models.AccountType
	number      string
	err         error
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func parseAccountTypes(raw string) ([]models.AccountType, error) {
	var types []models.AccountType
	seen := make(map[models.AccountType]bool)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		accountType, err := models.ParseAccountType(part)
		if err != nil {
			return nil, err
		}
		if !seen[accountType] {
			seen[accountType] = true
			types = append(types, accountType)
		}
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("at least one account type is required")
	}
	return types, nil
}

// newAccountNumber yields e.g. PS-4F1A9C2B0D
func newAccountNumber(accountType models.AccountType) string {
	prefix := "PS"
	if accountType == models.AccountBondInvestment {
		prefix = "BI"
	}
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return prefix + "-" + id[:10]
}

func openAccounts(ctx context.Context, s store.IntentStore, userId string, types []models.AccountType) []accountResult {
	results := make([]accountResult, 0, len(types))
	for _, accountType := range types {
		result := accountResult{accountType: accountType, number: newAccountNumber(accountType)}
		_, result.err = s.CreateAccount(ctx, store.CreateAccountParams{
			Id:            uuid.New().String(),
			AccountNumber: result.number,
			UserId:        userId,
			AccountType:   accountType,
			Status:        models.AccountActive,
		})
		if result.err != nil {
			zap.L().Error("Failed to open account",
				zap.String("user_id", userId),
				zap.String("account_type", string(accountType)),
				zap.Error(result.err))
		}
		results = append(results, result)
	}
	return results
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	accountsFlag := flag.String("accounts", string(models.AccountPrimarySavings), "Comma separated account types to open")
	adminFlag := flag.Bool("admin", false, "Issue an admin token instead of a user token")
	tokenTtl := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the issued session token")
	flag.Parse()

	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --name and --email")
	}
	if err := validateName(*nameFlag); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}
	accountTypes, err := parseAccountTypes(*accountsFlag)
	if err != nil {
		zap.L().Fatal("Invalid account types", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	s, closeStore, err := common.OpenStore(ctx, cfg.Database)
	if err != nil {
		zap.L().Fatal("Failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	userId := uuid.New().String()
	zap.L().Info("Creating user",
		zap.String("id", userId),
		zap.String("name", *nameFlag),
		zap.String("email", *emailFlag))

	user, err := s.CreateUser(ctx, userId, *nameFlag, *emailFlag)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			zap.L().Fatal("User already exists with this email", zap.String("email", *emailFlag))
		}
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	results := openAccounts(ctx, s, user.Id, accountTypes)

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:    %s\n", user.Id)
	fmt.Printf("Name:  %s\n", user.Name)
	fmt.Printf("Email: %s\n", user.Email)
	common.PrintBoxSeparator(common.DefaultWidth - 2)
	failed := 0
	for i, result := range results {
		prefix := common.BoxPrefix(i == len(results)-1)
		if result.err != nil {
			failed++
			fmt.Printf("%s✗ %-16s failed: %v\n", prefix, result.accountType, result.err)
			continue
		}
		fmt.Printf("%s✓ %-16s %s\n", prefix, result.accountType, result.number)
	}

	if cfg.Auth.JwtSecret != "" {
		verifier, err := auth.NewVerifier(cfg.Auth)
		if err != nil {
			zap.L().Fatal("Invalid auth configuration", zap.Error(err))
		}
		role := models.RoleUser
		if *adminFlag {
			role = models.RoleAdmin
		}
		token, err := verifier.Issue(models.Principal{UserId: user.Id, Role: role}, *tokenTtl)
		if err != nil {
			zap.L().Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Printf("\nToken (%s, %s):\n%s\n", role, *tokenTtl, token)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	if failed > 0 {
		zap.L().Warn("User created but some accounts failed to open",
			zap.String("user_id", user.Id),
			zap.Int("failed", failed))
		return
	}
	zap.L().Info("User and accounts created successfully",
		zap.String("user_id", user.Id),
		zap.Int("accounts", len(results)))
}
