package common

import (
	"context"
	"fmt"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"

	"go.uber.org/zap"
)

// UserInfo represents a user and their accounts for command-line utilities
type UserInfo struct {
	Id       string
	Name     string
	Email    string
	Accounts []models.Account
}

// InitializeUsers retrieves users based on an optional email filter, each
// with the accounts they own. If emailFilter is empty, returns all users.
func InitializeUsers(ctx context.Context, s store.IntentStore, emailFilter string, logger *zap.Logger) ([]UserInfo, error) {
	var selected []models.User

	if emailFilter != "" {
		logger.Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := s.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		selected = append(selected, *user)
	} else {
		allUsers, err := s.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		selected = allUsers
	}

	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	byUser := make(map[string][]models.Account)
	for _, summary := range accounts {
		byUser[summary.UserId] = append(byUser[summary.UserId], summary.Account)
	}

	users := make([]UserInfo, 0, len(selected))
	for _, u := range selected {
		users = append(users, UserInfo{
			Id:       u.Id,
			Name:     u.Name,
			Email:    u.Email,
			Accounts: byUser[u.Id],
		})
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
