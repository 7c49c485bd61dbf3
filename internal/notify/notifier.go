// Package notify delivers best-effort completion notifications. Delivery
// failures are reported to the caller, which logs and discards them.
package notify

import (
	"context"

	"savings-intents-go/internal/models"

	"go.uber.org/zap"
)

// Notifier dispatches a completion notice for a user's intent
type Notifier interface {
	NotifyCompletion(ctx context.Context, userId string, summary models.IntentSummary) error
}

// Notification is the message body published by every transport
type Notification struct {
	Event   string               `json:"event"`
	UserId  string               `json:"userId"`
	Summary models.IntentSummary `json:"summary"`
}

const EventIntentCompleted = "intent.completed"

// LogNotifier records notifications in the service log only
type LogNotifier struct{}

func (LogNotifier) NotifyCompletion(_ context.Context, userId string, summary models.IntentSummary) error {
	zap.L().Info("Completion notification",
		zap.String("user_id", userId),
		zap.String("reference", summary.ReferenceNumber),
		zap.String("type", string(summary.Type)),
		zap.String("amount", summary.Amount.String()),
		zap.String("new_balance", summary.NewBalance.String()))
	return nil
}
