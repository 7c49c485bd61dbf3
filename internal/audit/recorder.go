package audit

import (
	"context"

	"savings-intents-go/internal/models"

	"go.uber.org/zap"
)

// Recorder receives audit events. Implementations must not block or fail
// the caller; Record has no error return.
type Recorder interface {
	Record(ctx context.Context, actor, action, resourceId string, details map[string]any)
}

// Audit actions
const (
	ActionIntentCreate    = "intent.create"
	ActionIntentInitiate  = "intent.initiate"
	ActionIntentCancel    = "intent.cancel"
	ActionIntentTransit   = "intent.transition"
	ActionIntentOverride  = "intent.override"
	ActionIntentExpire    = "intent.expire"
	ActionCallbackProcess = "callback.process"
	ActionReconcile       = "ledger.reconcile"
)

// ZapRecorder writes audit events to a named zap logger
type ZapRecorder struct {
	logger *zap.Logger
}

func NewZapRecorder(logger *zap.Logger) *ZapRecorder {
	if logger == nil {
		logger = zap.L()
	}
	return &ZapRecorder{logger: logger.Named("audit")}
}

func (r *ZapRecorder) Record(ctx context.Context, actor, action, resourceId string, details map[string]any) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("Audit recorder panicked", zap.Any("panic", p), zap.String("action", action))
		}
	}()

	fields := []zap.Field{
		zap.String("actor", actor),
		zap.String("action", action),
		zap.String("resource_id", resourceId),
	}
	if principal, ok := models.GetPrincipal(ctx); ok {
		fields = append(fields, zap.String("principal", principal.Actor()))
	}
	if len(details) > 0 {
		fields = append(fields, zap.Any("details", details))
	}
	r.logger.Info("Audit event", fields...)
}

// Nop discards every event
type Nop struct{}

func (Nop) Record(context.Context, string, string, string, map[string]any) {}
