package audit

import (
	"context"
	"testing"

	"savings-intents-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapRecorder_Record(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	recorder := NewZapRecorder(zap.New(core))

	ctx := models.WithPrincipal(context.Background(), models.Principal{UserId: "admin-1", Role: models.RoleAdmin})
	recorder.Record(ctx, "admin:admin-1", ActionIntentOverride, "intent-1", map[string]any{"to": "FAILED"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit", entries[0].LoggerName)

	fields := entries[0].ContextMap()
	assert.Equal(t, ActionIntentOverride, fields["action"])
	assert.Equal(t, "intent-1", fields["resource_id"])
	assert.Equal(t, "admin:admin-1", fields["principal"])
}

func TestNop_DoesNothing(t *testing.T) {
	var recorder Recorder = Nop{}
	recorder.Record(context.Background(), "system", ActionReconcile, "", nil)
}
