package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Atomically runs fn as one unit of work on s. A unit that fails with
// ErrConflict is retried once from scratch; a second conflict is returned
// to the caller. fn must not keep state across attempts.
func Atomically(ctx context.Context, s IntentStore, fn func(tx Tx) error) error {
	err := s.WithinTx(ctx, fn)
	if !errors.Is(err, ErrConflict) {
		return err
	}

	zap.L().Warn("Unit of work conflicted, retrying once", zap.Error(err))
	return s.WithinTx(ctx, fn)
}
