package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/library/internal/logger"
)

// ResetPurger deletes password resets that can no longer be used.
type ResetPurger interface {
	PurgeExpiredResets(ctx context.Context, before time.Time) (int64, error)
}

// PurgeResetTokensTask removes expired and used password reset tokens.
type PurgeResetTokensTask struct{}

func (t PurgeResetTokensTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "purge_reset_tokens",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func PurgeResetTokensProcessor(purger ResetPurger, log *slog.Logger) backlite.QueueProcessor[PurgeResetTokensTask] {
	log = logger.OrDiscard(log).With("component", "tasks", "queue", "purge_reset_tokens")
	return func(ctx context.Context, task PurgeResetTokensTask) error {
		if purger == nil {
			return fmt.Errorf("reset purger not configured")
		}

		deleted, err := purger.PurgeExpiredResets(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("purge reset tokens: %w", err)
		}

		log.Info("purged reset tokens", "deleted", deleted)
		return nil
	}
}

func NewPurgeResetTokensQueue(purger ResetPurger, log *slog.Logger) backlite.Queue {
	return backlite.NewQueue(PurgeResetTokensProcessor(purger, log))
}
