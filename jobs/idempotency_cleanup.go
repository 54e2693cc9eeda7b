package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/andino-erp/andino-erp/internal/shared"
)

// IdempotencyCleanupJob purges expired idempotency keys.
type IdempotencyCleanupJob struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	removed, err := j.store.Cleanup(ctx, retention)
	if err != nil {
		return err
	}
	j.logger.Info("idempotency cleanup finished", slog.Int64("removed", removed))
	return nil
}
