package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockledger/stockledger/internal/observability"
	"github.com/stockledger/stockledger/internal/shared"
)

// CleanupJob prunes idempotency keys older than the retention window.
type CleanupJob struct {
	store   *shared.IdempotencyStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCleanupJob constructs the cleanup handler.
func NewCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *observability.Metrics) *CleanupJob {
	return &CleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if err := j.store.Cleanup(ctx, retention); err != nil {
		j.metrics.JobRun(TaskIdempotencyCleanup, "error")
		j.logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.metrics.JobRun(TaskIdempotencyCleanup, "ok")
	return nil
}
