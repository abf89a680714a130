package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/observability"
)

// SweepJob periodically reclaims expired reservations. The engine's sweep is
// idempotent and safe to overlap, so the job needs no locking of its own.
type SweepJob struct {
	service *inventory.Service
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSweepJob constructs the sweep handler.
func NewSweepJob(service *inventory.Service, logger *slog.Logger, metrics *observability.Metrics) *SweepJob {
	return &SweepJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskReservationSweep tasks.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	now := time.Now().UTC()
	swept, err := j.service.SweepExpired(ctx, now)
	if err != nil {
		j.metrics.JobRun(TaskReservationSweep, "error")
		j.logger.Error("reservation sweep failed", slog.Any("error", err))
		return err
	}
	j.metrics.JobRun(TaskReservationSweep, "ok")
	if swept > 0 {
		j.logger.Info("reservation sweep completed",
			slog.Int("released", swept),
			slog.Time("scheduled_for", payload.ScheduledFor))
	}
	return nil
}
