package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/observability"
)

// AlertScanJob runs the low-stock scan and pushes results into the alert
// sink for external delivery.
type AlertScanJob struct {
	service *inventory.Service
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAlertScanJob constructs the alert scan handler.
func NewAlertScanJob(service *inventory.Service, logger *slog.Logger, metrics *observability.Metrics) *AlertScanJob {
	return &AlertScanJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskAlertScan tasks.
func (j *AlertScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AlertScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	count, err := j.service.PublishAlerts(ctx)
	if err != nil {
		j.metrics.JobRun(TaskAlertScan, "error")
		j.logger.Error("alert scan failed", slog.Any("error", err))
		return err
	}
	j.metrics.JobRun(TaskAlertScan, "ok")
	j.logger.Info("alert scan completed", slog.Int("alerts", count))
	return nil
}
