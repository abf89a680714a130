package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReservationSweep reclaims expired stock reservations.
	TaskReservationSweep = "reservation:sweep"
	// TaskAlertScan scans inventory records for low-stock conditions.
	TaskAlertScan = "inventory:alert_scan"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// SweepPayload carries scheduling metadata for a sweep run.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReservationSweepTask constructs an Asynq task for the sweep.
func NewReservationSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationSweep, body, asynq.Queue(QueueDefault)), nil
}

// AlertScanPayload carries scheduling metadata for an alert scan.
type AlertScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAlertScanTask constructs an Asynq task for the low-stock scan.
func NewAlertScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AlertScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAlertScan, body, asynq.Queue(QueueDefault)), nil
}

// CleanupPayload sets the retention window for idempotency keys.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
