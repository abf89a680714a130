package inventory

import (
	"context"
	"log/slog"
)

// AlertSink receives low-stock alert batches for external delivery. The
// engine emits alert data only; mail/SMS belongs to the notifier behind this
// port.
type AlertSink interface {
	HandleLowStockAlerts(ctx context.Context, alerts []Alert) error
}

// LogSink writes alert batches to the structured log. Stands in for a real
// notifier when none is configured.
type LogSink struct {
	Logger *slog.Logger
}

// HandleLowStockAlerts implements AlertSink.
func (s LogSink) HandleLowStockAlerts(ctx context.Context, alerts []Alert) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, alert := range alerts {
		logger.Warn("low stock alert",
			slog.String("product_id", alert.ProductID.String()),
			slog.String("status", string(alert.Status)),
			slog.Int64("quantity", alert.Quantity),
			slog.Int64("threshold", alert.Threshold))
	}
	return nil
}
