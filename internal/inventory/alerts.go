package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const alertCacheKey = "inventory:alerts:low_stock"

// AlertCache wraps Redis based caching for low-stock scans. Scans are cheap
// but run on every dashboard load; a short TTL keeps them off the hot path.
type AlertCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAlertCache instantiates the cache helper.
func NewAlertCache(client *redis.Client, ttl time.Duration) *AlertCache {
	return &AlertCache{client: client, ttl: ttl}
}

func (c *AlertCache) get(ctx context.Context) ([]Alert, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, alertCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var alerts []Alert
	if err := json.Unmarshal(payload, &alerts); err != nil {
		return nil, false
	}
	return alerts, true
}

func (c *AlertCache) set(ctx context.Context, alerts []Alert) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(alerts)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, alertCacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached scan, used after bulk restocks.
func (c *AlertCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, alertCacheKey).Err()
}

type alertScanner struct {
	repo    RepositoryPort
	cache   *AlertCache
	group   singleflight.Group
	printer *message.Printer
}

func newAlertScanner(repo RepositoryPort, cache *AlertCache) *alertScanner {
	return &alertScanner{repo: repo, cache: cache, printer: message.NewPrinter(language.English)}
}

// ScanLowStock returns every tracked record sitting at LOW_STOCK or
// OUT_OF_STOCK. Read-only; alert delivery belongs to an external notifier.
// Concurrent scans are deduplicated and results cached briefly.
func (s *Service) ScanLowStock(ctx context.Context) ([]Alert, error) {
	return s.alerts.scan(ctx)
}

func (a *alertScanner) scan(ctx context.Context) ([]Alert, error) {
	if cached, ok := a.cache.get(ctx); ok {
		return cached, nil
	}
	v, err, _ := a.group.Do(alertCacheKey, func() (any, error) {
		records, err := a.repo.ListLowStock(ctx)
		if err != nil {
			return nil, err
		}
		alerts := make([]Alert, 0, len(records))
		for _, rec := range records {
			alerts = append(alerts, Alert{
				ProductID: rec.ProductID,
				Status:    rec.Status,
				Quantity:  rec.Quantity,
				Threshold: rec.LowStockThreshold,
				Message:   a.describe(rec),
			})
		}
		a.cache.set(ctx, alerts)
		return alerts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Alert), nil
}

func (a *alertScanner) describe(rec Record) string {
	if rec.Status == StatusOutOfStock {
		return a.printer.Sprintf("product %s is out of stock", rec.ProductID)
	}
	return a.printer.Sprintf("product %s is running low: %d on hand, threshold %d, reorder %d",
		rec.ProductID, rec.Quantity, rec.LowStockThreshold, rec.ReorderQuantity)
}

// PublishAlerts runs a scan and pushes the batch into the configured sink.
// Invoked by the scheduled worker; a nil sink makes this a plain scan.
func (s *Service) PublishAlerts(ctx context.Context) (int, error) {
	alerts, err := s.ScanLowStock(ctx)
	if err != nil {
		return 0, err
	}
	if s.sink == nil || len(alerts) == 0 {
		return len(alerts), nil
	}
	if err := s.sink.HandleLowStockAlerts(ctx, alerts); err != nil {
		return len(alerts), err
	}
	return len(alerts), nil
}
