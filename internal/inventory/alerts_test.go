package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCachedService(t *testing.T, repo *memoryRepo) (*Service, *AlertCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewAlertCache(redisClient, time.Minute)
	svc := NewService(repo, nil, nil, nil, nil, nil, cache, nil, ServiceConfig{})
	return svc, cache
}

func TestScanLowStock(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newCachedService(t, repo)
	ctx := context.Background()

	low := uuid.New()
	out := uuid.New()
	healthy := uuid.New()
	untracked := uuid.New()
	repo.records[low] = Record{ProductID: low, Quantity: 3, LowStockThreshold: 10, ReorderQuantity: 40, Status: StatusLowStock, TrackInventory: true, Version: 1}
	repo.records[out] = Record{ProductID: out, Quantity: 0, LowStockThreshold: 10, Status: StatusOutOfStock, TrackInventory: true, Version: 1}
	repo.records[healthy] = Record{ProductID: healthy, Quantity: 500, LowStockThreshold: 10, Status: StatusInStock, TrackInventory: true, Version: 1}
	repo.records[untracked] = Record{ProductID: untracked, Quantity: 0, LowStockThreshold: 10, Status: StatusOutOfStock, TrackInventory: false, Version: 1}

	alerts, err := svc.ScanLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	byProduct := map[uuid.UUID]Alert{}
	for _, a := range alerts {
		byProduct[a.ProductID] = a
	}
	require.Contains(t, byProduct, low)
	require.Contains(t, byProduct, out)
	require.Equal(t, int64(3), byProduct[low].Quantity)
	require.Equal(t, int64(10), byProduct[low].Threshold)
	require.NotEmpty(t, byProduct[low].Message)
	require.NotEmpty(t, byProduct[out].Message)
}

func TestScanLowStockUsesCache(t *testing.T) {
	repo := newMemoryRepo()
	svc, cache := newCachedService(t, repo)
	ctx := context.Background()

	productID := uuid.New()
	repo.records[productID] = Record{ProductID: productID, Quantity: 1, LowStockThreshold: 10, Status: StatusLowStock, TrackInventory: true, Version: 1}

	alerts, err := svc.ScanLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	// The record recovers, but the cached scan still answers.
	rec := repo.records[productID]
	rec.Quantity, rec.Status = 100, StatusInStock
	repo.records[productID] = rec

	alerts, err = svc.ScanLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1, "second scan is served from cache")

	cache.Invalidate(ctx)
	alerts, err = svc.ScanLowStock(ctx)
	require.NoError(t, err)
	require.Empty(t, alerts)
}

type captureSink struct {
	batches [][]Alert
}

func (s *captureSink) HandleLowStockAlerts(ctx context.Context, alerts []Alert) error {
	s.batches = append(s.batches, alerts)
	return nil
}

func TestPublishAlertsPushesToSink(t *testing.T) {
	repo := newMemoryRepo()
	sink := &captureSink{}
	svc := NewService(repo, nil, nil, nil, nil, nil, nil, sink, ServiceConfig{})
	ctx := context.Background()

	productID := uuid.New()
	repo.records[productID] = Record{ProductID: productID, Quantity: 0, LowStockThreshold: 5, Status: StatusOutOfStock, TrackInventory: true, Version: 1}

	count, err := svc.PublishAlerts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 1)
	require.Equal(t, productID, sink.batches[0][0].ProductID)
}
