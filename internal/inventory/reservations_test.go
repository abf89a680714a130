package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/stockledger/internal/shared"
)

func TestReserveHoldsAvailability(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 100, 5)

	resA, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 30, OwnerType: OwnerOrder, OwnerID: "order-a"})
	require.NoError(t, err)
	require.Equal(t, ReservationActive, resA.Status)

	rec, err := svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(100), rec.Quantity, "holds never move physical stock")
	require.Equal(t, int64(30), rec.ReservedQuantity)
	require.Equal(t, int64(70), rec.Available())

	// 80 > 70 available even though 80 < 100 on hand.
	_, err = svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 80, OwnerType: OwnerOrder, OwnerID: "order-b"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, _, err = svc.CommitSale(ctx, resA.ID, nil, "clerk")
	require.NoError(t, err)

	rec, err = svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(70), rec.Quantity)
	require.Equal(t, int64(0), rec.ReservedQuantity)

	// The freed availability admits the retry now.
	_, err = svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 70, OwnerType: OwnerOrder, OwnerID: "order-b"})
	require.NoError(t, err)
	rec, err = svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.Available())
}

func TestReserveValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()

	_, err := svc.Reserve(context.Background(), ReserveInput{ProductID: productID, Quantity: 0, OwnerType: OwnerOrder, OwnerID: "x"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Reserve(context.Background(), ReserveInput{ProductID: productID, Quantity: 1, OwnerType: "wishlist", OwnerID: "x"})
	require.ErrorIs(t, err, ErrInvalidOwner)

	_, err = svc.Reserve(context.Background(), ReserveInput{ProductID: productID, Quantity: 1, OwnerType: OwnerCart})
	require.ErrorIs(t, err, ErrInvalidOwner)
}

func TestReserveIdempotencyKeyReplay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 10, 1)

	_, err := svc.Reserve(ctx, ReserveInput{
		ProductID: productID, Quantity: 2, OwnerType: OwnerOrder, OwnerID: "order-1",
		IdempotencyKey: "req-42",
	})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, ReserveInput{
		ProductID: productID, Quantity: 2, OwnerType: OwnerOrder, OwnerID: "order-1",
		IdempotencyKey: "req-42",
	})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	rec, err := svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.ReservedQuantity, "replay must not double-hold")
}

func TestReleaseIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 10, 1)

	res, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 4, OwnerType: OwnerCart, OwnerID: "cart-9"})
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, res.ID, "abandoned", "api"))
	rec, err := svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.ReservedQuantity)

	// Second release is a no-op, not an error.
	require.NoError(t, svc.Release(ctx, res.ID, "abandoned", "api"))
	rec, err = svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.ReservedQuantity, "double release must not underflow")

	stored, err := svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, ReservationReleased, stored.Status)
}

func TestReleaseByOwner(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 50, 1)

	for i := 0; i < 3; i++ {
		_, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 5, OwnerType: OwnerCart, OwnerID: "cart-7"})
		require.NoError(t, err)
	}
	_, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 5, OwnerType: OwnerCart, OwnerID: "cart-8"})
	require.NoError(t, err)

	released, err := svc.ReleaseByOwner(ctx, OwnerCart, "cart-7", "checkout abandoned", "api")
	require.NoError(t, err)
	require.Equal(t, 3, released)

	rec, err := svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(5), rec.ReservedQuantity, "other owners keep their holds")
}

func TestCommitSalePartialFulfillment(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 40, 2)

	res, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 10, OwnerType: OwnerOrder, OwnerID: "order-5"})
	require.NoError(t, err)

	actual := int64(6)
	rec, movement, err := svc.CommitSale(ctx, res.ID, &actual, "clerk")
	require.NoError(t, err)
	require.Equal(t, int64(34), rec.Quantity)
	require.Equal(t, int64(0), rec.ReservedQuantity, "the full hold is surrendered on commit")
	require.Equal(t, int64(-6), movement.Quantity)
	require.Equal(t, MovementSale, movement.Type)

	over := int64(11)
	res2, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 10, OwnerType: OwnerOrder, OwnerID: "order-6"})
	require.NoError(t, err)
	_, _, err = svc.CommitSale(ctx, res2.ID, &over, "clerk")
	require.ErrorIs(t, err, ErrInvalidMovement)
}

func TestCommitSaleTerminalReservation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 10, 1)

	res, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 3, OwnerType: OwnerOrder, OwnerID: "order-1"})
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, res.ID, "cancelled", "api"))

	_, _, err = svc.CommitSale(ctx, res.ID, nil, "clerk")
	require.ErrorIs(t, err, ErrReservationTerminal)

	_, _, err = svc.CommitSale(ctx, uuid.New(), nil, "clerk")
	require.ErrorIs(t, err, ErrReservationNotFound)
}

func TestSweepExpiredReclaimsHolds(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 20, 1)

	short, err := svc.Reserve(ctx, ReserveInput{
		ProductID: productID, Quantity: 5, OwnerType: OwnerCart, OwnerID: "cart-1",
		TTL: time.Minute,
	})
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, ReserveInput{
		ProductID: productID, Quantity: 5, OwnerType: OwnerCart, OwnerID: "cart-2",
		TTL: time.Hour,
	})
	require.NoError(t, err)

	swept, err := svc.SweepExpired(ctx, time.Now().UTC().Add(16*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	stored, err := svc.GetReservation(ctx, short.ID)
	require.NoError(t, err)
	require.Equal(t, ReservationExpired, stored.Status)

	rec, err := svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(5), rec.ReservedQuantity, "unexpired hold survives the sweep")
	require.Equal(t, int64(20), rec.Quantity)

	// Sweeping again finds nothing; the transition is one-shot.
	swept, err = svc.SweepExpired(ctx, time.Now().UTC().Add(16*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, swept)
}

func TestUntrackedProductBypassesAvailability(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	productID := uuid.New()
	ctx := context.Background()
	repo.records[productID] = Record{
		ProductID:      productID,
		Quantity:       0,
		Status:         StatusInStock,
		TrackInventory: false,
		Version:        1,
	}

	res, err := svc.Reserve(ctx, ReserveInput{ProductID: productID, Quantity: 100, OwnerType: OwnerOrder, OwnerID: "order-1"})
	require.NoError(t, err)
	require.Equal(t, ReservationActive, res.Status)

	// The hold persists so release and commit keep working.
	require.NoError(t, svc.Release(ctx, res.ID, "cancelled", "api"))
	stored, err := svc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, ReservationReleased, stored.Status)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{MaxAttempts: 100, RetryBackoff: time.Millisecond})
	productID := uuid.New()
	ctx := context.Background()
	restock(t, svc, productID, 100, 1)

	const workers = 20
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Reserve(ctx, ReserveInput{
				ProductID: productID, Quantity: 10,
				OwnerType: OwnerOrder, OwnerID: uuid.NewString(),
			})
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, err := range results {
		if err == nil {
			granted++
			continue
		}
		require.ErrorIs(t, err, ErrInsufficientStock)
	}
	require.Equal(t, 10, granted, "exactly the physical stock may be promised")

	rec, err := svc.GetInventory(ctx, productID)
	require.NoError(t, err)
	require.Equal(t, int64(100), rec.ReservedQuantity)
	require.Equal(t, int64(0), rec.Available())
}
