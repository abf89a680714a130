package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned by conditional record updates when the row
// changed underneath the transaction. The service retries the whole
// read-modify-write on it; it never escapes to callers.
var ErrVersionConflict = errors.New("inventory: record version conflict")

// RepositoryPort abstracts storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRecord(ctx context.Context, productID uuid.UUID) (Record, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
	ListLowStock(ctx context.Context) ([]Record, error)
	GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error)
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
}

// TxRepository exposes the operations available inside one transaction.
// Every mutating cycle goes record-read, compute, conditional write, movement
// insert; the conditional write carries the optimistic version check.
type TxRepository interface {
	GetRecord(ctx context.Context, productID uuid.UUID) (Record, error)
	InsertRecord(ctx context.Context, rec Record) error
	// UpdateRecord persists rec conditioned on the stored version still being
	// expectedVersion, bumping Version by one. Returns ErrVersionConflict when
	// the row moved on.
	UpdateRecord(ctx context.Context, rec Record, expectedVersion int64) error
	InsertMovement(ctx context.Context, m Movement) error
	InsertReservation(ctx context.Context, res Reservation, idempotencyKey string) error
	GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error)
	// TransitionReservation moves a reservation from one status to another,
	// returning ErrReservationTerminal when the stored status is not `from`.
	TransitionReservation(ctx context.Context, id uuid.UUID, from, to ReservationStatus) error
	ActiveReservationsByOwner(ctx context.Context, ownerType OwnerType, ownerID string) ([]Reservation, error)
}
