package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MovementType enumerates supported ledger movements.
type MovementType string

const (
	// MovementRestock represents purchased stock arriving.
	MovementRestock MovementType = "RESTOCK"
	// MovementSale represents stock leaving on a committed sale.
	MovementSale MovementType = "SALE"
	// MovementAdjustment indicates a manual correction, either direction.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementReturn represents customer returns coming back to stock.
	MovementReturn MovementType = "RETURN"
	// MovementTransferIn represents stock arriving from another location.
	MovementTransferIn MovementType = "TRANSFER_IN"
	// MovementTransferOut represents stock leaving to another location.
	MovementTransferOut MovementType = "TRANSFER_OUT"
	// MovementDamage removes damaged units.
	MovementDamage MovementType = "DAMAGE"
	// MovementExpired removes units past shelf life.
	MovementExpired MovementType = "EXPIRED"
	// MovementReserve records a hold being placed; quantity delta is zero.
	MovementReserve MovementType = "RESERVE"
	// MovementReleaseReserve records a hold being released; quantity delta is zero.
	MovementReleaseReserve MovementType = "RELEASE_RESERVE"
)

// Inbound reports whether the movement type brings stock in and therefore
// participates in moving-average costing.
func (t MovementType) Inbound() bool {
	switch t {
	case MovementRestock, MovementReturn, MovementTransferIn:
		return true
	}
	return false
}

// Informational reports whether the movement documents a hold transition
// rather than a physical quantity change.
func (t MovementType) Informational() bool {
	return t == MovementReserve || t == MovementReleaseReserve
}

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementRestock, MovementSale, MovementAdjustment, MovementReturn,
		MovementTransferIn, MovementTransferOut, MovementDamage, MovementExpired,
		MovementReserve, MovementReleaseReserve:
		return true
	}
	return false
}

// StockStatus enumerates derived stock states for a record.
type StockStatus string

const (
	// StatusInStock means available stock sits above the low threshold.
	StatusInStock StockStatus = "IN_STOCK"
	// StatusLowStock means quantity has fallen to the low threshold or below.
	StatusLowStock StockStatus = "LOW_STOCK"
	// StatusOutOfStock means no sellable quantity remains.
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
	// StatusDiscontinued is only ever set explicitly, never derived.
	StatusDiscontinued StockStatus = "DISCONTINUED"
)

// ReservationStatus enumerates reservation lifecycle states.
type ReservationStatus string

const (
	// ReservationActive holds stock until commit, release or expiry.
	ReservationActive ReservationStatus = "ACTIVE"
	// ReservationReleased is terminal; the hold was cancelled explicitly.
	ReservationReleased ReservationStatus = "RELEASED"
	// ReservationExpired is terminal; the sweep reclaimed the hold.
	ReservationExpired ReservationStatus = "EXPIRED"
	// ReservationCommitted is terminal; the hold converted into a sale.
	ReservationCommitted ReservationStatus = "COMMITTED"
)

// Terminal reports whether the status permits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationReleased || s == ReservationExpired || s == ReservationCommitted
}

// OwnerType identifies which workflow owns a reservation.
type OwnerType string

const (
	// OwnerOrder marks an order-held reservation.
	OwnerOrder OwnerType = "order"
	// OwnerCart marks a cart-held reservation.
	OwnerCart OwnerType = "cart"
)

// Record is the mutable per-product summary row, a projection of the ledger.
type Record struct {
	ProductID         uuid.UUID
	Quantity          int64
	ReservedQuantity  int64
	LowStockThreshold int64
	ReorderPoint      int64
	ReorderQuantity   int64
	Status            StockStatus
	TrackInventory    bool
	AllowBackorder    bool
	AverageCost       float64
	LastCost          float64
	LastRestockedAt   *time.Time
	LastSoldAt        *time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Available returns quantity minus reserved quantity. It can be negative
// only when backorder is allowed.
func (r Record) Available() int64 {
	return r.Quantity - r.ReservedQuantity
}

// Backordered reports whether outstanding demand exceeds physical stock.
func (r Record) Backordered() bool {
	return r.AllowBackorder && r.Available() < 0
}

// Movement is one immutable entry in the append-only ledger.
type Movement struct {
	ID               uuid.UUID
	ProductID        uuid.UUID
	Type             MovementType
	Quantity         int64
	PreviousQuantity int64
	NewQuantity      int64
	UnitCost         *float64
	TotalCost        *float64
	ReferenceType    string
	ReferenceID      string
	Reason           string
	Notes            string
	CreatedBy        string
	BatchID          *uuid.UUID
	CreatedAt        time.Time
}

// Reservation is a temporary hold against available quantity.
type Reservation struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Quantity  int64
	OwnerType OwnerType
	OwnerID   string
	Reason    string
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Alert summarises a record that needs replenishment attention.
type Alert struct {
	ProductID uuid.UUID   `json:"product_id"`
	Status    StockStatus `json:"status"`
	Quantity  int64       `json:"quantity"`
	Threshold int64       `json:"threshold"`
	Message   string      `json:"message"`
}

// MovementInput describes a requested quantity change.
type MovementInput struct {
	Type          MovementType
	Quantity      int64
	UnitCost      *float64
	ReferenceType string
	ReferenceID   string
	Reason        string
	Notes         string
	CreatedBy     string
	BatchID       *uuid.UUID
}

// AdjustmentInput describes a manual correction on one product.
type AdjustmentInput struct {
	ProductID uuid.UUID
	Delta     int64
	UnitCost  *float64
	Reason    string
	Notes     string
}

// BulkError reports the failure of one item inside a bulk adjustment.
type BulkError struct {
	Index     int       `json:"index"`
	ProductID uuid.UUID `json:"product_id"`
	Message   string    `json:"message"`
}

// BulkResult summarises a bulk adjustment run.
type BulkResult struct {
	Processed int         `json:"processed"`
	Errors    []BulkError `json:"errors"`
}

// ReserveInput describes a requested hold.
type ReserveInput struct {
	ProductID      uuid.UUID
	Quantity       int64
	OwnerType      OwnerType
	OwnerID        string
	Reason         string
	TTL            time.Duration
	IdempotencyKey string
	CreatedBy      string
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	ProductID *uuid.UUID
	Type      MovementType
	From      time.Time
	To        time.Time
	CreatedBy string
	Page      int
	PerPage   int
}

// ErrInsufficientStock means the requested hold or sale exceeds available
// quantity and backorder is disallowed. Callers must not retry.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrConcurrentModification means the optimistic retry budget ran out.
// The whole business operation may be retried by the caller.
var ErrConcurrentModification = errors.New("inventory: concurrent modification")

// ErrReservationNotFound indicates a missing reservation.
var ErrReservationNotFound = errors.New("inventory: reservation not found")

// ErrReservationTerminal indicates a commit against an already-resolved hold.
var ErrReservationTerminal = errors.New("inventory: reservation already terminal")

// ErrInvalidMovement indicates a ledger invariant violation. Always a
// programming or data-integrity error, never silently corrected.
var ErrInvalidMovement = errors.New("inventory: invalid movement")

// ErrRecordNotFound indicates a missing inventory record.
var ErrRecordNotFound = errors.New("inventory: record not found")

// ErrProductNotFound indicates the catalog does not know the product.
var ErrProductNotFound = errors.New("inventory: product not found")

// ErrProductInactive indicates the catalog lists the product as inactive.
var ErrProductInactive = errors.New("inventory: product inactive")

// ErrDiscontinued indicates a reservation attempt on a discontinued record.
var ErrDiscontinued = errors.New("inventory: product discontinued")

// ErrInvalidQuantity indicates a non-positive quantity where one is required.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrInvalidOwner indicates a reservation without exactly one owner reference.
var ErrInvalidOwner = errors.New("inventory: reservation requires one owner reference")
