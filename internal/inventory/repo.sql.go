package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockledger/stockledger/internal/platform/db"
	"github.com/stockledger/stockledger/internal/shared"
)

// Repository persists ledger state in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const recordColumns = `product_id, quantity, reserved_quantity, low_stock_threshold, reorder_point, reorder_quantity,
status, track_inventory, allow_backorder, average_cost, last_cost, last_restocked_at, last_sold_at, version, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ProductID, &rec.Quantity, &rec.ReservedQuantity, &rec.LowStockThreshold,
		&rec.ReorderPoint, &rec.ReorderQuantity, &rec.Status, &rec.TrackInventory, &rec.AllowBackorder,
		&rec.AverageCost, &rec.LastCost, &rec.LastRestockedAt, &rec.LastSoldAt, &rec.Version,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// GetRecord loads a record outside any transaction.
func (r *Repository) GetRecord(ctx context.Context, productID uuid.UUID) (Record, error) {
	if r == nil {
		return Record{}, errors.New("inventory repository not initialised")
	}
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE product_id=$1`, productID))
}

func (r *txRepository) GetRecord(ctx context.Context, productID uuid.UUID) (Record, error) {
	return scanRecord(r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE product_id=$1`, productID))
}

func (r *txRepository) InsertRecord(ctx context.Context, rec Record) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_records
(product_id, quantity, reserved_quantity, low_stock_threshold, reorder_point, reorder_quantity, status, track_inventory, allow_backorder, average_cost, last_cost, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
ON CONFLICT (product_id) DO NOTHING`,
		rec.ProductID, rec.Quantity, rec.ReservedQuantity, rec.LowStockThreshold, rec.ReorderPoint,
		rec.ReorderQuantity, string(rec.Status), rec.TrackInventory, rec.AllowBackorder,
		rec.AverageCost, rec.LastCost, rec.Version)
	return err
}

func (r *txRepository) UpdateRecord(ctx context.Context, rec Record, expectedVersion int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_records SET
quantity=$1, reserved_quantity=$2, low_stock_threshold=$3, reorder_point=$4, reorder_quantity=$5,
status=$6, track_inventory=$7, allow_backorder=$8, average_cost=$9, last_cost=$10,
last_restocked_at=$11, last_sold_at=$12, version=version+1, updated_at=NOW()
WHERE product_id=$13 AND version=$14`,
		rec.Quantity, rec.ReservedQuantity, rec.LowStockThreshold, rec.ReorderPoint, rec.ReorderQuantity,
		string(rec.Status), rec.TrackInventory, rec.AllowBackorder, rec.AverageCost, rec.LastCost,
		rec.LastRestockedAt, rec.LastSoldAt, rec.ProductID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_movements
(id, product_id, movement_type, quantity, previous_quantity, new_quantity, unit_cost, total_cost, reference_type, reference_id, reason, notes, created_by, batch_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.ProductID, string(m.Type), m.Quantity, m.PreviousQuantity, m.NewQuantity,
		m.UnitCost, m.TotalCost, m.ReferenceType, m.ReferenceID, m.Reason, m.Notes,
		m.CreatedBy, m.BatchID, m.CreatedAt)
	return err
}

func (r *txRepository) InsertReservation(ctx context.Context, res Reservation, idempotencyKey string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_reservations
(id, product_id, quantity, owner_type, owner_id, reason, idempotency_key, status, expires_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		res.ID, res.ProductID, res.Quantity, string(res.OwnerType), res.OwnerID, res.Reason,
		nullString(idempotencyKey), string(res.Status), res.ExpiresAt, res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	err := row.Scan(&res.ID, &res.ProductID, &res.Quantity, &res.OwnerType, &res.OwnerID,
		&res.Reason, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrReservationNotFound
		}
		return Reservation{}, err
	}
	return res, nil
}

const reservationColumns = `id, product_id, quantity, owner_type, owner_id, reason, status, expires_at, created_at, updated_at`

func (r *txRepository) GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	return scanReservation(r.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM stock_reservations WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) TransitionReservation(ctx context.Context, id uuid.UUID, from, to ReservationStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_reservations SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationTerminal
	}
	return nil
}

func (r *txRepository) ActiveReservationsByOwner(ctx context.Context, ownerType OwnerType, ownerID string) ([]Reservation, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+reservationColumns+` FROM stock_reservations
WHERE owner_type=$1 AND owner_id=$2 AND status='ACTIVE' FOR UPDATE`, string(ownerType), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// GetReservation loads a reservation outside any transaction.
func (r *Repository) GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	if r == nil {
		return Reservation{}, errors.New("inventory repository not initialised")
	}
	return scanReservation(r.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM stock_reservations WHERE id=$1`, id))
}

// ListExpiredReservations returns ACTIVE reservations whose expiry has passed.
func (r *Repository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]Reservation, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+` FROM stock_reservations
WHERE status='ACTIVE' AND expires_at <= $1 ORDER BY expires_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func collectReservations(rows pgx.Rows) ([]Reservation, error) {
	out := []Reservation{}
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.ProductID, &res.Quantity, &res.OwnerType, &res.OwnerID,
			&res.Reason, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMovements pages through the ledger, newest first. Reads never block
// writers; the ledger is append-only.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	if r == nil {
		return nil, 0, errors.New("inventory repository not initialised")
	}
	where := `WHERE ($1::uuid IS NULL OR product_id=$1)
AND ($2::text = '' OR movement_type=$2)
AND ($3::timestamptz IS NULL OR created_at >= $3)
AND ($4::timestamptz IS NULL OR created_at <= $4)
AND ($5::text = '' OR created_by=$5)`
	args := []any{uuidOrNil(filter.ProductID), string(filter.Type), nullTime(filter.From), nullTime(filter.To), filter.CreatedBy}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_movements `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(`SELECT id, product_id, movement_type, quantity, previous_quantity, new_quantity,
unit_cost, total_cost, reference_type, reference_id, reason, notes, created_by, batch_id, created_at
FROM inventory_movements %s ORDER BY created_at DESC, id DESC LIMIT $6 OFFSET $7`, where)
	rows, err := r.pool.Query(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PreviousQuantity, &m.NewQuantity,
			&m.UnitCost, &m.TotalCost, &m.ReferenceType, &m.ReferenceID, &m.Reason, &m.Notes,
			&m.CreatedBy, &m.BatchID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// ListLowStock returns tracked records in LOW_STOCK or OUT_OF_STOCK state.
func (r *Repository) ListLowStock(ctx context.Context) ([]Record, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM inventory_records
WHERE track_inventory AND status IN ('LOW_STOCK','OUT_OF_STOCK') ORDER BY quantity ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ProductID, &rec.Quantity, &rec.ReservedQuantity, &rec.LowStockThreshold,
			&rec.ReorderPoint, &rec.ReorderQuantity, &rec.Status, &rec.TrackInventory, &rec.AllowBackorder,
			&rec.AverageCost, &rec.LastCost, &rec.LastRestockedAt, &rec.LastSoldAt, &rec.Version,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
