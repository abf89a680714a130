package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/stockledger/internal/shared"
)

// Catalog is the read-only product catalog collaborator used to validate
// movement and reservation targets.
type Catalog interface {
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
	IsActive(ctx context.Context, productID uuid.UUID) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts engine events; implemented by observability.Metrics.
type MetricsPort interface {
	MovementRecorded(movementType string)
	VersionConflict()
	ReservationTransition(to string)
}

// ServiceConfig groups tunables for the engine.
type ServiceConfig struct {
	// MaxAttempts bounds optimistic retries per operation. Default 5.
	MaxAttempts int
	// RetryBackoff is the base delay between attempts; jitter is added on
	// top so colliding writers spread out. Default 25ms.
	RetryBackoff time.Duration
	// DefaultReservationTTL applies when a reserve call passes no TTL.
	DefaultReservationTTL time.Duration
	// Defaults for first-touch record creation.
	DefaultLowStockThreshold int64
	DefaultReorderPoint      int64
	DefaultReorderQuantity   int64
	// SweepBatchSize bounds how many expired holds one sweep pass reclaims.
	SweepBatchSize int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 25 * time.Millisecond
	}
	if c.DefaultReservationTTL <= 0 {
		c.DefaultReservationTTL = 15 * time.Minute
	}
	if c.DefaultLowStockThreshold <= 0 {
		c.DefaultLowStockThreshold = 10
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = 500
	}
	return c
}

// Service coordinates the ledger, record store, reservations and alerts.
// Stateless between calls; the inventory record row is the only shared
// mutable resource and every mutation goes through the version protocol.
type Service struct {
	repo        RepositoryPort
	catalog     Catalog
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	metrics     MetricsPort
	logger      *slog.Logger
	alerts      *alertScanner
	sink        AlertSink
	cfg         ServiceConfig
}

// NewService builds Service. catalog, audit, idempotency, metrics, cache and
// sink may be nil; the engine degrades to skipping the concern.
func NewService(repo RepositoryPort, catalog Catalog, audit AuditPort, idem *shared.IdempotencyStore, metrics MetricsPort, logger *slog.Logger, cache *AlertCache, sink AlertSink, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:        repo,
		catalog:     catalog,
		audit:       audit,
		idempotency: idem,
		metrics:     metrics,
		logger:      logger,
		sink:        sink,
		cfg:         cfg.withDefaults(),
	}
	s.alerts = newAlertScanner(repo, cache)
	return s
}

// GetOrCreate returns the record for productID, creating a zero-quantity row
// with default thresholds on first touch. Existing rows are never reset.
func (s *Service) GetOrCreate(ctx context.Context, productID uuid.UUID) (Record, error) {
	if err := s.checkProduct(ctx, productID); err != nil {
		return Record{}, err
	}
	var rec Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = s.loadOrCreate(ctx, tx, productID)
		return err
	})
	if errors.Is(err, ErrVersionConflict) {
		// Lost the first-touch race; the winner's row is committed now.
		return s.repo.GetRecord(ctx, productID)
	}
	return rec, err
}

// GetInventory returns the current record for productID.
func (s *Service) GetInventory(ctx context.Context, productID uuid.UUID) (Record, error) {
	return s.repo.GetRecord(ctx, productID)
}

// ListMovements pages through the ledger, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, shared.Pagination, error) {
	movements, total, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ApplyMovement records one quantity change and updates the record in the
// same transaction. The whole read-modify-write retries on version conflicts
// up to the configured attempt budget.
func (s *Service) ApplyMovement(ctx context.Context, productID uuid.UUID, in MovementInput) (Record, Movement, error) {
	if !in.Type.Valid() {
		return Record{}, Movement{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, in.Type)
	}
	if in.Type.Informational() {
		return Record{}, Movement{}, fmt.Errorf("%w: %s movements are written by the reservation manager", ErrInvalidMovement, in.Type)
	}
	if in.Quantity == 0 {
		return Record{}, Movement{}, ErrInvalidQuantity
	}
	if in.UnitCost != nil && *in.UnitCost < 0 {
		return Record{}, Movement{}, ErrInvalidUnitCost
	}
	if err := s.checkProduct(ctx, productID); err != nil {
		return Record{}, Movement{}, err
	}

	var (
		rec      Record
		movement Movement
	)
	err := s.withRecord(ctx, productID, func(ctx context.Context, tx TxRepository, r *Record) error {
		m, err := s.applyDelta(r, in, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
		rec, movement = *r, m
		return nil
	})
	if err != nil {
		return Record{}, Movement{}, err
	}
	if s.metrics != nil {
		s.metrics.MovementRecorded(string(movement.Type))
	}
	s.recordAudit(ctx, in.CreatedBy, "inventory:"+string(in.Type), "movement", movement.ID.String(), map[string]any{
		"product_id": productID.String(),
		"quantity":   in.Quantity,
		"reason":     in.Reason,
	})
	return rec, movement, nil
}

// applyDelta mutates rec in place and returns the movement documenting the
// change. Pure with respect to storage.
func (s *Service) applyDelta(rec *Record, in MovementInput, now time.Time) (Movement, error) {
	prev := rec.Quantity
	next := prev + in.Quantity

	// Untracked products carry unlimited stock; only tracked records enforce
	// the floor. Backorder lifts it explicitly.
	allowNegative := !rec.TrackInventory || rec.AllowBackorder
	if next < 0 && !allowNegative {
		return Movement{}, fmt.Errorf("%w: on hand %d, requested %d", ErrInsufficientStock, prev, -in.Quantity)
	}
	if in.Quantity < 0 && !allowNegative && next < rec.ReservedQuantity {
		return Movement{}, fmt.Errorf("%w: %d units held by active reservations", ErrInsufficientStock, rec.ReservedQuantity)
	}
	if prev+in.Quantity != next {
		return Movement{}, fmt.Errorf("%w: delta arithmetic drift", ErrInvalidMovement)
	}

	inbound := in.Type.Inbound() || (in.Type == MovementAdjustment && in.Quantity > 0)
	if inbound && in.UnitCost != nil {
		rec.AverageCost, rec.LastCost = ApplyInboundCost(prev, rec.AverageCost, in.Quantity, *in.UnitCost)
	}
	if in.Type.Inbound() {
		rec.LastRestockedAt = &now
	}
	if in.Type == MovementSale {
		rec.LastSoldAt = &now
	}
	rec.Quantity = next
	rec.Status = nextStatus(*rec, next)

	m := Movement{
		ID:               uuid.New(),
		ProductID:        rec.ProductID,
		Type:             in.Type,
		Quantity:         in.Quantity,
		PreviousQuantity: prev,
		NewQuantity:      next,
		UnitCost:         in.UnitCost,
		ReferenceType:    in.ReferenceType,
		ReferenceID:      in.ReferenceID,
		Reason:           in.Reason,
		Notes:            in.Notes,
		CreatedBy:        in.CreatedBy,
		BatchID:          in.BatchID,
		CreatedAt:        now,
	}
	if in.UnitCost != nil {
		total := *in.UnitCost * float64(in.Quantity)
		m.TotalCost = &total
	}
	if m.PreviousQuantity+m.Quantity != m.NewQuantity {
		return Movement{}, fmt.Errorf("%w: movement does not reconcile", ErrInvalidMovement)
	}
	return m, nil
}

// AdjustQuantity wraps ApplyMovement for manual corrections.
func (s *Service) AdjustQuantity(ctx context.Context, in AdjustmentInput, createdBy string) (Record, Movement, error) {
	return s.ApplyMovement(ctx, in.ProductID, MovementInput{
		Type:      MovementAdjustment,
		Quantity:  in.Delta,
		UnitCost:  in.UnitCost,
		Reason:    in.Reason,
		Notes:     in.Notes,
		CreatedBy: createdBy,
	})
}

// BulkAdjust applies each adjustment independently; one failing item does not
// roll back the batch. All movements share a batch id for later audit.
func (s *Service) BulkAdjust(ctx context.Context, items []AdjustmentInput, createdBy string) BulkResult {
	batchID := uuid.New()
	result := BulkResult{Errors: []BulkError{}}
	for i, item := range items {
		_, _, err := s.ApplyMovement(ctx, item.ProductID, MovementInput{
			Type:      MovementAdjustment,
			Quantity:  item.Delta,
			UnitCost:  item.UnitCost,
			Reason:    item.Reason,
			Notes:     item.Notes,
			CreatedBy: createdBy,
			BatchID:   &batchID,
		})
		if err != nil {
			result.Errors = append(result.Errors, BulkError{Index: i, ProductID: item.ProductID, Message: err.Error()})
			continue
		}
		result.Processed++
	}
	return result
}

// Discontinue marks a record DISCONTINUED. The status is sticky: movements
// still post (returns, transfers out) but reservations are refused.
func (s *Service) Discontinue(ctx context.Context, productID uuid.UUID, actor string) (Record, error) {
	if err := s.checkProduct(ctx, productID); err != nil {
		return Record{}, err
	}
	var rec Record
	err := s.withRecord(ctx, productID, func(ctx context.Context, tx TxRepository, r *Record) error {
		r.Status = StatusDiscontinued
		rec = *r
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, actor, "inventory:discontinue", "record", productID.String(), nil)
	return rec, nil
}

// UpdateThresholds changes the replenishment thresholds on a record.
func (s *Service) UpdateThresholds(ctx context.Context, productID uuid.UUID, lowStock, reorderPoint, reorderQty int64, actor string) (Record, error) {
	if lowStock < 0 || reorderPoint < 0 || reorderQty < 0 {
		return Record{}, ErrInvalidQuantity
	}
	if err := s.checkProduct(ctx, productID); err != nil {
		return Record{}, err
	}
	var rec Record
	err := s.withRecord(ctx, productID, func(ctx context.Context, tx TxRepository, r *Record) error {
		r.LowStockThreshold = lowStock
		r.ReorderPoint = reorderPoint
		r.ReorderQuantity = reorderQty
		r.Status = nextStatus(*r, r.Quantity)
		rec = *r
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, actor, "inventory:thresholds", "record", productID.String(), map[string]any{
		"low_stock_threshold": lowStock,
		"reorder_point":       reorderPoint,
		"reorder_quantity":    reorderQty,
	})
	return rec, nil
}

// withRecord runs one optimistic read-modify-write cycle against the record
// row, retrying the whole transaction on version conflicts with jittered
// backoff. fn mutates the record and may insert movements or reservations in
// the same transaction; the conditional update and those inserts commit or
// roll back together.
func (s *Service) withRecord(ctx context.Context, productID uuid.UUID, fn func(context.Context, TxRepository, *Record) error) error {
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			rec, err := s.loadOrCreate(ctx, tx, productID)
			if err != nil {
				return err
			}
			expected := rec.Version
			if err := fn(ctx, tx, &rec); err != nil {
				return err
			}
			return tx.UpdateRecord(ctx, rec, expected)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if s.metrics != nil {
			s.metrics.VersionConflict()
		}
		if wait := s.backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.logger.Warn("optimistic retry budget exhausted",
		slog.String("product_id", productID.String()),
		slog.Int("attempts", s.cfg.MaxAttempts))
	return ErrConcurrentModification
}

func (s *Service) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBackoff * time.Duration(attempt+1)
	jitter := time.Duration(rand.Int63n(int64(s.cfg.RetryBackoff)))
	return base + jitter
}

func (s *Service) loadOrCreate(ctx context.Context, tx TxRepository, productID uuid.UUID) (Record, error) {
	rec, err := tx.GetRecord(ctx, productID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return Record{}, err
	}
	fresh := Record{
		ProductID:         productID,
		Status:            StatusOutOfStock,
		TrackInventory:    true,
		LowStockThreshold: s.cfg.DefaultLowStockThreshold,
		ReorderPoint:      s.cfg.DefaultReorderPoint,
		ReorderQuantity:   s.cfg.DefaultReorderQuantity,
		Version:           1,
	}
	if err := tx.InsertRecord(ctx, fresh); err != nil {
		return Record{}, err
	}
	// Reread: a concurrent first touch may have won the insert. Under
	// repeatable read the winner's row can be invisible to this snapshot;
	// surface that as a conflict so the cycle restarts on a fresh one.
	rec, err = tx.GetRecord(ctx, productID)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, ErrVersionConflict
	}
	return rec, err
}

func (s *Service) checkProduct(ctx context.Context, productID uuid.UUID) error {
	if s.catalog == nil {
		return nil
	}
	exists, err := s.catalog.ProductExists(ctx, productID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrProductNotFound
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
