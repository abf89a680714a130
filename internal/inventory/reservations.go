package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Reserve places a temporary hold on available quantity. Overlapping reserve
// calls on the same product serialize through the record's version, so two
// holds can never together exceed physical stock unless backorder allows it.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (Reservation, error) {
	if in.Quantity <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}
	if (in.OwnerType != OwnerOrder && in.OwnerType != OwnerCart) || in.OwnerID == "" {
		return Reservation{}, ErrInvalidOwner
	}
	if err := s.checkProduct(ctx, in.ProductID); err != nil {
		return Reservation{}, err
	}
	if s.catalog != nil {
		active, err := s.catalog.IsActive(ctx, in.ProductID)
		if err != nil {
			return Reservation{}, err
		}
		if !active {
			return Reservation{}, ErrProductInactive
		}
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultReservationTTL
	}

	insertedKey := false
	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, in.IdempotencyKey, "reservation"); err != nil {
			return Reservation{}, err
		}
		insertedKey = true
	}

	now := time.Now().UTC()
	res := Reservation{
		ID:        uuid.New(),
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		OwnerType: in.OwnerType,
		OwnerID:   in.OwnerID,
		Reason:    in.Reason,
		Status:    ReservationActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	err := s.withRecord(ctx, in.ProductID, func(ctx context.Context, tx TxRepository, rec *Record) error {
		if rec.Status == StatusDiscontinued {
			return ErrDiscontinued
		}
		// Untracked products carry unlimited stock: the hold is persisted for
		// the caller's lifecycle but never gates on availability.
		if rec.TrackInventory && !rec.AllowBackorder && rec.Available() < in.Quantity {
			return fmt.Errorf("%w: available %d, requested %d", ErrInsufficientStock, rec.Available(), in.Quantity)
		}
		rec.ReservedQuantity += in.Quantity
		if err := tx.InsertReservation(ctx, res, in.IdempotencyKey); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, s.holdMovement(rec, MovementReserve, res, in.Reason, in.CreatedBy, now))
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, in.IdempotencyKey)
		}
		return Reservation{}, err
	}
	if s.metrics != nil {
		s.metrics.ReservationTransition(string(ReservationActive))
	}
	s.recordAudit(ctx, in.CreatedBy, "reservation:create", "reservation", res.ID.String(), map[string]any{
		"product_id": in.ProductID.String(),
		"quantity":   in.Quantity,
		"owner":      fmt.Sprintf("%s:%s", in.OwnerType, in.OwnerID),
	})
	return res, nil
}

// GetReservation loads a reservation by id.
func (s *Service) GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

// Release cancels an ACTIVE hold, returning its quantity to availability.
// Idempotent: releasing an already-terminal reservation is a no-op.
func (s *Service) Release(ctx context.Context, reservationID uuid.UUID, reason, actor string) error {
	released, err := s.resolveHold(ctx, reservationID, ReservationReleased, reason, actor)
	if err != nil {
		return err
	}
	if released && s.metrics != nil {
		s.metrics.ReservationTransition(string(ReservationReleased))
	}
	return nil
}

// ReleaseByOwner releases every ACTIVE hold owned by one order or cart.
func (s *Service) ReleaseByOwner(ctx context.Context, ownerType OwnerType, ownerID, reason, actor string) (int, error) {
	if (ownerType != OwnerOrder && ownerType != OwnerCart) || ownerID == "" {
		return 0, ErrInvalidOwner
	}
	var held []Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		held, err = tx.ActiveReservationsByOwner(ctx, ownerType, ownerID)
		return err
	})
	if err != nil {
		return 0, err
	}
	released := 0
	for _, res := range held {
		if err := s.Release(ctx, res.ID, reason, actor); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

// CommitSale converts an ACTIVE hold into a sale. actualQuantity defaults to
// the reserved amount; selling less releases the remainder back to
// availability. Both the SALE movement and the reservation transition commit
// in one transaction.
func (s *Service) CommitSale(ctx context.Context, reservationID uuid.UUID, actualQuantity *int64, actor string) (Record, Movement, error) {
	res, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return Record{}, Movement{}, err
	}

	var (
		rec      Record
		movement Movement
	)
	err = s.withRecord(ctx, res.ProductID, func(ctx context.Context, tx TxRepository, r *Record) error {
		// Reread under lock; the pre-read above only located the product row.
		held, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if held.Status.Terminal() {
			return fmt.Errorf("%w: status %s", ErrReservationTerminal, held.Status)
		}
		actual := held.Quantity
		if actualQuantity != nil {
			actual = *actualQuantity
		}
		if actual <= 0 {
			return ErrInvalidQuantity
		}
		if actual > held.Quantity {
			return fmt.Errorf("%w: committed %d exceeds reserved %d", ErrInvalidMovement, actual, held.Quantity)
		}

		prev := r.Quantity
		next := prev - actual
		if next < 0 && r.TrackInventory && !r.AllowBackorder {
			return fmt.Errorf("%w: on hand %d, selling %d", ErrInsufficientStock, prev, actual)
		}
		r.Quantity = next
		r.ReservedQuantity -= held.Quantity
		if r.ReservedQuantity < 0 {
			// Reserved drifting negative means a hold was double-consumed.
			return fmt.Errorf("%w: reserved quantity underflow", ErrInvalidMovement)
		}
		now := time.Now().UTC()
		r.LastSoldAt = &now
		r.Status = nextStatus(*r, next)

		if err := tx.TransitionReservation(ctx, reservationID, ReservationActive, ReservationCommitted); err != nil {
			return err
		}
		m := Movement{
			ID:               uuid.New(),
			ProductID:        r.ProductID,
			Type:             MovementSale,
			Quantity:         -actual,
			PreviousQuantity: prev,
			NewQuantity:      next,
			ReferenceType:    string(held.OwnerType),
			ReferenceID:      held.OwnerID,
			Reason:           "sale",
			Notes:            fmt.Sprintf("reservation %s committed", reservationID),
			CreatedBy:        actor,
			CreatedAt:        now,
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
		s.metrics.ReservationTransition(string(ReservationCommitted))
		s.metrics.MovementRecorded(string(MovementSale))
	}
	s.recordAudit(ctx, actor, "reservation:commit", "reservation", reservationID.String(), map[string]any{
		"product_id": res.ProductID.String(),
		"quantity":   movement.Quantity,
	})
	return rec, movement, nil
}

// SweepExpired reclaims every ACTIVE hold whose expiry has passed, one
// independently-atomic transition per reservation. Safe to run concurrently
// with itself and repeatedly: a reservation already swept elsewhere is
// skipped, not an error.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiredReservations(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, res := range expired {
		reclaimed, err := s.expireHold(ctx, res.ID)
		if err != nil {
			s.logger.Error("sweep failed for reservation",
				slog.String("reservation_id", res.ID.String()),
				slog.Any("error", err))
			continue
		}
		if reclaimed {
			swept++
			if s.metrics != nil {
				s.metrics.ReservationTransition(string(ReservationExpired))
			}
		}
	}
	return swept, nil
}

func (s *Service) expireHold(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	return s.resolveHold(ctx, reservationID, ReservationExpired, "expired", "sweeper")
}

// resolveHold transitions an ACTIVE reservation to the given terminal state
// and returns the held quantity to availability. Returns false without error
// when the reservation is already terminal.
func (s *Service) resolveHold(ctx context.Context, reservationID uuid.UUID, to ReservationStatus, reason, actor string) (bool, error) {
	res, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return false, err
	}
	if res.Status.Terminal() {
		return false, nil
	}
	resolved := false
	err = s.withRecord(ctx, res.ProductID, func(ctx context.Context, tx TxRepository, rec *Record) error {
		if err := tx.TransitionReservation(ctx, reservationID, ReservationActive, to); err != nil {
			if errors.Is(err, ErrReservationTerminal) {
				// Lost the race to another releaser or the sweep; the hold is
				// already accounted for.
				resolved = false
				return nil
			}
			return err
		}
		rec.ReservedQuantity -= res.Quantity
		if rec.ReservedQuantity < 0 {
			return fmt.Errorf("%w: reserved quantity underflow", ErrInvalidMovement)
		}
		now := time.Now().UTC()
		if err := tx.InsertMovement(ctx, s.holdMovement(rec, MovementReleaseReserve, res, reason, actor, now)); err != nil {
			return err
		}
		resolved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if resolved {
		s.recordAudit(ctx, actor, "reservation:"+string(to), "reservation", reservationID.String(), map[string]any{
			"product_id": res.ProductID.String(),
			"quantity":   res.Quantity,
			"reason":     reason,
		})
	}
	return resolved, nil
}

// holdMovement builds the informational ledger entry for a hold transition.
// Quantity delta is zero: holds move availability, not physical stock.
func (s *Service) holdMovement(rec *Record, t MovementType, res Reservation, reason, actor string, now time.Time) Movement {
	return Movement{
		ID:               uuid.New(),
		ProductID:        rec.ProductID,
		Type:             t,
		Quantity:         0,
		PreviousQuantity: rec.Quantity,
		NewQuantity:      rec.Quantity,
		ReferenceType:    string(res.OwnerType),
		ReferenceID:      res.OwnerID,
		Reason:           reason,
		Notes:            fmt.Sprintf("reservation %s for %d units", res.ID, res.Quantity),
		CreatedBy:        actor,
		CreatedAt:        now,
	}
}
