package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockledger/stockledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory engine.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers inventory routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/alerts/low-stock", h.listLowStock)

	r.Post("/movements", h.recordMovement)
	r.Post("/adjustments", h.adjust)
	r.Post("/adjustments/bulk", h.bulkAdjust)

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", h.reserve)
		r.Post("/sweep", h.sweep)
		r.Post("/release-by-owner", h.releaseByOwner)
		r.Get("/{reservationID}", h.getReservation)
		r.Post("/{reservationID}/release", h.releaseReservation)
		r.Post("/{reservationID}/commit", h.commitReservation)
	})

	r.Route("/{productID}", func(r chi.Router) {
		r.Get("/", h.getRecord)
		r.Get("/movements", h.listMovements)
		r.Put("/thresholds", h.updateThresholds)
		r.Post("/discontinue", h.discontinue)
	})
}

type movementRequest struct {
	Type          string   `json:"type" validate:"required"`
	ProductID     string   `json:"product_id" validate:"required,uuid"`
	Quantity      int64    `json:"quantity" validate:"required"`
	UnitCost      *float64 `json:"unit_cost,omitempty"`
	ReferenceType string   `json:"reference_type,omitempty"`
	ReferenceID   string   `json:"reference_id,omitempty"`
	Reason        string   `json:"reason,omitempty" validate:"max=255"`
	Notes         string   `json:"notes,omitempty" validate:"max=1000"`
	CreatedBy     string   `json:"created_by,omitempty" validate:"max=120"`
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	rec, movement, err := h.service.ApplyMovement(r.Context(), productID, MovementInput{
		Type:          MovementType(req.Type),
		Quantity:      req.Quantity,
		UnitCost:      req.UnitCost,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Reason:        req.Reason,
		Notes:         req.Notes,
		CreatedBy:     actor(req.CreatedBy),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"record":   recordPayload(rec),
		"movement": movementPayload(movement),
	})
}

type adjustmentRequest struct {
	ProductID string   `json:"product_id" validate:"required,uuid"`
	Delta     int64    `json:"delta" validate:"required"`
	UnitCost  *float64 `json:"unit_cost,omitempty"`
	Reason    string   `json:"reason" validate:"required,max=255"`
	Notes     string   `json:"notes,omitempty" validate:"max=1000"`
	CreatedBy string   `json:"created_by,omitempty" validate:"max=120"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	rec, movement, err := h.service.AdjustQuantity(r.Context(), AdjustmentInput{
		ProductID: productID,
		Delta:     req.Delta,
		UnitCost:  req.UnitCost,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}, actor(req.CreatedBy))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"record":   recordPayload(rec),
		"movement": movementPayload(movement),
	})
}

type bulkAdjustmentRequest struct {
	Items     []adjustmentRequest `json:"items" validate:"required,min=1,max=500,dive"`
	CreatedBy string              `json:"created_by,omitempty" validate:"max=120"`
}

func (h *Handler) bulkAdjust(w http.ResponseWriter, r *http.Request) {
	var req bulkAdjustmentRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	items := make([]AdjustmentInput, 0, len(req.Items))
	for _, item := range req.Items {
		productID, _ := uuid.Parse(item.ProductID)
		items = append(items, AdjustmentInput{
			ProductID: productID,
			Delta:     item.Delta,
			UnitCost:  item.UnitCost,
			Reason:    item.Reason,
			Notes:     item.Notes,
		})
	}
	result := h.service.BulkAdjust(r.Context(), items, actor(req.CreatedBy))
	status := http.StatusOK
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		respondError(w, err)
		return
	}
	rec, err := h.service.GetInventory(r.Context(), productID)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordPayload(rec))
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		respondError(w, err)
		return
	}
	filter := MovementFilter{
		ProductID: &productID,
		Type:      MovementType(r.URL.Query().Get("type")),
		CreatedBy: r.URL.Query().Get("created_by"),
		Page:      queryInt(r, "page", 1),
		PerPage:   queryInt(r, "per_page", 50),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = t
		}
	}
	movements, pagination, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(movements))
	for _, m := range movements {
		payload = append(payload, movementPayload(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"movements":  payload,
		"pagination": pagination,
	})
}

type thresholdsRequest struct {
	LowStockThreshold int64  `json:"low_stock_threshold" validate:"min=0"`
	ReorderPoint      int64  `json:"reorder_point" validate:"min=0"`
	ReorderQuantity   int64  `json:"reorder_quantity" validate:"min=0"`
	UpdatedBy         string `json:"updated_by,omitempty" validate:"max=120"`
}

func (h *Handler) updateThresholds(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		respondError(w, err)
		return
	}
	var req thresholdsRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	rec, err := h.service.UpdateThresholds(r.Context(), productID,
		req.LowStockThreshold, req.ReorderPoint, req.ReorderQuantity, actor(req.UpdatedBy))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordPayload(rec))
}

func (h *Handler) discontinue(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		respondError(w, err)
		return
	}
	rec, err := h.service.Discontinue(r.Context(), productID, actor(r.Header.Get("X-Actor")))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordPayload(rec))
}

type reserveRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Quantity       int64  `json:"quantity" validate:"required,gt=0"`
	OwnerType      string `json:"owner_type" validate:"required,oneof=order cart"`
	OwnerID        string `json:"owner_id" validate:"required,max=120"`
	Reason         string `json:"reason,omitempty" validate:"max=255"`
	TTLSeconds     int64  `json:"ttl_seconds,omitempty" validate:"min=0,max=86400"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=255"`
	CreatedBy      string `json:"created_by,omitempty" validate:"max=120"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}
	res, err := h.service.Reserve(r.Context(), ReserveInput{
		ProductID:      productID,
		Quantity:       req.Quantity,
		OwnerType:      OwnerType(req.OwnerType),
		OwnerID:        req.OwnerID,
		Reason:         req.Reason,
		TTL:            time.Duration(req.TTLSeconds) * time.Second,
		IdempotencyKey: key,
		CreatedBy:      actor(req.CreatedBy),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reservationPayload(res))
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "reservationID")
	if err != nil {
		respondError(w, err)
		return
	}
	res, err := h.service.GetReservation(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reservationPayload(res))
}

type releaseRequest struct {
	Reason    string `json:"reason,omitempty" validate:"max=255"`
	CreatedBy string `json:"created_by,omitempty" validate:"max=120"`
}

func (h *Handler) releaseReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "reservationID")
	if err != nil {
		respondError(w, err)
		return
	}
	req := releaseRequest{Reason: "released"}
	if r.ContentLength > 0 {
		if err := h.decode(r, &req); err != nil {
			respondError(w, err)
			return
		}
	}
	if err := h.service.Release(r.Context(), id, req.Reason, actor(req.CreatedBy)); err != nil {
		respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type releaseByOwnerRequest struct {
	OwnerType string `json:"owner_type" validate:"required,oneof=order cart"`
	OwnerID   string `json:"owner_id" validate:"required,max=120"`
	Reason    string `json:"reason,omitempty" validate:"max=255"`
	CreatedBy string `json:"created_by,omitempty" validate:"max=120"`
}

func (h *Handler) releaseByOwner(w http.ResponseWriter, r *http.Request) {
	var req releaseByOwnerRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "released"
	}
	released, err := h.service.ReleaseByOwner(r.Context(), OwnerType(req.OwnerType), req.OwnerID, req.Reason, actor(req.CreatedBy))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"released": released})
}

type commitRequest struct {
	ActualQuantity *int64 `json:"actual_quantity,omitempty"`
	CreatedBy      string `json:"created_by,omitempty" validate:"max=120"`
}

func (h *Handler) commitReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "reservationID")
	if err != nil {
		respondError(w, err)
		return
	}
	var req commitRequest
	if r.ContentLength > 0 {
		if err := h.decode(r, &req); err != nil {
			respondError(w, err)
			return
		}
	}
	rec, movement, err := h.service.CommitSale(r.Context(), id, req.ActualQuantity, actor(req.CreatedBy))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"record":   recordPayload(rec),
		"movement": movementPayload(movement),
	})
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	swept, err := h.service.SweepExpired(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"swept": swept})
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ScanLowStock(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// decode reads the JSON body into target and validates it, folding both
// failure modes into the validation error family.
func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("%w: %s", httpx.ErrValidation, "malformed JSON body")
	}
	if err := h.validator.Struct(target); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("%w: field %s failed on %s", httpx.ErrValidation, first.Field(), first.Tag())
		}
		return fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", httpx.ErrValidation, name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func actor(v string) string {
	if v == "" {
		return "api"
	}
	return v
}

func recordPayload(rec Record) map[string]any {
	available := rec.Available()
	if available < 0 && !rec.AllowBackorder {
		available = 0
	}
	return map[string]any{
		"product_id":          rec.ProductID,
		"quantity":            rec.Quantity,
		"reserved_quantity":   rec.ReservedQuantity,
		"available_quantity":  available,
		"low_stock_threshold": rec.LowStockThreshold,
		"reorder_point":       rec.ReorderPoint,
		"reorder_quantity":    rec.ReorderQuantity,
		"status":              rec.Status,
		"track_inventory":     rec.TrackInventory,
		"allow_backorder":     rec.AllowBackorder,
		"backordered":         rec.Backordered(),
		"average_cost":        rec.AverageCost,
		"last_cost":           rec.LastCost,
		"last_restocked_at":   rec.LastRestockedAt,
		"last_sold_at":        rec.LastSoldAt,
		"version":             rec.Version,
		"updated_at":          rec.UpdatedAt,
	}
}

func movementPayload(m Movement) map[string]any {
	return map[string]any{
		"id":                m.ID,
		"product_id":        m.ProductID,
		"type":              m.Type,
		"quantity":          m.Quantity,
		"previous_quantity": m.PreviousQuantity,
		"new_quantity":      m.NewQuantity,
		"unit_cost":         m.UnitCost,
		"total_cost":        m.TotalCost,
		"reference_type":    m.ReferenceType,
		"reference_id":      m.ReferenceID,
		"reason":            m.Reason,
		"notes":             m.Notes,
		"created_by":        m.CreatedBy,
		"batch_id":          m.BatchID,
		"created_at":        m.CreatedAt,
	}
}

func reservationPayload(res Reservation) map[string]any {
	return map[string]any{
		"id":         res.ID,
		"product_id": res.ProductID,
		"quantity":   res.Quantity,
		"owner_type": res.OwnerType,
		"owner_id":   res.OwnerID,
		"reason":     res.Reason,
		"status":     res.Status,
		"expires_at": res.ExpiresAt,
		"created_at": res.CreatedAt,
	}
}
