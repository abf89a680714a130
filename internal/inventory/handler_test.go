package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, repo *memoryRepo) http.Handler {
	t.Helper()
	svc := newTestService(repo, ServiceConfig{})
	handler := NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Route("/api/v1/inventory", handler.MountRoutes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerAdjustments(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(t, repo)
	productID := uuid.New()

	rr := doJSON(t, router, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{
		"product_id": productID.String(),
		"delta":      25,
		"reason":     "initial count",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var payload struct {
		Record struct {
			Quantity int64  `json:"quantity"`
			Status   string `json:"status"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, int64(25), payload.Record.Quantity)
	require.Equal(t, string(StatusInStock), payload.Record.Status)

	// Missing reason fails validation before the service runs.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{
		"product_id": productID.String(),
		"delta":      5,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{
		"product_id": "not-a-uuid",
		"delta":      5,
		"reason":     "x",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerGetRecord(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(t, repo)
	productID := uuid.New()
	repo.records[productID] = Record{ProductID: productID, Quantity: 7, ReservedQuantity: 2, Status: StatusLowStock, TrackInventory: true, LowStockThreshold: 10, Version: 1}

	rr := doJSON(t, router, http.MethodGet, "/api/v1/inventory/"+productID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Quantity  int64 `json:"quantity"`
		Available int64 `json:"available_quantity"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, int64(7), payload.Quantity)
	require.Equal(t, int64(5), payload.Available)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/inventory/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/inventory/banana", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerReservationFlow(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(t, repo)
	productID := uuid.New()

	rr := doJSON(t, router, http.MethodPost, "/api/v1/inventory/adjustments", map[string]any{
		"product_id": productID.String(),
		"delta":      10,
		"reason":     "stock in",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/inventory/reservations", map[string]any{
		"product_id": productID.String(),
		"quantity":   4,
		"owner_type": "order",
		"owner_id":   "order-77",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, string(ReservationActive), res.Status)

	// Second hold exceeding availability conflicts.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/inventory/reservations", map[string]any{
		"product_id": productID.String(),
		"quantity":   7,
		"owner_type": "order",
		"owner_id":   "order-78",
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	// Owner type outside the enum never reaches the service.
	rr = doJSON(t, router, http.MethodPost, "/api/v1/inventory/reservations", map[string]any{
		"product_id": productID.String(),
		"quantity":   1,
		"owner_type": "wishlist",
		"owner_id":   "w-1",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/inventory/reservations/%s/commit", res.ID), map[string]any{})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/inventory/reservations/%s/commit", res.ID), map[string]any{})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/inventory/reservations/"+res.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, string(ReservationCommitted), res.Status)
}

func TestHandlerBulkAdjustStatus(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(t, repo)
	okProduct := uuid.New()
	repo.records[okProduct] = Record{ProductID: okProduct, Quantity: 50, Status: StatusInStock, TrackInventory: true, LowStockThreshold: 10, Version: 1}
	emptyProduct := uuid.New()
	repo.records[emptyProduct] = Record{ProductID: emptyProduct, Quantity: 0, Status: StatusOutOfStock, TrackInventory: true, LowStockThreshold: 10, Version: 1}

	rr := doJSON(t, router, http.MethodPost, "/api/v1/inventory/adjustments/bulk", map[string]any{
		"items": []map[string]any{
			{"product_id": okProduct.String(), "delta": -5, "reason": "count"},
			{"product_id": emptyProduct.String(), "delta": -5, "reason": "count"},
		},
	})
	require.Equal(t, http.StatusMultiStatus, rr.Code)

	var result BulkResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.Equal(t, 1, result.Processed)
	require.Len(t, result.Errors, 1)
}
