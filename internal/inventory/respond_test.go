package inventory

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockledger/stockledger/internal/platform/httpx"
	"github.com/stockledger/stockledger/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{ErrInsufficientStock, http.StatusConflict, "Insufficient Stock"},
		{ErrConcurrentModification, http.StatusConflict, "Concurrent Modification"},
		{shared.ErrIdempotencyConflict, http.StatusConflict, "Duplicate Request"},
		{ErrReservationNotFound, http.StatusNotFound, "Not Found"},
		{ErrRecordNotFound, http.StatusNotFound, "Not Found"},
		{ErrProductNotFound, http.StatusNotFound, "Not Found"},
		{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
		{ErrReservationTerminal, http.StatusConflict, "Reservation Resolved"},
		{ErrProductInactive, http.StatusUnprocessableEntity, "Product Unavailable"},
		{ErrDiscontinued, http.StatusUnprocessableEntity, "Product Unavailable"},
		{ErrInvalidQuantity, http.StatusBadRequest, "Validation Failed"},
		{ErrInvalidUnitCost, http.StatusBadRequest, "Validation Failed"},
		{ErrInvalidOwner, http.StatusBadRequest, "Validation Failed"},
		{httpx.ErrValidation, http.StatusBadRequest, "Validation Failed"},
		{ErrInvalidMovement, http.StatusUnprocessableEntity, "Invalid Movement"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal Error"},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			respondError(rr, fmt.Errorf("op failed: %w", tc.err))
			require.Equal(t, tc.status, rr.Code)
			require.Contains(t, rr.Body.String(), tc.title)
		})
	}
}
