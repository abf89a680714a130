package inventory

import (
	"errors"
	"net/http"

	"github.com/stockledger/stockledger/internal/platform/httpx"
	"github.com/stockledger/stockledger/internal/shared"
)

// respondError maps inventory domain errors onto problem responses.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrConcurrentModification):
		httpx.Problem(w, http.StatusConflict, "Concurrent Modification",
			"the record changed repeatedly under load; retry the operation")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrRecordNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrReservationTerminal):
		httpx.Problem(w, http.StatusConflict, "Reservation Resolved", err.Error())
	case errors.Is(err, ErrProductInactive), errors.Is(err, ErrDiscontinued):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Product Unavailable", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrInvalidOwner),
		errors.Is(err, httpx.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidMovement):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Movement", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
