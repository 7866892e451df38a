package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	ProductID string `json:"product_id,omitempty"`
	Requested int32  `json:"requested,omitempty"`
	Available int32  `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError переводит доменную ошибку в HTTP-статус и JSON-тело.
func writeDomainError(w http.ResponseWriter, err error) {
	if stockErr, ok := domain.AsInsufficientStock(err); ok {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     "insufficient stock",
			ProductID: stockErr.ProductID,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		})
		return
	}

	writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrBuyerRequired),
		errors.Is(err, domain.ErrSellerRequired),
		errors.Is(err, domain.ErrProductNameRequired),
		errors.Is(err, domain.ErrProductPriceInvalid),
		errors.Is(err, domain.ErrProductQuantityInvalid),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductAlreadyExists),
		errors.Is(err, domain.ErrOrderAlreadyExists),
		errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
