package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/easonhq/eason/internal/catalog"
	"github.com/easonhq/eason/internal/orders"
	"github.com/easonhq/eason/internal/users"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// writeError maps domain errors to status codes. Expected outcomes keep
// their human-readable message; anything unclassified is logged in full
// and surfaced opaquely.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		notFound *orders.ProductNotFoundError
		badQty   *orders.InvalidQuantityError
		noStock  *orders.InsufficientStockError
		badMove  *orders.InvalidTransitionError
	)
	switch {
	case errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrMissingShippingInfo),
		errors.As(err, &badQty),
		errors.As(err, &noStock),
		errors.As(err, &badMove),
		errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, users.ErrMissingFields),
		errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, catalog.ErrCategoryExists),
		errors.Is(err, catalog.ErrUnitExists):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, catalog.ErrUnitNotFound),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, users.ErrNotWholesaler):
		writeMessage(w, http.StatusNotFound, err.Error())
	default:
		log.Error("request failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}
