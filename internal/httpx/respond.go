package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ariefcatur/kantin-orders/internal/logging"
	"github.com/ariefcatur/kantin-orders/internal/orders"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return orders.Invalid("body", "must be valid JSON")
	}
	return nil
}

// writeError maps core errors to status codes. Anything unrecognised is a
// 500 and gets logged; its message is not echoed to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *orders.ValidationError
		stock *orders.InsufficientStockError
		gone  *orders.ItemUnavailableError
	)
	if orders.IsStockRejection(err) {
		h.Metrics.stockRejected()
	}
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Code: "validation_failed", Field: verr.Field})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, errorBody{Error: stock.Error(), Code: "insufficient_stock", Details: stock})
	case errors.As(err, &gone):
		writeJSON(w, http.StatusConflict, errorBody{Error: gone.Error(), Code: "item_unavailable",
			Details: map[string]string{"menu_item_id": gone.MenuItemID, "name": gone.Name}})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, orders.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, orders.ErrMixedMerchant):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "mixed_merchant"})
	case errors.Is(err, orders.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "empty_cart"})
	case errors.Is(err, orders.ErrAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "already_paid"})
	case errors.Is(err, orders.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"})
	default:
		logging.FromContext(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}
