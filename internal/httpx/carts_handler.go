package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/kantin-orders/internal/cart"
	"github.com/ariefcatur/kantin-orders/internal/checkout"
	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/logging"
	"github.com/ariefcatur/kantin-orders/internal/orders"
	"github.com/ariefcatur/kantin-orders/internal/redisx"
)

type addLineReq struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateLineReq struct {
	Quantity *int   `json:"quantity"`
	Notes    string `json:"notes"`
}

type checkoutReq struct {
	PaymentMethodID string `json:"payment_method_id"`
	Notes           string `json:"notes"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	OrderType       string `json:"order_type"`
}

// userID is the acting user's id, empty when the request carries none. The
// services reject an empty id.
func userID(r *http.Request) string {
	a, err := identity.FromContext(r.Context())
	if err != nil {
		return ""
	}
	return a.UserID
}

func (h *Handler) listCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.Carts.List(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]cartResp, 0, len(carts))
	for i := range carts {
		out = append(out, toCartResp(&carts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), userID(r), chi.URLParam(r, "merchantID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var req addLineReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Carts.AddLine(r.Context(), cart.AddLineInput{
		CustomerID: userID(r),
		MenuItemID: req.MenuItemID,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var req updateLineReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, r, orders.Invalid("quantity", "is required"))
		return
	}
	c, err := h.Carts.UpdateLine(r.Context(), cart.UpdateLineInput{
		CustomerID: userID(r),
		LineID:     chi.URLParam(r, "lineID"),
		Quantity:   *req.Quantity,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCartOrEmpty(w, c)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.RemoveLine(r.Context(), userID(r), chi.URLParam(r, "lineID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCartOrEmpty(w, c)
}

// writeCartOrEmpty answers 204 when the last line went and the cart with it.
func writeCartOrEmpty(w http.ResponseWriter, c *orders.Cart) {
	if c == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(c))
}

func (h *Handler) clearCarts(w http.ResponseWriter, r *http.Request) {
	n, err := h.Carts.Clear(r.Context(), userID(r), chi.URLParam(r, "merchantID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	customerID := userID(r)

	idemKey := ""
	if k := r.Header.Get("Idempotency-Key"); k != "" && customerID != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemCheckout, customerID, k)
	}
	owned, written := h.claimIdempotency(w, r, idemKey)
	if written {
		return
	}

	txn, err := h.Checkout.Checkout(ctx, checkout.CheckoutInput{
		CustomerID:      customerID,
		MerchantID:      chi.URLParam(r, "merchantID"),
		PaymentMethodID: req.PaymentMethodID,
		Notes:           req.Notes,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		OrderType:       req.OrderType,
	})
	if err != nil {
		h.finishIdempotency(r, idemKey, owned, "")
		h.Metrics.checkout(checkoutOutcome(err))
		h.writeError(w, r, err)
		return
	}
	h.Metrics.checkout("created")
	h.finishIdempotency(r, idemKey, owned, txn.ID)
	h.transactionCreated(ctx, txn)
	writeJSON(w, http.StatusCreated, toTransactionResp(txn))
}

func checkoutOutcome(err error) string {
	if orders.IsStockRejection(err) {
		return "rejected"
	}
	return "failed"
}

// claimIdempotency reserves key before the request does any work. It reports
// whether this request owns the key and whether a response was already
// written: a replay of the finished request, or a conflict while the first
// one is still running. Redis trouble is not fatal: the request runs unguarded.
func (h *Handler) claimIdempotency(w http.ResponseWriter, r *http.Request, key string) (owned, written bool) {
	if key == "" || h.Redis == nil {
		return false, false
	}
	ctx := r.Context()
	id, ok, err := redisx.Claim(ctx, h.Redis, key)
	if err != nil {
		logging.FromContext(ctx).Warn("idempotency claim", zap.Error(err))
		return false, false
	}
	if ok {
		return true, false
	}
	if id == redisx.ClaimPending {
		writeJSON(w, http.StatusConflict, errorBody{Error: "a request with this idempotency key is in progress", Code: "request_in_progress"})
		return false, true
	}
	txn, err := h.Lifecycle.Get(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return false, true
	}
	h.Metrics.checkout("replayed")
	resp := toTransactionResp(txn)
	resp.Idempotent = true
	writeJSON(w, http.StatusOK, resp)
	return false, true
}

// finishIdempotency records the created transaction under an owned key, or
// releases the key when the request failed so it can be retried.
func (h *Handler) finishIdempotency(r *http.Request, key string, owned bool, transactionID string) {
	if !owned {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	var err error
	if transactionID == "" {
		err = redisx.Release(ctx, h.Redis, key)
	} else {
		err = redisx.Complete(ctx, h.Redis, key, transactionID)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("idempotency store", zap.Error(err))
	}
}
