package httpx

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/kantin-orders/internal/checkout"
	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/logging"
	"github.com/ariefcatur/kantin-orders/internal/orders"
	"github.com/ariefcatur/kantin-orders/internal/redisx"
)

type createTransactionReq struct {
	CustomerID    string           `json:"customer_id"`
	Items         []orders.ItemQty `json:"items"`
	PaymentMethod string           `json:"payment_method"`
	Notes         string           `json:"notes"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	OrderType     string           `json:"order_type"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// createTransaction places an order without a cart. Admins may order on a
// customer's behalf by naming customer_id.
func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if req.CustomerID == "" {
		req.CustomerID = userID(r)
	}

	idemKey := ""
	if k := r.Header.Get("Idempotency-Key"); k != "" && req.CustomerID != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemCreate, req.CustomerID, k)
	}
	owned, written := h.claimIdempotency(w, r, idemKey)
	if written {
		return
	}

	txn, err := h.Checkout.Create(ctx, checkout.CreateInput{
		CustomerID:    req.CustomerID,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		Meta: orders.OrderMeta{
			Notes:         req.Notes,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			OrderType:     req.OrderType,
		},
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

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.TransactionFilter{
		CustomerID: q.Get("customer_id"),
		MerchantID: q.Get("merchant_id"),
		Status:     orders.Status(q.Get("status")),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, r, orders.Invalid("limit", "must be a positive integer"))
			return
		}
		f.Limit = n
	}
	txns, err := h.Lifecycle.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]transactionResp, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResp(&txns[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.Lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResp(txn))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	change, err := h.Lifecycle.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.statusChanged(r.Context(), change)
	writeJSON(w, http.StatusOK, toTransactionResp(change.Transaction))
}

// getStatus serves the status from the Redis cache when it can, then falls
// back to the store and refills the cache.
func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	actor, err := identity.FromContext(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.Redis != nil {
		e, ok, err := redisx.GetStatus(ctx, h.Redis, id)
		if err != nil {
			logging.FromContext(ctx).Warn("status cache read", zap.String("transaction_id", id), zap.Error(err))
		}
		if ok && canSee(actor, e) {
			writeJSON(w, http.StatusOK, statusResp{TransactionID: id, Status: e.Status, UpdatedAt: e.UpdatedAt, Source: "cache"})
			return
		}
	}

	txn, err := h.Lifecycle.Get(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, txn)
	writeJSON(w, http.StatusOK, statusResp{TransactionID: id, Status: string(txn.Status), UpdatedAt: txn.UpdatedAt, Source: "store"})
}

// canSee applies the transaction visibility rule to a cache entry. Entries
// without owners are never trusted.
func canSee(a identity.Actor, e redisx.StatusEntry) bool {
	switch a.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleCustomer:
		return e.CustomerID != "" && e.CustomerID == a.UserID
	case identity.RoleMerchant:
		return e.MerchantID != "" && e.MerchantID == a.UserID
	}
	return false
}
