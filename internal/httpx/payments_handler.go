package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/orders"
	"github.com/ariefcatur/kantin-orders/internal/payment"
)

type recordPaymentReq struct {
	TransactionID string           `json:"transaction_id"`
	Amount        *decimal.Decimal `json:"amount"`
	Method        string           `json:"method"`
	ProofRef      string           `json:"proof_ref"`
}

type submitProofReq struct {
	TransactionID string `json:"transaction_id"`
	ProofRef      string `json:"proof_ref"`
}

type receiptResp struct {
	Payment     paymentResp     `json:"payment"`
	Transaction transactionResp `json:"transaction"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		h.writeError(w, r, orders.Invalid("amount", "is required"))
		return
	}
	ctx := r.Context()
	rc, err := h.Payments.Record(ctx, payment.RecordInput{
		TransactionID: req.TransactionID,
		Amount:        *req.Amount,
		Method:        req.Method,
		ProofRef:      req.ProofRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.paymentRecorded(ctx, rc.Payment)
	h.statusChanged(ctx, rc.Change)
	writeJSON(w, http.StatusOK, receiptResp{
		Payment:     toPaymentResp(rc.Payment),
		Transaction: toTransactionResp(rc.Change.Transaction),
	})
}

func (h *Handler) submitProof(w http.ResponseWriter, r *http.Request) {
	var req submitProofReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Payments.SubmitProof(r.Context(), req.TransactionID, req.ProofRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.paymentRecorded(r.Context(), p)
	writeJSON(w, http.StatusAccepted, toPaymentResp(p))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResp(p))
}
