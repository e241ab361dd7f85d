package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTransactionCreated       = "TransactionCreated"
	EventTransactionStatusChanged = "TransactionStatusChanged"
	EventPaymentRecorded          = "PaymentRecorded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // transaction id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	MenuItemID string          `json:"menu_item_id"`
	Qty        int             `json:"qty"`
	Price      decimal.Decimal `json:"price"`
}

type TransactionCreatedPayload struct {
	TransactionID string          `json:"transaction_id"`
	CustomerID    string          `json:"customer_id"`
	MerchantID    string          `json:"merchant_id"`
	Status        Status          `json:"status"`
	Items         []ItemPrice     `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
}

type TransactionStatusChangedPayload struct {
	TransactionID string    `json:"transaction_id"`
	CustomerID    string    `json:"customer_id"`
	MerchantID    string    `json:"merchant_id"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	ChangedAt     time.Time `json:"changed_at"`
}

type PaymentRecordedPayload struct {
	TransactionID string          `json:"transaction_id"`
	PaymentID     string          `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Status        PaymentStatus   `json:"status"`
}

func NewTransactionCreatedPayload(t *Transaction) TransactionCreatedPayload {
	items := make([]ItemPrice, 0, len(t.Items))
	for _, it := range t.Items {
		items = append(items, ItemPrice{MenuItemID: it.MenuItemID, Qty: it.Quantity, Price: it.Price})
	}
	return TransactionCreatedPayload{
		TransactionID: t.ID,
		CustomerID:    t.CustomerID,
		MerchantID:    t.MerchantID,
		Status:        t.Status,
		Items:         items,
		TotalPrice:    t.TotalPrice,
		CreatedAt:     t.CreatedAt,
	}
}

func NewTransactionStatusChangedPayload(t *Transaction, from Status) TransactionStatusChangedPayload {
	return TransactionStatusChangedPayload{
		TransactionID: t.ID,
		CustomerID:    t.CustomerID,
		MerchantID:    t.MerchantID,
		From:          from,
		To:            t.Status,
		ChangedAt:     t.UpdatedAt,
	}
}

func NewPaymentRecordedPayload(p *Payment) PaymentRecordedPayload {
	return PaymentRecordedPayload{
		TransactionID: p.TransactionID,
		PaymentID:     p.ID,
		Amount:        p.Amount,
		Method:        p.Method,
		Status:        p.Status,
	}
}
