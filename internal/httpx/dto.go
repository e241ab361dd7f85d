package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

type cartLineResp struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Notes      string          `json:"notes,omitempty"`
}

type cartResp struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	MerchantID  string          `json:"merchant_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalItems  int             `json:"total_items"`
	Lines       []cartLineResp  `json:"lines"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toCartResp(c *orders.Cart) cartResp {
	lines := make([]cartLineResp, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineResp{
			ID:         l.ID,
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			LineTotal:  l.LineTotal,
			Notes:      l.Notes,
		})
	}
	return cartResp{
		ID:          c.ID,
		CustomerID:  c.CustomerID,
		MerchantID:  c.MerchantID,
		Status:      string(c.Status),
		TotalAmount: c.TotalAmount,
		TotalItems:  c.TotalItems(),
		Lines:       lines,
		UpdatedAt:   c.UpdatedAt,
	}
}

type transactionItemResp struct {
	MenuItemID string          `json:"menu_item_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type transactionResp struct {
	ID            string                `json:"id"`
	CustomerID    string                `json:"customer_id"`
	MerchantID    string                `json:"merchant_id"`
	Status        orders.Status         `json:"status"`
	TotalPrice    decimal.Decimal       `json:"total_price"`
	PaymentMethod string                `json:"payment_method,omitempty"`
	OrderType     orders.OrderType      `json:"order_type"`
	Notes         string                `json:"notes,omitempty"`
	CustomerName  string                `json:"customer_name,omitempty"`
	CustomerPhone string                `json:"customer_phone,omitempty"`
	Items         []transactionItemResp `json:"items"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Idempotent    bool                  `json:"idempotent,omitempty"`
}

func toTransactionResp(t *orders.Transaction) transactionResp {
	items := make([]transactionItemResp, 0, len(t.Items))
	for _, it := range t.Items {
		items = append(items, transactionItemResp{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Price:      it.Price,
			Subtotal:   it.Subtotal(),
		})
	}
	return transactionResp{
		ID:            t.ID,
		CustomerID:    t.CustomerID,
		MerchantID:    t.MerchantID,
		Status:        t.Status,
		TotalPrice:    t.TotalPrice,
		PaymentMethod: t.PaymentMethod,
		OrderType:     t.OrderType,
		Notes:         t.Notes,
		CustomerName:  t.CustomerName,
		CustomerPhone: t.CustomerPhone,
		Items:         items,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

type paymentResp struct {
	ID            string               `json:"id"`
	TransactionID string               `json:"transaction_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Method        string               `json:"method"`
	Status        orders.PaymentStatus `json:"status"`
	ProofRef      string               `json:"proof_ref,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
}

func toPaymentResp(p *orders.Payment) paymentResp {
	return paymentResp{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Method:        p.Method,
		Status:        p.Status,
		ProofRef:      p.ProofRef,
		PaidAt:        p.PaidAt,
	}
}

type statusResp struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
	Source        string    `json:"source"` // cache | store
}
