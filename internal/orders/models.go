package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is the catalog's view of a sellable item. The catalog owns it; the
// core only reads it and adjusts Stock through the ledger.
type MenuItem struct {
	ID         string
	MerchantID string
	Name       string
	Price      decimal.Decimal
	Stock      int
	UpdatedAt  time.Time
}

func (m MenuItem) Available() bool { return m.Stock > 0 }

// CheckStock rejects qty when the item is sold out or has fewer than qty units.
func (m MenuItem) CheckStock(qty int) error {
	if !m.Available() {
		return &ItemUnavailableError{MenuItemID: m.ID, Name: m.Name}
	}
	if qty > m.Stock {
		return &InsufficientStockError{MenuItemID: m.ID, Requested: qty, Available: m.Stock}
	}
	return nil
}

type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartConverted CartStatus = "converted"
	CartAbandoned CartStatus = "abandoned"
)

type Cart struct {
	ID          string
	CustomerID  string
	MerchantID  string
	Status      CartStatus
	TotalAmount decimal.Decimal
	Lines       []CartLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TotalItems is the sum of line quantities.
func (c *Cart) TotalItems() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Recalculate re-derives every line total and the cart total from quantities
// and captured unit prices.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for i := range c.Lines {
		c.Lines[i].LineTotal = c.Lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(c.Lines[i].Quantity)))
		total = total.Add(c.Lines[i].LineTotal)
	}
	c.TotalAmount = total
}

type CartLine struct {
	ID         string
	CartID     string
	MenuItemID string
	Quantity   int
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OrderType string

const (
	OrderDineIn   OrderType = "dine_in"
	OrderTakeaway OrderType = "takeaway"
	OrderDelivery OrderType = "delivery"
)

func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case "":
		return OrderTakeaway, nil
	case OrderDineIn, OrderTakeaway, OrderDelivery:
		return OrderType(s), nil
	}
	return "", Invalid("order_type", "must be one of dine_in, takeaway, delivery")
}

type Transaction struct {
	ID            string
	CustomerID    string
	MerchantID    string
	TotalPrice    decimal.Decimal
	Status        Status
	PaymentMethod string
	Notes         string
	CustomerName  string
	CustomerPhone string
	OrderType     OrderType
	Items         []TransactionItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItemQuantities flattens the items for ledger calls.
func (t *Transaction) ItemQuantities() []ItemQty {
	out := make([]ItemQty, 0, len(t.Items))
	for _, it := range t.Items {
		out = append(out, ItemQty{MenuItemID: it.MenuItemID, Qty: it.Quantity})
	}
	return out
}

// TransactionItem is the frozen price/quantity record of one ordered item.
type TransactionItem struct {
	ID            string
	TransactionID string
	MenuItemID    string
	Quantity      int
	Price         decimal.Decimal
}

func (i TransactionItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type PaymentStatus string

const (
	PaymentPendingVerification PaymentStatus = "pending_verification"
	PaymentPaid                PaymentStatus = "paid"
)

type Payment struct {
	ID            string
	TransactionID string
	Amount        decimal.Decimal
	Method        string
	PaidAt        *time.Time
	ProofRef      string
	Status        PaymentStatus
}

// PaymentMethod is a merchant's configured way of being paid.
type PaymentMethod struct {
	ID         string
	MerchantID string
	Name       string
	Active     bool
}

type ItemQty struct {
	MenuItemID string `json:"menu_item_id"`
	Qty        int    `json:"qty"`
}

// OrderMeta carries the free-form fields a customer attaches to an order.
type OrderMeta struct {
	Notes         string
	CustomerName  string
	CustomerPhone string
	OrderType     string
}

// Validate normalises the order type and checks field lengths.
func (m OrderMeta) Validate() (OrderType, error) {
	if len(m.Notes) > 500 {
		return "", Invalid("notes", "must be at most 500 characters")
	}
	if len(m.CustomerName) > 100 {
		return "", Invalid("customer_name", "must be at most 100 characters")
	}
	if len(m.CustomerPhone) > 20 {
		return "", Invalid("customer_phone", "must be at most 20 characters")
	}
	return ParseOrderType(m.OrderType)
}

// TransactionFilter narrows List queries. Empty fields match everything.
type TransactionFilter struct {
	CustomerID string
	MerchantID string
	Status     Status
	Limit      int
}
