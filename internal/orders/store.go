package orders

import (
	"context"
	"time"
)

// Catalog is the read side of the menu subsystem the core depends on.
type Catalog interface {
	GetMenuItem(ctx context.Context, id string) (MenuItem, error)
	// GetMenuItems returns the found items keyed by id; missing ids are absent.
	GetMenuItems(ctx context.Context, ids []string) (map[string]MenuItem, error)
	GetPaymentMethod(ctx context.Context, merchantID, methodID string) (PaymentMethod, error)
}

// StockRepository is the only write path to MenuItem.Stock.
type StockRepository interface {
	// DecrementStock subtracts qty only if at least qty is available. When it
	// refuses, ok is false and available holds the quantity seen.
	DecrementStock(ctx context.Context, itemID string, qty int) (ok bool, available int, err error)
	IncrementStock(ctx context.Context, itemID string, qty int) error
}

// CartRepository loads carts locked for the rest of the unit of work, lines
// included, and persists line and total changes explicitly.
type CartRepository interface {
	FindActiveCart(ctx context.Context, customerID, merchantID string) (*Cart, error)
	EnsureActiveCart(ctx context.Context, customerID, merchantID string) (*Cart, error)
	CartForLine(ctx context.Context, lineID string) (*Cart, error)
	ListActiveCarts(ctx context.Context, customerID string) ([]Cart, error)

	InsertCartLine(ctx context.Context, line *CartLine) error
	UpdateCartLine(ctx context.Context, line CartLine) error
	DeleteCartLine(ctx context.Context, lineID string) error
	UpdateCartTotal(ctx context.Context, cart *Cart) error
	SetCartStatus(ctx context.Context, cartID string, status CartStatus) error
	DeleteCart(ctx context.Context, cartID string) error
	// DeleteActiveCarts removes the customer's active carts, limited to one
	// merchant when merchantID is not empty.
	DeleteActiveCarts(ctx context.Context, customerID, merchantID string) (int, error)
}

type TransactionRepository interface {
	InsertTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// LockTransaction is GetTransaction holding a row lock until the unit of
	// work ends.
	LockTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status Status, at time.Time) error
}

type PaymentRepository interface {
	GetPayment(ctx context.Context, transactionID string) (*Payment, error)
	// UpsertPayment writes the single payment row of a transaction.
	UpsertPayment(ctx context.Context, p *Payment) error
}

// Tx is everything a unit of work can touch.
type Tx interface {
	Catalog
	StockRepository
	CartRepository
	TransactionRepository
	PaymentRepository
}

// Store runs fn as one atomic unit of work: if fn returns an error nothing it
// wrote survives.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
