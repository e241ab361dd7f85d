// Package lifecycle moves transactions through their statuses and applies the
// stock side effect each move requires.
package lifecycle

import (
	"context"
	"time"

	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/inventory"
	"github.com/ariefcatur/kantin-orders/internal/orders"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	Store orders.Store
	// Now is overridable in tests.
	Now func() time.Time
}

func NewService(store orders.Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

// Change describes an applied transition.
type Change struct {
	Transaction *orders.Transaction
	Previous    orders.Status
	Effect      orders.Effect
}

// Changed is false for a same-status no-op.
func (c *Change) Changed() bool { return c.Previous != c.Transaction.Status }

// UpdateStatus locks the transaction, checks the actor may make the move and
// applies it. Nothing is written when the stock side effect fails.
func (s *Service) UpdateStatus(ctx context.Context, transactionID, newStatus string) (*Change, error) {
	next, err := orders.ParseStatus(newStatus)
	if err != nil {
		return nil, err
	}
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out *Change
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		txn, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := authorize(actor, txn, next); err != nil {
			return err
		}
		prev := txn.Status
		effect, err := Apply(ctx, tx, txn, next, s.now())
		if err != nil {
			return err
		}
		out = &Change{Transaction: txn, Previous: prev, Effect: effect}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply moves txn to next inside the caller's unit of work. The side effect is
// decided by orders.Plan from the status txn holds now, so a repeated move to
// the same status touches nothing. txn is updated in place on success.
func Apply(ctx context.Context, tx orders.Tx, txn *orders.Transaction, next orders.Status, at time.Time) (orders.Effect, error) {
	effect, err := orders.Plan(txn.Status, next)
	if err != nil {
		return orders.EffectNone, err
	}

	ledger := inventory.NewLedger(tx)
	switch effect {
	case orders.EffectReduceStock:
		err = ledger.ReduceAll(ctx, txn.ItemQuantities())
	case orders.EffectRestoreStock:
		err = ledger.RestoreAll(ctx, txn.ItemQuantities())
	}
	if err != nil {
		return orders.EffectNone, err
	}

	if txn.Status == next {
		return effect, nil
	}
	if err := tx.UpdateTransactionStatus(ctx, txn.ID, next, at); err != nil {
		return orders.EffectNone, err
	}
	txn.Status = next
	txn.UpdatedAt = at
	return effect, nil
}

// Get returns a transaction visible to the actor: admins see all, merchants
// their own orders, customers their own purchases. Anything else is NotFound.
func (s *Service) Get(ctx context.Context, id string) (*orders.Transaction, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	var out *orders.Transaction
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		txn, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if !visible(actor, txn) {
			return orders.NotFound("transaction", id)
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns transactions newest first. Customers only ever see their own
// history and merchants their own queue, whatever the filter says.
func (s *Service) List(ctx context.Context, f orders.TransactionFilter) ([]orders.Transaction, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case identity.RoleCustomer:
		f.CustomerID = actor.UserID
	case identity.RoleMerchant:
		f.MerchantID = actor.UserID
	}
	if f.Status != "" {
		if _, err := orders.ParseStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	var out []orders.Transaction
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, f)
		return err
	})
	return out, err
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// authorize: admins may make any move, the owning merchant any move on its
// orders, and the buying customer may only cancel while still pending.
func authorize(a identity.Actor, txn *orders.Transaction, next orders.Status) error {
	switch {
	case a.IsAdmin():
		return nil
	case a.Role == identity.RoleMerchant && a.UserID == txn.MerchantID:
		return nil
	case a.Role == identity.RoleCustomer && a.UserID == txn.CustomerID:
		if txn.Status == orders.StatusPending && next == orders.StatusCancelled {
			return nil
		}
	}
	return orders.ErrUnauthorized
}

func visible(a identity.Actor, txn *orders.Transaction) bool {
	switch a.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleMerchant:
		return a.UserID == txn.MerchantID
	case identity.RoleCustomer:
		return a.UserID == txn.CustomerID
	}
	return false
}
