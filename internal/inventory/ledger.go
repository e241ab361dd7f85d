package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

// Ledger applies stock adjustments through the repository it is bound to,
// normally the Tx of the caller's unit of work.
type Ledger struct {
	repo orders.StockRepository
}

func NewLedger(repo orders.StockRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Reduce decrements stock by amount or fails with *orders.InsufficientStockError
// leaving the item untouched.
func (l *Ledger) Reduce(ctx context.Context, itemID string, amount int) error {
	if err := checkAmount(itemID, amount); err != nil {
		return err
	}
	ok, available, err := l.repo.DecrementStock(ctx, itemID, amount)
	if err != nil {
		return fmt.Errorf("reduce stock %s: %w", itemID, err)
	}
	if !ok {
		return &orders.InsufficientStockError{MenuItemID: itemID, Requested: amount, Available: available}
	}
	return nil
}

// Restore increments stock by amount. There is no upper bound: restocking only
// ever reverses an earlier reduction.
func (l *Ledger) Restore(ctx context.Context, itemID string, amount int) error {
	if err := checkAmount(itemID, amount); err != nil {
		return err
	}
	if err := l.repo.IncrementStock(ctx, itemID, amount); err != nil {
		return fmt.Errorf("restore stock %s: %w", itemID, err)
	}
	return nil
}

// ReduceAll reduces every item or none. Reductions applied before a failure
// are given back before returning the error.
func (l *Ledger) ReduceAll(ctx context.Context, items []orders.ItemQty) error {
	merged, err := merge(items)
	if err != nil {
		return err
	}
	applied := make([]orders.ItemQty, 0, len(merged))
	for _, it := range merged {
		if err := l.Reduce(ctx, it.MenuItemID, it.Qty); err != nil {
			for _, done := range applied {
				if rerr := l.repo.IncrementStock(ctx, done.MenuItemID, done.Qty); rerr != nil {
					return fmt.Errorf("compensate %s after %v: %w", done.MenuItemID, err, rerr)
				}
			}
			return err
		}
		applied = append(applied, it)
	}
	return nil
}

func (l *Ledger) RestoreAll(ctx context.Context, items []orders.ItemQty) error {
	merged, err := merge(items)
	if err != nil {
		return err
	}
	for _, it := range merged {
		if err := l.Restore(ctx, it.MenuItemID, it.Qty); err != nil {
			return err
		}
	}
	return nil
}

// merge sums quantities per item keeping first-seen order, so a transaction
// listing one item twice is checked against its combined demand.
func merge(items []orders.ItemQty) ([]orders.ItemQty, error) {
	idx := make(map[string]int, len(items))
	out := make([]orders.ItemQty, 0, len(items))
	for _, it := range items {
		if err := checkAmount(it.MenuItemID, it.Qty); err != nil {
			return nil, err
		}
		if i, ok := idx[it.MenuItemID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.MenuItemID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func checkAmount(itemID string, amount int) error {
	if itemID == "" {
		return orders.Invalid("menu_item_id", "is required")
	}
	if amount <= 0 {
		return orders.Invalid("quantity", "must be greater than zero")
	}
	return nil
}
