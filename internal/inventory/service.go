package inventory

import (
	"context"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

// Service runs single ledger operations in their own unit of work.
type Service struct {
	Store orders.Store
}

func (s *Service) Reduce(ctx context.Context, itemID string, amount int) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return NewLedger(tx).Reduce(ctx, itemID, amount)
	})
}

func (s *Service) Restore(ctx context.Context, itemID string, amount int) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return NewLedger(tx).Restore(ctx, itemID, amount)
	})
}

// Available returns the item's current stock.
func (s *Service) Available(ctx context.Context, itemID string) (int, error) {
	var n int
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		m, err := tx.GetMenuItem(ctx, itemID)
		if err != nil {
			return err
		}
		n = m.Stock
		return nil
	})
	return n, err
}
