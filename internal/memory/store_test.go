package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

func seeded() *Store {
	s := NewStore()
	s.PutMenuItem(orders.MenuItem{ID: "m1", MerchantID: "shop", Name: "Soto", Price: decimal.NewFromInt(15000), Stock: 4})
	return s
}

func TestInTx_RollbackOnError(t *testing.T) {
	s := seeded()
	boom := errors.New("boom")

	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		if _, _, err := tx.DecrementStock(ctx, "m1", 3); err != nil {
			return err
		}
		c, err := tx.EnsureActiveCart(ctx, "cust", "shop")
		if err != nil {
			return err
		}
		if err := tx.InsertCartLine(ctx, &orders.CartLine{CartID: c.ID, MenuItemID: "m1", Quantity: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if m, _ := s.MenuItem("m1"); m.Stock != 4 {
		t.Errorf("stock should be rolled back to 4, got %d", m.Stock)
	}
	if carts, _, _ := s.Counts(); carts != 0 {
		t.Errorf("expected no carts, got %d", carts)
	}
}

func TestInTx_CancelledContext(t *testing.T) {
	s := seeded()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("expected context.Canceled without running fn, got %v called=%v", err, called)
	}
}

func TestDecrementStock_Refused(t *testing.T) {
	s := seeded()
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		ok, avail, err := tx.DecrementStock(ctx, "m1", 5)
		if err != nil {
			return err
		}
		if ok || avail != 4 {
			t.Errorf("expected refusal with 4 available, got ok=%v avail=%d", ok, avail)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInsertCartLine_UniquePerItem(t *testing.T) {
	s := seeded()
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		c, err := tx.EnsureActiveCart(ctx, "cust", "shop")
		if err != nil {
			return err
		}
		if err := tx.InsertCartLine(ctx, &orders.CartLine{CartID: c.ID, MenuItemID: "m1", Quantity: 1}); err != nil {
			return err
		}
		return tx.InsertCartLine(ctx, &orders.CartLine{CartID: c.ID, MenuItemID: "m1", Quantity: 1})
	})
	if !errors.Is(err, errConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestEnsureActiveCart_OnePerCustomerMerchant(t *testing.T) {
	s := seeded()
	var first, second string
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		c, err := tx.EnsureActiveCart(ctx, "cust", "shop")
		if err != nil {
			return err
		}
		first = c.ID
		c, err = tx.EnsureActiveCart(ctx, "cust", "shop")
		if err != nil {
			return err
		}
		second = c.ID
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected the same cart, got %s and %s", first, second)
	}
}

func TestUpsertPayment_SingleRow(t *testing.T) {
	s := seeded()
	var ids []string
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		txn := &orders.Transaction{CustomerID: "cust", MerchantID: "shop", Status: orders.StatusPending}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			p := &orders.Payment{TransactionID: txn.ID, Amount: decimal.NewFromInt(int64(i)), Method: "cash"}
			if err := tx.UpsertPayment(ctx, p); err != nil {
				return err
			}
			ids = append(ids, p.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids[0] != ids[1] {
		t.Errorf("expected payment id reused, got %v", ids)
	}
	if _, _, payments := s.Counts(); payments != 1 {
		t.Errorf("expected 1 payment, got %d", payments)
	}
}

func TestListTransactions_Filter(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		for _, st := range []orders.Status{orders.StatusPending, orders.StatusPaid, orders.StatusPending} {
			if err := tx.InsertTransaction(ctx, &orders.Transaction{CustomerID: "cust", MerchantID: "shop", Status: st}); err != nil {
				return err
			}
		}
		return tx.InsertTransaction(ctx, &orders.Transaction{CustomerID: "other", MerchantID: "shop", Status: orders.StatusPending})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_ = s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		got, err := tx.ListTransactions(ctx, orders.TransactionFilter{CustomerID: "cust", Status: orders.StatusPending})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2, got %d", len(got))
		}
		got, _ = tx.ListTransactions(ctx, orders.TransactionFilter{MerchantID: "shop", Limit: 3})
		if len(got) != 3 {
			t.Errorf("expected limit 3, got %d", len(got))
		}
		return nil
	})
}
