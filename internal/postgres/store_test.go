package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/inventory"
	"github.com/ariefcatur/kantin-orders/internal/orders"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, dsn, 16)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func seedMenu(t *testing.T, db *pgxpool.Pool, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(),
		`INSERT INTO menus(id, merchant_id, name, price, stock) VALUES ($1, 'warung-test', 'Es Teh', $2, $3)`,
		id, decimal.NewFromInt(5000), stock)
	if err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	return id
}

func TestIntegration_ConcurrentReduce(t *testing.T) {
	db := setupDB(t)
	id := seedMenu(t, db, 10)
	svc := &inventory.Service{Store: NewStore(db)}

	var okCount, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Reduce(context.Background(), id, 1)
			switch {
			case err == nil:
				okCount.Add(1)
			case errors.Is(err, orders.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if okCount.Load() != 10 || rejected.Load() != 20 {
		t.Errorf("expected 10/20, got %d/%d", okCount.Load(), rejected.Load())
	}
	n, err := svc.Available(context.Background(), id)
	if err != nil || n != 0 {
		t.Errorf("expected stock 0, got %d %v", n, err)
	}
}

func TestIntegration_RollbackOnError(t *testing.T) {
	db := setupDB(t)
	id := seedMenu(t, db, 5)
	store := NewStore(db)
	boom := errors.New("boom")

	err := store.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		if _, _, err := tx.DecrementStock(ctx, id, 3); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	n, err := (&inventory.Service{Store: store}).Available(context.Background(), id)
	if err != nil || n != 5 {
		t.Errorf("expected stock 5 after rollback, got %d %v", n, err)
	}
}

func TestIntegration_CartAndTransactionRoundTrip(t *testing.T) {
	db := setupDB(t)
	menu := seedMenu(t, db, 5)
	store := NewStore(db)
	customer := uuid.NewString()
	ctx := context.Background()

	var txnID string
	err := store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		c, err := tx.EnsureActiveCart(ctx, customer, "warung-test")
		if err != nil {
			return err
		}
		again, err := tx.EnsureActiveCart(ctx, customer, "warung-test")
		if err != nil {
			return err
		}
		if again.ID != c.ID {
			t.Errorf("expected one active cart, got %s and %s", c.ID, again.ID)
		}
		if err := tx.InsertCartLine(ctx, &orders.CartLine{CartID: c.ID, MenuItemID: menu, Quantity: 2, UnitPrice: decimal.NewFromInt(5000)}); err != nil {
			return err
		}

		txn := &orders.Transaction{
			CustomerID: customer,
			MerchantID: "warung-test",
			Status:     orders.StatusPending,
			TotalPrice: decimal.NewFromInt(10000),
			OrderType:  orders.OrderTakeaway,
			Items:      []orders.TransactionItem{{MenuItemID: menu, Quantity: 2, Price: decimal.NewFromInt(5000)}},
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		txnID = txn.ID
		return tx.SetCartStatus(ctx, c.ID, orders.CartConverted)
	})
	if err != nil {
		t.Fatalf("unit of work: %v", err)
	}

	err = store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		txn, err := tx.LockTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if len(txn.Items) != 1 || !txn.Items[0].Price.Equal(decimal.NewFromInt(5000)) {
			t.Errorf("unexpected items %+v", txn.Items)
		}
		for i := 0; i < 2; i++ {
			now := time.Now()
			if err := tx.UpsertPayment(ctx, &orders.Payment{TransactionID: txnID, Amount: txn.TotalPrice, Method: "Cash", Status: orders.PaymentPaid, PaidAt: &now}); err != nil {
				return err
			}
		}
		if _, err := tx.FindActiveCart(ctx, customer, "warung-test"); !errors.Is(err, orders.ErrNotFound) {
			t.Errorf("expected converted cart to be inactive, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second unit of work: %v", err)
	}

	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE transaction_id=$1`, txnID).Scan(&n); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 payment row, got %d", n)
	}
}
