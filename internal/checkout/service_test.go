package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/cart"
	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/memory"
	"github.com/ariefcatur/kantin-orders/internal/orders"
)

func item(id, merchant string, price int64, stock int) orders.MenuItem {
	return orders.MenuItem{ID: id, MerchantID: merchant, Name: id, Price: decimal.NewFromInt(price), Stock: stock}
}

func setup(t *testing.T) (*Service, *cart.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.PutMenuItem(item("item-x", "warung", 10000, 10))
	store.PutMenuItem(item("item-y", "warung", 25000, 4))
	store.PutMenuItem(item("item-z", "kedai", 8000, 4))
	store.PutPaymentMethod(orders.PaymentMethod{ID: "qris", MerchantID: "warung", Name: "QRIS", Active: true})
	store.PutPaymentMethod(orders.PaymentMethod{ID: "transfer", MerchantID: "warung", Name: "Bank Transfer", Active: false})
	return NewService(store), cart.NewService(store), store
}

func customer(id string) context.Context {
	return identity.WithActor(context.Background(), identity.Actor{UserID: id, Role: identity.RoleCustomer})
}

func fillCart(t *testing.T, carts *cart.Service, ctx context.Context, lines map[string]int) {
	t.Helper()
	for id, qty := range lines {
		if _, err := carts.AddLine(ctx, cart.AddLineInput{CustomerID: "budi", MenuItemID: id, Quantity: qty}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
}

func TestCheckout_FreezesPrices(t *testing.T) {
	svc, carts, store := setup(t)
	ctx := customer("budi")
	fillCart(t, carts, ctx, map[string]int{"item-x": 2, "item-y": 1})

	txn, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "budi", MerchantID: "warung", PaymentMethodID: "qris", OrderType: "dine_in"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !txn.TotalPrice.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("expected total 45000, got %s", txn.TotalPrice)
	}
	if txn.Status != orders.StatusPending || txn.MerchantID != "warung" || txn.PaymentMethod != "QRIS" || txn.OrderType != orders.OrderDineIn {
		t.Errorf("unexpected transaction %+v", txn)
	}
	if len(txn.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(txn.Items))
	}

	store.PutMenuItem(item("item-x", "warung", 12000, 10))

	var stored *orders.Transaction
	_ = store.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		var err error
		stored, err = tx.GetTransaction(ctx, txn.ID)
		return err
	})
	for _, it := range stored.Items {
		want := map[string]int64{"item-x": 10000, "item-y": 25000}[it.MenuItemID]
		if !it.Price.Equal(decimal.NewFromInt(want)) {
			t.Errorf("%s: expected frozen price %d, got %s", it.MenuItemID, want, it.Price)
		}
	}

	if _, err := carts.Get(ctx, "budi", "warung"); !errors.Is(err, orders.ErrNotFound) {
		t.Errorf("expected cart converted and no longer active, got %v", err)
	}
	if m, _ := store.MenuItem("item-y"); m.Stock != 4 {
		t.Errorf("checkout must not touch stock, got %d", m.Stock)
	}
}

func TestCheckout_AtomicOnStockFailure(t *testing.T) {
	svc, carts, store := setup(t)
	ctx := customer("budi")
	fillCart(t, carts, ctx, map[string]int{"item-x": 2, "item-y": 3})

	store.PutMenuItem(item("item-y", "warung", 25000, 2))

	_, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "budi", MerchantID: "warung"})
	var se *orders.InsufficientStockError
	if !errors.As(err, &se) || se.MenuItemID != "item-y" {
		t.Fatalf("expected insufficient stock on item-y, got %v", err)
	}
	if _, txns, _ := store.Counts(); txns != 0 {
		t.Errorf("expected no transaction, got %d", txns)
	}
	c, err := carts.Get(ctx, "budi", "warung")
	if err != nil {
		t.Fatalf("cart should still be active: %v", err)
	}
	if len(c.Lines) != 2 {
		t.Errorf("expected cart lines intact, got %d", len(c.Lines))
	}
}

func TestCheckout_ItemSoldOut(t *testing.T) {
	svc, carts, store := setup(t)
	ctx := customer("budi")
	fillCart(t, carts, ctx, map[string]int{"item-x": 1})
	store.PutMenuItem(item("item-x", "warung", 10000, 0))

	if _, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "budi", MerchantID: "warung"}); !errors.Is(err, orders.ErrItemUnavailable) {
		t.Errorf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestCheckout_MixedMerchant(t *testing.T) {
	svc, carts, store := setup(t)
	ctx := customer("budi")
	fillCart(t, carts, ctx, map[string]int{"item-x": 1, "item-y": 1})

	store.PutMenuItem(item("item-y", "kedai", 25000, 4))

	if _, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "budi", MerchantID: "warung"}); !errors.Is(err, orders.ErrMixedMerchant) {
		t.Errorf("expected ErrMixedMerchant, got %v", err)
	}
	if _, txns, _ := store.Counts(); txns != 0 {
		t.Errorf("expected no transaction, got %d", txns)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.Checkout(customer("budi"), CheckoutInput{CustomerID: "budi", MerchantID: "warung"}); !errors.Is(err, orders.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckout_PaymentMethod(t *testing.T) {
	for _, method := range []string{"transfer", "gopay"} {
		t.Run(method, func(t *testing.T) {
			svc, carts, _ := setup(t)
			ctx := customer("budi")
			fillCart(t, carts, ctx, map[string]int{"item-x": 1})

			_, err := svc.Checkout(ctx, CheckoutInput{CustomerID: "budi", MerchantID: "warung", PaymentMethodID: method})
			var ve *orders.ValidationError
			if !errors.As(err, &ve) || ve.Field != "payment_method_id" {
				t.Errorf("expected payment_method_id validation error, got %v", err)
			}
		})
	}
}

func TestCheckout_OtherCustomer(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.Checkout(customer("siti"), CheckoutInput{CustomerID: "budi", MerchantID: "warung"}); !errors.Is(err, orders.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	merchant := identity.WithActor(context.Background(), identity.Actor{UserID: "budi", Role: identity.RoleMerchant})
	if _, err := svc.Checkout(merchant, CheckoutInput{CustomerID: "budi", MerchantID: "warung"}); !errors.Is(err, orders.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for merchant role, got %v", err)
	}
}

func TestCreate_PricesFromCatalog(t *testing.T) {
	svc, _, _ := setup(t)

	txn, err := svc.Create(customer("budi"), CreateInput{
		CustomerID: "budi",
		Items: []orders.ItemQty{
			{MenuItemID: "item-x", Qty: 1},
			{MenuItemID: "item-y", Qty: 1},
			{MenuItemID: "item-x", Qty: 2},
		},
		PaymentMethod: "cash",
		Meta:          orders.OrderMeta{CustomerName: "Budi"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if txn.MerchantID != "warung" || txn.OrderType != orders.OrderTakeaway {
		t.Errorf("unexpected transaction %+v", txn)
	}
	if len(txn.Items) != 2 || txn.Items[0].Quantity != 3 {
		t.Errorf("expected merged items, got %+v", txn.Items)
	}
	if !txn.TotalPrice.Equal(decimal.NewFromInt(55000)) {
		t.Errorf("expected total 55000, got %s", txn.TotalPrice)
	}
}

func TestCreate_Rejections(t *testing.T) {
	svc, _, store := setup(t)
	ctx := customer("budi")

	cases := []struct {
		name  string
		items []orders.ItemQty
		want  error
	}{
		{"no items", nil, orders.ErrValidation},
		{"zero qty", []orders.ItemQty{{MenuItemID: "item-x", Qty: 0}}, orders.ErrValidation},
		{"unknown item", []orders.ItemQty{{MenuItemID: "ghost", Qty: 1}}, orders.ErrNotFound},
		{"two merchants", []orders.ItemQty{{MenuItemID: "item-x", Qty: 1}, {MenuItemID: "item-z", Qty: 1}}, orders.ErrMixedMerchant},
		{"merged demand", []orders.ItemQty{{MenuItemID: "item-y", Qty: 3}, {MenuItemID: "item-y", Qty: 2}}, orders.ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, CreateInput{CustomerID: "budi", Items: tc.items}); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if _, txns, _ := store.Counts(); txns != 0 {
		t.Errorf("expected no transactions, got %d", txns)
	}
}

func TestCreate_AdminForCustomer(t *testing.T) {
	svc, _, _ := setup(t)
	admin := identity.WithActor(context.Background(), identity.Actor{UserID: "root", Role: identity.RoleAdmin})

	txn, err := svc.Create(admin, CreateInput{CustomerID: "budi", Items: []orders.ItemQty{{MenuItemID: "item-z", Qty: 1}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if txn.CustomerID != "budi" || txn.MerchantID != "kedai" {
		t.Errorf("unexpected transaction %+v", txn)
	}
}
