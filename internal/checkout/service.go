// Package checkout turns a cart, or a direct list of items, into a pending
// transaction with frozen prices.
package checkout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/orders"
)

type Service struct {
	Store orders.Store
}

func NewService(store orders.Store) *Service {
	return &Service{Store: store}
}

type CheckoutInput struct {
	CustomerID      string
	MerchantID      string
	PaymentMethodID string
	Notes           string
	CustomerName    string
	CustomerPhone   string
	OrderType       string
}

func (in CheckoutInput) meta() orders.OrderMeta {
	return orders.OrderMeta{
		Notes:         in.Notes,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		OrderType:     in.OrderType,
	}
}

type CreateInput struct {
	CustomerID    string
	Items         []orders.ItemQty
	PaymentMethod string
	Meta          orders.OrderMeta
}

// Checkout converts the customer's active cart for a merchant into a pending
// transaction. Every line is re-checked against the catalog first; any
// failure leaves the cart and the catalog untouched.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*orders.Transaction, error) {
	if in.MerchantID == "" {
		return nil, orders.Invalid("merchant_id", "is required")
	}
	if err := authorize(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	orderType, err := in.meta().Validate()
	if err != nil {
		return nil, err
	}

	var out *orders.Transaction
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		c, err := tx.FindActiveCart(ctx, in.CustomerID, in.MerchantID)
		if errors.Is(err, orders.ErrNotFound) {
			return orders.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(c.Lines) == 0 {
			return orders.ErrEmptyCart
		}

		ids := make([]string, 0, len(c.Lines))
		for _, l := range c.Lines {
			ids = append(ids, l.MenuItemID)
		}
		catalog, err := tx.GetMenuItems(ctx, ids)
		if err != nil {
			return err
		}

		txn := &orders.Transaction{
			CustomerID:    c.CustomerID,
			MerchantID:    c.MerchantID,
			Status:        orders.StatusPending,
			Notes:         in.Notes,
			CustomerName:  in.CustomerName,
			CustomerPhone: in.CustomerPhone,
			OrderType:     orderType,
		}
		total := decimal.Zero
		for _, l := range c.Lines {
			item, ok := catalog[l.MenuItemID]
			if !ok {
				return &orders.ItemUnavailableError{MenuItemID: l.MenuItemID}
			}
			if err := item.CheckStock(l.Quantity); err != nil {
				return err
			}
			if item.MerchantID != c.MerchantID {
				return orders.ErrMixedMerchant
			}
			ti := orders.TransactionItem{MenuItemID: l.MenuItemID, Quantity: l.Quantity, Price: l.UnitPrice}
			txn.Items = append(txn.Items, ti)
			total = total.Add(ti.Subtotal())
		}
		txn.TotalPrice = total

		if in.PaymentMethodID != "" {
			pm, err := tx.GetPaymentMethod(ctx, c.MerchantID, in.PaymentMethodID)
			if errors.Is(err, orders.ErrNotFound) || (err == nil && !pm.Active) {
				return orders.Invalid("payment_method_id", "is not accepted by this merchant")
			}
			if err != nil {
				return err
			}
			txn.PaymentMethod = pm.Name
		}

		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		if err := tx.SetCartStatus(ctx, c.ID, orders.CartConverted); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create places an order without a cart. Prices and the merchant come from
// the catalog; all items must belong to one merchant.
func (s *Service) Create(ctx context.Context, in CreateInput) (*orders.Transaction, error) {
	if err := authorize(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, orders.Invalid("items", "must contain at least one item")
	}
	items, err := mergeItems(in.Items)
	if err != nil {
		return nil, err
	}
	orderType, err := in.Meta.Validate()
	if err != nil {
		return nil, err
	}

	var out *orders.Transaction
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.MenuItemID)
		}
		catalog, err := tx.GetMenuItems(ctx, ids)
		if err != nil {
			return err
		}

		txn := &orders.Transaction{
			CustomerID:    in.CustomerID,
			Status:        orders.StatusPending,
			PaymentMethod: in.PaymentMethod,
			Notes:         in.Meta.Notes,
			CustomerName:  in.Meta.CustomerName,
			CustomerPhone: in.Meta.CustomerPhone,
			OrderType:     orderType,
		}
		total := decimal.Zero
		for _, it := range items {
			item, ok := catalog[it.MenuItemID]
			if !ok {
				return orders.NotFound("menu item", it.MenuItemID)
			}
			if err := item.CheckStock(it.Qty); err != nil {
				return err
			}
			if txn.MerchantID == "" {
				txn.MerchantID = item.MerchantID
			} else if item.MerchantID != txn.MerchantID {
				return orders.ErrMixedMerchant
			}
			ti := orders.TransactionItem{MenuItemID: item.ID, Quantity: it.Qty, Price: item.Price}
			txn.Items = append(txn.Items, ti)
			total = total.Add(ti.Subtotal())
		}
		txn.TotalPrice = total

		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mergeItems(items []orders.ItemQty) ([]orders.ItemQty, error) {
	idx := make(map[string]int, len(items))
	out := make([]orders.ItemQty, 0, len(items))
	for _, it := range items {
		if it.MenuItemID == "" {
			return nil, orders.Invalid("items.menu_item_id", "is required")
		}
		if it.Qty < 1 {
			return nil, orders.Invalid("items.qty", "must be at least 1")
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

// authorize lets customers order for themselves and admins for anyone.
func authorize(ctx context.Context, customerID string) error {
	if customerID == "" {
		return orders.Invalid("customer_id", "is required")
	}
	a, err := identity.Require(ctx, identity.RoleCustomer, identity.RoleAdmin)
	if err != nil {
		return err
	}
	if !a.IsAdmin() && a.UserID != customerID {
		return orders.ErrUnauthorized
	}
	return nil
}
