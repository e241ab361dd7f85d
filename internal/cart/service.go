// Package cart keeps one active cart per (customer, merchant) and its lines
// consistent with the catalog's stock.
package cart

import (
	"context"

	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/orders"
)

const (
	MaxQuantity = 100
	maxNotesLen = 255
)

type Service struct {
	Store orders.Store
}

func NewService(store orders.Store) *Service {
	return &Service{Store: store}
}

type AddLineInput struct {
	CustomerID string
	MenuItemID string
	Quantity   int
	Notes      string
}

func (in AddLineInput) validate() error {
	if in.CustomerID == "" {
		return orders.Invalid("customer_id", "is required")
	}
	if in.MenuItemID == "" {
		return orders.Invalid("menu_item_id", "is required")
	}
	if in.Quantity < 1 || in.Quantity > MaxQuantity {
		return orders.Invalid("quantity", "must be between 1 and 100")
	}
	return checkNotes(in.Notes)
}

type UpdateLineInput struct {
	CustomerID string
	LineID     string
	Quantity   int
	Notes      string
}

func (in UpdateLineInput) validate() error {
	if in.CustomerID == "" {
		return orders.Invalid("customer_id", "is required")
	}
	if in.LineID == "" {
		return orders.Invalid("line_id", "is required")
	}
	if in.Quantity < 0 || in.Quantity > MaxQuantity {
		return orders.Invalid("quantity", "must be between 0 and 100")
	}
	return checkNotes(in.Notes)
}

func checkNotes(notes string) error {
	if len(notes) > maxNotesLen {
		return orders.Invalid("notes", "must be at most 255 characters")
	}
	return nil
}

// AddLine puts quantity of an item into the customer's cart for the item's
// merchant, merging into an existing line for the same item. The merged
// quantity must stay within MaxQuantity and fit the current stock.
func (s *Service) AddLine(ctx context.Context, in AddLineInput) (*orders.Cart, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := authorize(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	var out *orders.Cart
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		item, err := tx.GetMenuItem(ctx, in.MenuItemID)
		if err != nil {
			return err
		}
		if err := item.CheckStock(in.Quantity); err != nil {
			return err
		}

		c, err := tx.EnsureActiveCart(ctx, in.CustomerID, item.MerchantID)
		if err != nil {
			return err
		}

		if line, ok := findLine(c, item.ID); ok {
			merged := line.Quantity + in.Quantity
			if merged > MaxQuantity {
				return orders.Invalid("quantity", "line total must be at most 100")
			}
			if err := item.CheckStock(merged); err != nil {
				return err
			}
			line.Quantity = merged
			line.Notes = in.Notes
			if err := tx.UpdateCartLine(ctx, line); err != nil {
				return err
			}
		} else {
			line := &orders.CartLine{
				CartID:     c.ID,
				MenuItemID: item.ID,
				Quantity:   in.Quantity,
				UnitPrice:  item.Price,
				Notes:      in.Notes,
			}
			if err := tx.InsertCartLine(ctx, line); err != nil {
				return err
			}
		}

		out, err = recalculate(ctx, tx, in.CustomerID, item.MerchantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateLine overwrites a line's quantity and notes. Quantity 0 removes the
// line, in which case the returned cart is nil if nothing is left in it.
func (s *Service) UpdateLine(ctx context.Context, in UpdateLineInput) (*orders.Cart, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Quantity == 0 {
		return s.RemoveLine(ctx, in.CustomerID, in.LineID)
	}
	if err := authorize(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	var out *orders.Cart
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		c, err := ownedCartForLine(ctx, tx, in.CustomerID, in.LineID)
		if err != nil {
			return err
		}
		line, _ := lineByID(c, in.LineID)

		item, err := tx.GetMenuItem(ctx, line.MenuItemID)
		if err != nil {
			return err
		}
		if err := item.CheckStock(in.Quantity); err != nil {
			return err
		}

		line.Quantity = in.Quantity
		line.Notes = in.Notes
		if err := tx.UpdateCartLine(ctx, line); err != nil {
			return err
		}
		out, err = recalculate(ctx, tx, c.CustomerID, c.MerchantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveLine deletes a line. A cart left without lines is deleted too and nil
// is returned.
func (s *Service) RemoveLine(ctx context.Context, customerID, lineID string) (*orders.Cart, error) {
	if lineID == "" {
		return nil, orders.Invalid("line_id", "is required")
	}
	if err := authorize(ctx, customerID); err != nil {
		return nil, err
	}

	var out *orders.Cart
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		c, err := ownedCartForLine(ctx, tx, customerID, lineID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCartLine(ctx, lineID); err != nil {
			return err
		}
		if len(c.Lines) <= 1 {
			return tx.DeleteCart(ctx, c.ID)
		}
		out, err = recalculate(ctx, tx, c.CustomerID, c.MerchantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear deletes the customer's active cart for merchantID, or every active
// cart when merchantID is empty. It returns how many carts were removed.
func (s *Service) Clear(ctx context.Context, customerID, merchantID string) (int, error) {
	if err := authorize(ctx, customerID); err != nil {
		return 0, err
	}
	var n int
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		n, err = tx.DeleteActiveCarts(ctx, customerID, merchantID)
		return err
	})
	return n, err
}

func (s *Service) Get(ctx context.Context, customerID, merchantID string) (*orders.Cart, error) {
	if err := authorize(ctx, customerID); err != nil {
		return nil, err
	}
	var out *orders.Cart
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.FindActiveCart(ctx, customerID, merchantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every active cart of the customer, oldest first.
func (s *Service) List(ctx context.Context, customerID string) ([]orders.Cart, error) {
	if err := authorize(ctx, customerID); err != nil {
		return nil, err
	}
	var out []orders.Cart
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListActiveCarts(ctx, customerID)
		return err
	})
	return out, err
}

// recalculate reloads the cart, re-derives every line total and the cart
// total, and writes them back. Every mutation ends here.
func recalculate(ctx context.Context, tx orders.Tx, customerID, merchantID string) (*orders.Cart, error) {
	c, err := tx.FindActiveCart(ctx, customerID, merchantID)
	if err != nil {
		return nil, err
	}
	c.Recalculate()
	if err := tx.UpdateCartTotal(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ownedCartForLine hides lines of other customers behind ErrNotFound.
func ownedCartForLine(ctx context.Context, tx orders.Tx, customerID, lineID string) (*orders.Cart, error) {
	c, err := tx.CartForLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if c.CustomerID != customerID || c.Status != orders.CartActive {
		return nil, orders.NotFound("cart line", lineID)
	}
	if _, ok := lineByID(c, lineID); !ok {
		return nil, orders.NotFound("cart line", lineID)
	}
	return c, nil
}

func findLine(c *orders.Cart, menuItemID string) (orders.CartLine, bool) {
	for _, l := range c.Lines {
		if l.MenuItemID == menuItemID {
			return l, true
		}
	}
	return orders.CartLine{}, false
}

func lineByID(c *orders.Cart, lineID string) (orders.CartLine, bool) {
	for _, l := range c.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return orders.CartLine{}, false
}

func authorize(ctx context.Context, customerID string) error {
	a, err := identity.Require(ctx, identity.RoleCustomer)
	if err != nil {
		return err
	}
	if a.UserID != customerID {
		return orders.ErrUnauthorized
	}
	return nil
}

