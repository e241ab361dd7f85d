package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

const cartColumns = `id, customer_id, merchant_id, status, total_amount, created_at, updated_at`

func (t *pgTx) loadCart(ctx context.Context, where string, args ...any) (*orders.Cart, error) {
	var c orders.Cart
	err := t.tx.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE `+where+` FOR UPDATE`, args...).
		Scan(&c.ID, &c.CustomerID, &c.MerchantID, &c.Status, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.Lines, err = t.cartLines(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) cartLines(ctx context.Context, cartID string) ([]orders.CartLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, cart_id, menu_item_id, quantity, unit_price, line_total, notes, created_at, updated_at
		FROM cart_lines WHERE cart_id=$1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart lines %s: %w", cartID, err)
	}
	defer rows.Close()

	var out []orders.CartLine
	for rows.Next() {
		var l orders.CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.MenuItemID, &l.Quantity, &l.UnitPrice, &l.LineTotal, &l.Notes, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) FindActiveCart(ctx context.Context, customerID, merchantID string) (*orders.Cart, error) {
	c, err := t.loadCart(ctx, `customer_id=$1 AND merchant_id=$2 AND status='active'`, customerID, merchantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("active cart for merchant", merchantID)
	}
	if err != nil {
		return nil, fmt.Errorf("find active cart: %w", err)
	}
	return c, nil
}

// EnsureActiveCart relies on the partial unique index: a concurrent insert
// for the same pair is a no-op and both callers then lock the same row.
func (t *pgTx) EnsureActiveCart(ctx context.Context, customerID, merchantID string) (*orders.Cart, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO carts(id, customer_id, merchant_id, status, total_amount)
		VALUES ($1, $2, $3, 'active', 0)
		ON CONFLICT (customer_id, merchant_id) WHERE status = 'active' DO NOTHING`,
		uuid.NewString(), customerID, merchantID)
	if err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}
	return t.FindActiveCart(ctx, customerID, merchantID)
}

func (t *pgTx) CartForLine(ctx context.Context, lineID string) (*orders.Cart, error) {
	c, err := t.loadCart(ctx, `id = (SELECT cart_id FROM cart_lines WHERE id=$1)`, lineID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("cart line", lineID)
	}
	if err != nil {
		return nil, fmt.Errorf("cart for line: %w", err)
	}
	return c, nil
}

func (t *pgTx) ListActiveCarts(ctx context.Context, customerID string) ([]orders.Cart, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+cartColumns+` FROM carts
		WHERE customer_id=$1 AND status='active' ORDER BY created_at, id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	var out []orders.Cart
	for rows.Next() {
		var c orders.Cart
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.MerchantID, &c.Status, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Lines, err = t.cartLines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *pgTx) InsertCartLine(ctx context.Context, line *orders.CartLine) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	err := t.tx.QueryRow(ctx, `
		INSERT INTO cart_lines(id, cart_id, menu_item_id, quantity, unit_price, line_total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		line.ID, line.CartID, line.MenuItemID, line.Quantity, line.UnitPrice, line.LineTotal, line.Notes,
	).Scan(&line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateCartLine(ctx context.Context, line orders.CartLine) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE cart_lines SET quantity=$3, notes=$4, updated_at=now()
		WHERE id=$1 AND cart_id=$2`, line.ID, line.CartID, line.Quantity, line.Notes)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.NotFound("cart line", line.ID)
	}
	return nil
}

func (t *pgTx) DeleteCartLine(ctx context.Context, lineID string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM cart_lines WHERE id=$1`, lineID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.NotFound("cart line", lineID)
	}
	return nil
}

func (t *pgTx) UpdateCartTotal(ctx context.Context, c *orders.Cart) error {
	for _, l := range c.Lines {
		if _, err := t.tx.Exec(ctx, `UPDATE cart_lines SET line_total=$2 WHERE id=$1`, l.ID, l.LineTotal); err != nil {
			return fmt.Errorf("update line total: %w", err)
		}
	}
	ct, err := t.tx.Exec(ctx, `UPDATE carts SET total_amount=$2, updated_at=now() WHERE id=$1`, c.ID, c.TotalAmount)
	if err != nil {
		return fmt.Errorf("update cart total: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.NotFound("cart", c.ID)
	}
	return nil
}

func (t *pgTx) SetCartStatus(ctx context.Context, cartID string, status orders.CartStatus) error {
	ct, err := t.tx.Exec(ctx, `UPDATE carts SET status=$2, updated_at=now() WHERE id=$1`, cartID, string(status))
	if err != nil {
		return fmt.Errorf("set cart status: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.NotFound("cart", cartID)
	}
	return nil
}

func (t *pgTx) DeleteCart(ctx context.Context, cartID string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.NotFound("cart", cartID)
	}
	return nil
}

func (t *pgTx) DeleteActiveCarts(ctx context.Context, customerID, merchantID string) (int, error) {
	ct, err := t.tx.Exec(ctx, `
		DELETE FROM carts
		WHERE customer_id=$1 AND status='active' AND ($2 = '' OR merchant_id=$2)`, customerID, merchantID)
	if err != nil {
		return 0, fmt.Errorf("clear carts: %w", err)
	}
	return int(ct.RowsAffected()), nil
}
