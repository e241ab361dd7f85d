package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

// Store is the pgx implementation of orders.Store. Each unit of work is one
// database transaction; rows read for update stay locked until it ends.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

const menuColumns = `id, merchant_id, name, price, stock, updated_at`

func scanMenuItem(row pgx.Row) (orders.MenuItem, error) {
	var m orders.MenuItem
	err := row.Scan(&m.ID, &m.MerchantID, &m.Name, &m.Price, &m.Stock, &m.UpdatedAt)
	return m, err
}

func (t *pgTx) GetMenuItem(ctx context.Context, id string) (orders.MenuItem, error) {
	m, err := scanMenuItem(t.tx.QueryRow(ctx, `SELECT `+menuColumns+` FROM menus WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.MenuItem{}, orders.NotFound("menu item", id)
	}
	if err != nil {
		return orders.MenuItem{}, fmt.Errorf("get menu item %s: %w", id, err)
	}
	return m, nil
}

func (t *pgTx) GetMenuItems(ctx context.Context, ids []string) (map[string]orders.MenuItem, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+menuColumns+` FROM menus WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get menu items: %w", err)
	}
	defer rows.Close()

	out := make(map[string]orders.MenuItem, len(ids))
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func (t *pgTx) GetPaymentMethod(ctx context.Context, merchantID, methodID string) (orders.PaymentMethod, error) {
	var pm orders.PaymentMethod
	err := t.tx.QueryRow(ctx, `
		SELECT mpm.payment_method_id, mpm.merchant_id, pm.name, mpm.is_active
		FROM merchant_payment_methods mpm
		JOIN payment_methods pm ON pm.id = mpm.payment_method_id
		WHERE mpm.merchant_id=$1 AND mpm.payment_method_id=$2`, merchantID, methodID,
	).Scan(&pm.ID, &pm.MerchantID, &pm.Name, &pm.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.PaymentMethod{}, orders.NotFound("payment method", methodID)
	}
	if err != nil {
		return orders.PaymentMethod{}, fmt.Errorf("get payment method %s: %w", methodID, err)
	}
	return pm, nil
}

// DecrementStock is a single conditional UPDATE, so two concurrent callers
// can never both pass the sufficiency check on the same units.
func (t *pgTx) DecrementStock(ctx context.Context, itemID string, qty int) (bool, int, error) {
	var left int
	err := t.tx.QueryRow(ctx, `
		UPDATE menus SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2
		RETURNING stock`, itemID, qty).Scan(&left)
	if err == nil {
		return true, left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, 0, err
	}

	var available int
	err = t.tx.QueryRow(ctx, `SELECT stock FROM menus WHERE id=$1`, itemID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, orders.NotFound("menu item", itemID)
	}
	if err != nil {
		return false, 0, err
	}
	return false, available, nil
}

func (t *pgTx) IncrementStock(ctx context.Context, itemID string, qty int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE menus SET stock = stock + $2, updated_at = now() WHERE id=$1`, itemID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.NotFound("menu item", itemID)
	}
	return nil
}
