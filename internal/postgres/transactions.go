package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

const txnColumns = `id, customer_id, merchant_id, total_price, status, payment_method, notes,
	customer_name, customer_phone, order_type, created_at, updated_at`

func scanTransaction(row pgx.Row) (orders.Transaction, error) {
	var t orders.Transaction
	err := row.Scan(&t.ID, &t.CustomerID, &t.MerchantID, &t.TotalPrice, &t.Status, &t.PaymentMethod, &t.Notes,
		&t.CustomerName, &t.CustomerPhone, &t.OrderType, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *orders.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO transactions(id, customer_id, merchant_id, total_price, status, payment_method,
			notes, customer_name, customer_phone, order_type)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		txn.ID, txn.CustomerID, txn.MerchantID, txn.TotalPrice, string(txn.Status), txn.PaymentMethod,
		txn.Notes, txn.CustomerName, txn.CustomerPhone, string(txn.OrderType),
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i := range txn.Items {
		it := &txn.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.TransactionID = txn.ID
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO transaction_items(id, transaction_id, menu_item_id, quantity, price)
			VALUES ($1,$2,$3,$4,$5)`, it.ID, it.TransactionID, it.MenuItemID, it.Quantity, it.Price); err != nil {
			return fmt.Errorf("insert transaction item: %w", err)
		}
	}
	return nil
}

func (t *pgTx) getTransaction(ctx context.Context, id, suffix string) (*orders.Transaction, error) {
	txn, err := scanTransaction(t.tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1`+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	items, err := t.transactionItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	txn.Items = items[id]
	return &txn, nil
}

func (t *pgTx) GetTransaction(ctx context.Context, id string) (*orders.Transaction, error) {
	return t.getTransaction(ctx, id, "")
}

func (t *pgTx) LockTransaction(ctx context.Context, id string) (*orders.Transaction, error) {
	return t.getTransaction(ctx, id, " FOR UPDATE")
}

func (t *pgTx) transactionItems(ctx context.Context, ids []string) (map[string][]orders.TransactionItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, transaction_id, menu_item_id, quantity, price
		FROM transaction_items WHERE transaction_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("transaction items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]orders.TransactionItem, len(ids))
	for rows.Next() {
		var it orders.TransactionItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.MenuItemID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		out[it.TransactionID] = append(out[it.TransactionID], it)
	}
	return out, rows.Err()
}

func (t *pgTx) ListTransactions(ctx context.Context, f orders.TransactionFilter) ([]orders.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id=$%d", f.CustomerID)
	}
	if f.MerchantID != "" {
		add("merchant_id=$%d", f.MerchantID)
	}
	if f.Status != "" {
		add("status=$%d", string(f.Status))
	}

	q := `SELECT ` + txnColumns + ` FROM transactions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var out []orders.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, txn)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	items, err := t.transactionItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (t *pgTx) UpdateTransactionStatus(ctx context.Context, id string, status orders.Status, at time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE transactions SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.NotFound("transaction", id)
	}
	return nil
}

func (t *pgTx) GetPayment(ctx context.Context, transactionID string) (*orders.Payment, error) {
	var p orders.Payment
	err := t.tx.QueryRow(ctx, `
		SELECT id, transaction_id, amount, method, paid_at, proof_ref, status
		FROM payments WHERE transaction_id=$1`, transactionID,
	).Scan(&p.ID, &p.TransactionID, &p.Amount, &p.Method, &p.PaidAt, &p.ProofRef, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("payment for transaction", transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// UpsertPayment keys on the unique transaction_id, so a transaction never
// gets a second payment row; an existing row keeps its id.
func (t *pgTx) UpsertPayment(ctx context.Context, p *orders.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments(id, transaction_id, amount, method, paid_at, proof_ref, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (transaction_id) DO UPDATE SET
			amount=EXCLUDED.amount, method=EXCLUDED.method, paid_at=EXCLUDED.paid_at,
			proof_ref=EXCLUDED.proof_ref, status=EXCLUDED.status
		RETURNING id`,
		p.ID, p.TransactionID, p.Amount, p.Method, p.PaidAt, p.ProofRef, string(p.Status),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}
