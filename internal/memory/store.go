// Package memory is an orders.Store kept in process memory. A unit of work
// runs on a private copy of the state under a store-wide lock and replaces the
// state only when it succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/kantin-orders/internal/orders"
)

var errConflict = fmt.Errorf("memory: unique constraint violated")

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// PutMenuItem inserts or replaces a catalog entry.
func (s *Store) PutMenuItem(m orders.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	s.st.menus[m.ID] = m
}

func (s *Store) PutPaymentMethod(pm orders.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.methods[methodKey(pm.MerchantID, pm.ID)] = pm
}

// MenuItem returns the stored catalog entry.
func (s *Store) MenuItem(id string) (orders.MenuItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.menus[id]
	return m, ok
}

// Counts reports how many carts (any status), transactions and payments exist.
func (s *Store) Counts() (carts, transactions, payments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.carts), len(s.st.txns), len(s.st.payments)
}

type state struct {
	menus    map[string]orders.MenuItem
	methods  map[string]orders.PaymentMethod
	carts    map[string]*orders.Cart
	lineCart map[string]string
	txns     map[string]*orders.Transaction
	payments map[string]*orders.Payment
}

func newState() *state {
	return &state{
		menus:    make(map[string]orders.MenuItem),
		methods:  make(map[string]orders.PaymentMethod),
		carts:    make(map[string]*orders.Cart),
		lineCart: make(map[string]string),
		txns:     make(map[string]*orders.Transaction),
		payments: make(map[string]*orders.Payment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.menus {
		c.menus[k] = v
	}
	for k, v := range s.methods {
		c.methods[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = cloneCart(v)
	}
	for k, v := range s.lineCart {
		c.lineCart[k] = v
	}
	for k, v := range s.txns {
		c.txns[k] = cloneTransaction(v)
	}
	for k, v := range s.payments {
		c.payments[k] = clonePayment(v)
	}
	return c
}

func methodKey(merchantID, methodID string) string { return merchantID + "/" + methodID }

func cloneCart(c *orders.Cart) *orders.Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]orders.CartLine(nil), c.Lines...)
	return &clone
}

func cloneTransaction(t *orders.Transaction) *orders.Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Items = append([]orders.TransactionItem(nil), t.Items...)
	return &clone
}

func clonePayment(p *orders.Payment) *orders.Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PaidAt != nil {
		at := *p.PaidAt
		clone.PaidAt = &at
	}
	return &clone
}

type tx struct {
	st *state
}

func (t *tx) GetMenuItem(_ context.Context, id string) (orders.MenuItem, error) {
	m, ok := t.st.menus[id]
	if !ok {
		return orders.MenuItem{}, orders.NotFound("menu item", id)
	}
	return m, nil
}

func (t *tx) GetMenuItems(_ context.Context, ids []string) (map[string]orders.MenuItem, error) {
	out := make(map[string]orders.MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := t.st.menus[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (t *tx) GetPaymentMethod(_ context.Context, merchantID, methodID string) (orders.PaymentMethod, error) {
	pm, ok := t.st.methods[methodKey(merchantID, methodID)]
	if !ok {
		return orders.PaymentMethod{}, orders.NotFound("payment method", methodID)
	}
	return pm, nil
}

func (t *tx) DecrementStock(_ context.Context, itemID string, qty int) (bool, int, error) {
	m, ok := t.st.menus[itemID]
	if !ok {
		return false, 0, orders.NotFound("menu item", itemID)
	}
	if m.Stock < qty {
		return false, m.Stock, nil
	}
	m.Stock -= qty
	m.UpdatedAt = time.Now().UTC()
	t.st.menus[itemID] = m
	return true, m.Stock, nil
}

func (t *tx) IncrementStock(_ context.Context, itemID string, qty int) error {
	m, ok := t.st.menus[itemID]
	if !ok {
		return orders.NotFound("menu item", itemID)
	}
	m.Stock += qty
	m.UpdatedAt = time.Now().UTC()
	t.st.menus[itemID] = m
	return nil
}

func (t *tx) FindActiveCart(_ context.Context, customerID, merchantID string) (*orders.Cart, error) {
	for _, c := range t.st.carts {
		if c.CustomerID == customerID && c.MerchantID == merchantID && c.Status == orders.CartActive {
			return cloneCart(c), nil
		}
	}
	return nil, orders.NotFound("active cart for merchant", merchantID)
}

func (t *tx) EnsureActiveCart(ctx context.Context, customerID, merchantID string) (*orders.Cart, error) {
	if c, err := t.FindActiveCart(ctx, customerID, merchantID); err == nil {
		return c, nil
	}
	now := time.Now().UTC()
	c := &orders.Cart{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		MerchantID: merchantID,
		Status:     orders.CartActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.st.carts[c.ID] = cloneCart(c)
	return c, nil
}

func (t *tx) CartForLine(_ context.Context, lineID string) (*orders.Cart, error) {
	cartID, ok := t.st.lineCart[lineID]
	if !ok {
		return nil, orders.NotFound("cart line", lineID)
	}
	return cloneCart(t.st.carts[cartID]), nil
}

func (t *tx) ListActiveCarts(_ context.Context, customerID string) ([]orders.Cart, error) {
	var out []orders.Cart
	for _, c := range t.st.carts {
		if c.CustomerID == customerID && c.Status == orders.CartActive {
			out = append(out, *cloneCart(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *tx) InsertCartLine(_ context.Context, line *orders.CartLine) error {
	c, ok := t.st.carts[line.CartID]
	if !ok {
		return orders.NotFound("cart", line.CartID)
	}
	for _, l := range c.Lines {
		if l.MenuItemID == line.MenuItemID {
			return fmt.Errorf("insert cart line %s/%s: %w", line.CartID, line.MenuItemID, errConflict)
		}
	}
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	line.CreatedAt, line.UpdatedAt = now, now
	c.Lines = append(c.Lines, *line)
	t.st.lineCart[line.ID] = c.ID
	return nil
}

func (t *tx) UpdateCartLine(_ context.Context, line orders.CartLine) error {
	c, ok := t.st.carts[line.CartID]
	if !ok {
		return orders.NotFound("cart", line.CartID)
	}
	for i := range c.Lines {
		if c.Lines[i].ID == line.ID {
			line.UpdatedAt = time.Now().UTC()
			c.Lines[i] = line
			return nil
		}
	}
	return orders.NotFound("cart line", line.ID)
}

func (t *tx) DeleteCartLine(_ context.Context, lineID string) error {
	cartID, ok := t.st.lineCart[lineID]
	if !ok {
		return orders.NotFound("cart line", lineID)
	}
	c := t.st.carts[cartID]
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			break
		}
	}
	delete(t.st.lineCart, lineID)
	return nil
}

func (t *tx) UpdateCartTotal(_ context.Context, cart *orders.Cart) error {
	c, ok := t.st.carts[cart.ID]
	if !ok {
		return orders.NotFound("cart", cart.ID)
	}
	totals := make(map[string]orders.CartLine, len(cart.Lines))
	for _, l := range cart.Lines {
		totals[l.ID] = l
	}
	for i := range c.Lines {
		if l, ok := totals[c.Lines[i].ID]; ok {
			c.Lines[i].LineTotal = l.LineTotal
		}
	}
	c.TotalAmount = cart.TotalAmount
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *tx) SetCartStatus(_ context.Context, cartID string, status orders.CartStatus) error {
	c, ok := t.st.carts[cartID]
	if !ok {
		return orders.NotFound("cart", cartID)
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *tx) DeleteCart(_ context.Context, cartID string) error {
	c, ok := t.st.carts[cartID]
	if !ok {
		return orders.NotFound("cart", cartID)
	}
	for _, l := range c.Lines {
		delete(t.st.lineCart, l.ID)
	}
	delete(t.st.carts, cartID)
	return nil
}

func (t *tx) DeleteActiveCarts(ctx context.Context, customerID, merchantID string) (int, error) {
	var ids []string
	for id, c := range t.st.carts {
		if c.CustomerID != customerID || c.Status != orders.CartActive {
			continue
		}
		if merchantID != "" && c.MerchantID != merchantID {
			continue
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := t.DeleteCart(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (t *tx) InsertTransaction(_ context.Context, txn *orders.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if _, exists := t.st.txns[txn.ID]; exists {
		return fmt.Errorf("insert transaction %s: %w", txn.ID, errConflict)
	}
	now := time.Now().UTC()
	txn.CreatedAt, txn.UpdatedAt = now, now
	for i := range txn.Items {
		if txn.Items[i].ID == "" {
			txn.Items[i].ID = uuid.NewString()
		}
		txn.Items[i].TransactionID = txn.ID
	}
	t.st.txns[txn.ID] = cloneTransaction(txn)
	return nil
}

func (t *tx) GetTransaction(_ context.Context, id string) (*orders.Transaction, error) {
	txn, ok := t.st.txns[id]
	if !ok {
		return nil, orders.NotFound("transaction", id)
	}
	return cloneTransaction(txn), nil
}

func (t *tx) LockTransaction(ctx context.Context, id string) (*orders.Transaction, error) {
	return t.GetTransaction(ctx, id)
}

func (t *tx) ListTransactions(_ context.Context, f orders.TransactionFilter) ([]orders.Transaction, error) {
	var out []orders.Transaction
	for _, txn := range t.st.txns {
		if f.CustomerID != "" && txn.CustomerID != f.CustomerID {
			continue
		}
		if f.MerchantID != "" && txn.MerchantID != f.MerchantID {
			continue
		}
		if f.Status != "" && txn.Status != f.Status {
			continue
		}
		out = append(out, *cloneTransaction(txn))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (t *tx) UpdateTransactionStatus(_ context.Context, id string, status orders.Status, at time.Time) error {
	txn, ok := t.st.txns[id]
	if !ok {
		return orders.NotFound("transaction", id)
	}
	txn.Status = status
	txn.UpdatedAt = at
	return nil
}

func (t *tx) GetPayment(_ context.Context, transactionID string) (*orders.Payment, error) {
	p, ok := t.st.payments[transactionID]
	if !ok {
		return nil, orders.NotFound("payment for transaction", transactionID)
	}
	return clonePayment(p), nil
}

func (t *tx) UpsertPayment(_ context.Context, p *orders.Payment) error {
	if _, ok := t.st.txns[p.TransactionID]; !ok {
		return orders.NotFound("transaction", p.TransactionID)
	}
	if existing, ok := t.st.payments[p.TransactionID]; ok {
		p.ID = existing.ID
	} else if p.ID == "" {
		p.ID = uuid.NewString()
	}
	t.st.payments[p.TransactionID] = clonePayment(p)
	return nil
}
