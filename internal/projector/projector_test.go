package projector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/kantin-orders/internal/kafka"
	"github.com/ariefcatur/kantin-orders/internal/orders"
	"github.com/ariefcatur/kantin-orders/internal/redisx"
)

type fakeCache struct {
	mu        sync.Mutex
	processed map[string]bool
	statuses  map[string]redisx.StatusEntry
	setErr    error
	sets      int
}

func newFakeCache() *fakeCache {
	return &fakeCache{processed: map[string]bool{}, statuses: map[string]redisx.StatusEntry{}}
}

func (c *fakeCache) MarkProcessed(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processed[id] {
		return false, nil
	}
	c.processed[id] = true
	return true, nil
}

func (c *fakeCache) Unmark(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.processed, id)
	return nil
}

// SetStatus mirrors redisx.SetStatus: older entries never replace newer ones.
func (c *fakeCache) SetStatus(_ context.Context, id string, e redisx.StatusEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	if cur, ok := c.statuses[id]; ok && cur.UpdatedAt.After(e.UpdatedAt) {
		return nil
	}
	c.statuses[id] = e
	return nil
}

func message(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	b, err := kafkax.Encode(eventType, "test", "txn-1", payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return kafkago.Message{Topic: "t", Key: []byte("txn-1"), Value: b}
}

var t0 = time.Date(2025, 7, 23, 9, 0, 0, 0, time.UTC)

func TestHandle_ProjectsCreatedThenChanged(t *testing.T) {
	cache := newFakeCache()
	p := New(cache, nil)
	ctx := context.Background()

	created := message(t, orders.EventTransactionCreated, orders.TransactionCreatedPayload{
		TransactionID: "txn-1", CustomerID: "budi", MerchantID: "warung", Status: orders.StatusPending, CreatedAt: t0,
	})
	changed := message(t, orders.EventTransactionStatusChanged, orders.TransactionStatusChangedPayload{
		TransactionID: "txn-1", CustomerID: "budi", MerchantID: "warung", From: orders.StatusPending, To: orders.StatusPaid, ChangedAt: t0.Add(time.Minute),
	})

	for _, m := range []kafkago.Message{created, changed} {
		if err := p.Handle(ctx, m); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	got := cache.statuses["txn-1"]
	if got.Status != string(orders.StatusPaid) || got.CustomerID != "budi" || got.MerchantID != "warung" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestHandle_OutOfOrderKeepsNewest(t *testing.T) {
	cache := newFakeCache()
	p := New(cache, nil)
	ctx := context.Background()

	_ = p.Handle(ctx, message(t, orders.EventTransactionStatusChanged, orders.TransactionStatusChangedPayload{
		TransactionID: "txn-1", From: orders.StatusPaid, To: orders.StatusConfirmed, ChangedAt: t0.Add(2 * time.Minute),
	}))
	_ = p.Handle(ctx, message(t, orders.EventTransactionCreated, orders.TransactionCreatedPayload{
		TransactionID: "txn-1", Status: orders.StatusPending, CreatedAt: t0,
	}))
	if got := cache.statuses["txn-1"].Status; got != string(orders.StatusConfirmed) {
		t.Errorf("expected confirmed to survive a late created event, got %s", got)
	}
}

func TestHandle_DuplicateEventProjectedOnce(t *testing.T) {
	cache := newFakeCache()
	p := New(cache, nil)
	m := message(t, orders.EventTransactionCreated, orders.TransactionCreatedPayload{TransactionID: "txn-1", Status: orders.StatusPending})

	for i := 0; i < 3; i++ {
		if err := p.Handle(context.Background(), m); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if cache.sets != 1 {
		t.Errorf("expected one projection, got %d", cache.sets)
	}
}

func TestHandle_FailureUnmarksForRetry(t *testing.T) {
	cache := newFakeCache()
	cache.setErr = errors.New("redis down")
	p := New(cache, nil)
	m := message(t, orders.EventTransactionCreated, orders.TransactionCreatedPayload{TransactionID: "txn-1", Status: orders.StatusPending})

	if err := p.Handle(context.Background(), m); err == nil {
		t.Fatal("expected the cache error")
	}
	cache.setErr = nil
	if err := p.Handle(context.Background(), m); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if cache.statuses["txn-1"].Status != string(orders.StatusPending) {
		t.Error("expected the retried event to be projected")
	}
}

func TestHandle_SkipsForeignAndBroken(t *testing.T) {
	cache := newFakeCache()
	p := New(cache, nil)
	ctx := context.Background()

	if err := p.Handle(ctx, kafkago.Message{Value: []byte("not json")}); err != nil {
		t.Errorf("undecodable message should be skipped, got %v", err)
	}
	if err := p.Handle(ctx, message(t, orders.EventPaymentRecorded, orders.PaymentRecordedPayload{TransactionID: "txn-1"})); err != nil {
		t.Errorf("foreign event should be ignored, got %v", err)
	}
	if len(cache.processed) != 0 || len(cache.statuses) != 0 {
		t.Errorf("nothing should be recorded, got %v %v", cache.processed, cache.statuses)
	}
}
