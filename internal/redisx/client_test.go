package redisx

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := New(addr)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClaim_FirstWriterWins(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyIdemCheckout, "budi", uuid.NewString())
	defer rdb.Del(ctx, key)

	if _, ok, err := Claim(ctx, rdb, key); err != nil || !ok {
		t.Fatalf("expected first claim, got ok=%v err=%v", ok, err)
	}
	v, ok, err := Claim(ctx, rdb, key)
	if err != nil || ok || v != ClaimPending {
		t.Fatalf("expected pending for second claim, got %q ok=%v err=%v", v, ok, err)
	}
	if err := Complete(ctx, rdb, key, "txn-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	v, ok, err = Claim(ctx, rdb, key)
	if err != nil || ok || v != "txn-1" {
		t.Errorf("expected txn-1, got %q ok=%v err=%v", v, ok, err)
	}
	if err := Release(ctx, rdb, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if v, _ := rdb.Get(ctx, key).Result(); v != "txn-1" {
		t.Errorf("release must not drop a completed key, got %q", v)
	}
}

func TestClaim_ConcurrentRequestsSingleOwner(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyIdemCreate, "budi", uuid.NewString())
	defer rdb.Del(ctx, key)

	var (
		wg     sync.WaitGroup
		owners atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := Claim(ctx, rdb, key); err == nil && ok {
				owners.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := owners.Load(); n != 1 {
		t.Errorf("expected exactly one owner, got %d", n)
	}

	if err := Release(ctx, rdb, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, err := Claim(ctx, rdb, key); err != nil || !ok {
		t.Errorf("expected the key to be claimable after release, got ok=%v err=%v", ok, err)
	}
}

func TestSetStatus_IgnoresOlderEntry(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	id := uuid.NewString()
	defer rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, id))

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := SetStatus(ctx, rdb, id, StatusEntry{Status: "paid", UpdatedAt: now}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetStatus(ctx, rdb, id, StatusEntry{Status: "pending", UpdatedAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("set older: %v", err)
	}
	e, ok, err := GetStatus(ctx, rdb, id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if e.Status != "paid" {
		t.Errorf("expected paid, got %s", e.Status)
	}
}

func TestSetStatus_ConcurrentWritersNewestWins(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	id := uuid.NewString()
	defer rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, id))

	base := time.Now().UTC().Truncate(time.Millisecond)
	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := StatusEntry{Status: fmt.Sprintf("s%d", i), UpdatedAt: base.Add(time.Duration(i) * time.Millisecond)}
			if err := SetStatus(ctx, rdb, id, e); err != nil {
				t.Errorf("set %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	e, ok, err := GetStatus(ctx, rdb, id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	want := fmt.Sprintf("s%d", writers-1)
	if e.Status != want || !e.UpdatedAt.Equal(base.Add((writers-1)*time.Millisecond)) {
		t.Errorf("expected newest entry %s, got %s at %v", want, e.Status, e.UpdatedAt)
	}
}

func TestMarkProcessed(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	id := uuid.NewString()
	defer Unmark(ctx, rdb, "test", id)

	first, err := MarkProcessed(ctx, rdb, "test", id)
	if err != nil || !first {
		t.Fatalf("expected first mark, got %v %v", first, err)
	}
	again, err := MarkProcessed(ctx, rdb, "test", id)
	if err != nil || again {
		t.Errorf("expected duplicate, got %v %v", again, err)
	}
}
