package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// ClaimPending marks an idempotency key whose request is still running.
const ClaimPending = "pending"

// Claim reserves an idempotency key before the guarded work runs. When the
// key is already taken it returns the stored value: ClaimPending while the
// first request is in flight, its result once completed.
func Claim(ctx context.Context, rdb redis.Cmdable, key string) (string, bool, error) {
	ok, err := rdb.SetNX(ctx, key, ClaimPending, TTLIdempotency).Result()
	if err != nil || ok {
		return "", ok, err
	}
	v, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// released between the two calls; the caller may retry
		return ClaimPending, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, false, nil
}

// Complete stores the result of a claimed request.
func Complete(ctx context.Context, rdb redis.Cmdable, key, value string) error {
	return rdb.Set(ctx, key, value, TTLIdempotency).Err()
}

// releaseClaim drops the key only while it still holds the pending marker.
var releaseClaim = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Release gives up a claim so the request can be retried with the same key.
func Release(ctx context.Context, rdb redis.Cmdable, key string) error {
	return releaseClaim.Run(ctx, rdb, []string{key}, ClaimPending).Err()
}

// StatusEntry is the cached view of a transaction's status. The owners are
// kept so a reader can be authorized without touching the database.
type StatusEntry struct {
	Status     string    `json:"status"`
	CustomerID string    `json:"customer_id,omitempty"`
	MerchantID string    `json:"merchant_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type storedStatus struct {
	StatusEntry
	Stamp int64 `json:"ts"` // UpdatedAt in unix microseconds
}

// setIfNewer writes ARGV[1] unless the stored entry carries a later stamp.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, e = pcall(cjson.decode, cur)
	if ok and type(e) == 'table' and tonumber(e.ts) and tonumber(e.ts) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// SetStatus caches a transaction's status. The compare and the write run as
// one script, so an entry older than the cached one never replaces it.
func SetStatus(ctx context.Context, rdb redis.Cmdable, transactionID string, e StatusEntry) error {
	stamp := e.UpdatedAt.UnixMicro()
	b, err := json.Marshal(storedStatus{StatusEntry: e, Stamp: stamp})
	if err != nil {
		return err
	}
	key := fmt.Sprintf(KeyOrderStatus, transactionID)
	return setIfNewer.Run(ctx, rdb, []string{key}, b, stamp, TTLStatusCache.Milliseconds()).Err()
}

func GetStatus(ctx context.Context, rdb redis.Cmdable, transactionID string) (StatusEntry, bool, error) {
	var e StatusEntry
	b, err := rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, transactionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, false, fmt.Errorf("decode status entry: %w", err)
	}
	return e, true, nil
}

// MarkProcessed records that service handled id. It returns false when the
// id was already marked.
func MarkProcessed(ctx context.Context, rdb redis.Cmdable, service, id string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), 1, TTLDedup).Result()
}

// Unmark drops a dedup marker so a failed event can be retried.
func Unmark(ctx context.Context, rdb redis.Cmdable, service, id string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, id)).Err()
}
