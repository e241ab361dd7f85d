package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func TestHandleWithRetry_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis down")
		}
		return nil
	}
	err := handleWithRetry(context.Background(), h, kafka.Message{Offset: 7}, backoff{base: time.Millisecond, max: 2 * time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts on the same message, got %d", calls)
	}
}

func TestHandleWithRetry_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("still failing")
	}
	err := handleWithRetry(ctx, h, kafka.Message{}, backoff{base: time.Millisecond, max: time.Millisecond}, zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected no attempts after cancel, got %d", calls)
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := backoff{base: 200 * time.Millisecond, max: time.Second}
	cases := map[int]time.Duration{
		1:  200 * time.Millisecond,
		2:  400 * time.Millisecond,
		3:  800 * time.Millisecond,
		4:  time.Second,
		50: time.Second,
	}
	for attempt, want := range cases {
		if got := b.delay(attempt); got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}
}
