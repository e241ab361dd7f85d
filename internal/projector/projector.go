// Package projector keeps the Redis status cache in step with the
// transaction events published by the API.
package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/kantin-orders/internal/kafka"
	"github.com/ariefcatur/kantin-orders/internal/orders"
	"github.com/ariefcatur/kantin-orders/internal/redisx"
)

// Topics the projector subscribes to.
var Topics = []string{orders.TopicTransactionCreated, orders.TopicTransactionStatusChanged}

// Cache is where processed events and projected statuses are kept.
type Cache interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Unmark(ctx context.Context, eventID string) error
	SetStatus(ctx context.Context, transactionID string, e redisx.StatusEntry) error
}

type redisCache struct {
	rdb     redis.Cmdable
	service string
}

// NewRedisCache dedups under the given service name.
func NewRedisCache(rdb redis.Cmdable, service string) Cache {
	return &redisCache{rdb: rdb, service: service}
}

func (c *redisCache) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return redisx.MarkProcessed(ctx, c.rdb, c.service, eventID)
}

func (c *redisCache) Unmark(ctx context.Context, eventID string) error {
	return redisx.Unmark(ctx, c.rdb, c.service, eventID)
}

func (c *redisCache) SetStatus(ctx context.Context, transactionID string, e redisx.StatusEntry) error {
	return redisx.SetStatus(ctx, c.rdb, transactionID, e)
}

type Projector struct {
	Cache Cache
	Log   *zap.Logger
}

func New(cache Cache, log *zap.Logger) *Projector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Projector{Cache: cache, Log: log}
}

// Handle projects one message. Undecodable messages are logged and skipped so
// they cannot block the partition; cache failures are returned for retry.
func (p *Projector) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		p.Log.Warn("skip undecodable message", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	txnID, entry, err := project(env)
	if err != nil {
		p.Log.Warn("skip bad payload", zap.String("event_id", env.EventID), zap.String("event_type", env.EventType), zap.Error(err))
		return nil
	}
	if txnID == "" {
		return nil // not ours
	}

	fresh, err := p.Cache.MarkProcessed(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		p.Log.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}
	if err := p.Cache.SetStatus(ctx, txnID, entry); err != nil {
		if uerr := p.Cache.Unmark(ctx, env.EventID); uerr != nil {
			p.Log.Error("unmark after failed projection", zap.String("event_id", env.EventID), zap.Error(uerr))
		}
		return fmt.Errorf("project %s: %w", txnID, err)
	}
	p.Log.Info("status projected",
		zap.String("transaction_id", txnID),
		zap.String("status", entry.Status),
		zap.String("event_type", env.EventType))
	return nil
}

func project(env orders.Envelope) (string, redisx.StatusEntry, error) {
	switch env.EventType {
	case orders.EventTransactionCreated:
		pl, err := kafkax.UnwrapPayload[orders.TransactionCreatedPayload](env.Payload)
		if err != nil {
			return "", redisx.StatusEntry{}, err
		}
		at := pl.CreatedAt
		if at.IsZero() {
			at = env.OccurredAt
		}
		return pl.TransactionID, redisx.StatusEntry{
			Status:     string(pl.Status),
			CustomerID: pl.CustomerID,
			MerchantID: pl.MerchantID,
			UpdatedAt:  at,
		}, nil
	case orders.EventTransactionStatusChanged:
		pl, err := kafkax.UnwrapPayload[orders.TransactionStatusChangedPayload](env.Payload)
		if err != nil {
			return "", redisx.StatusEntry{}, err
		}
		at := pl.ChangedAt
		if at.IsZero() {
			at = env.OccurredAt
		}
		return pl.TransactionID, redisx.StatusEntry{
			Status:     string(pl.To),
			CustomerID: pl.CustomerID,
			MerchantID: pl.MerchantID,
			UpdatedAt:  at,
		}, nil
	}
	return "", redisx.StatusEntry{}, nil
}
