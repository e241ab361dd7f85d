package httpx

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/kantin-orders/internal/cart"
	"github.com/ariefcatur/kantin-orders/internal/checkout"
	kafkax "github.com/ariefcatur/kantin-orders/internal/kafka"
	"github.com/ariefcatur/kantin-orders/internal/lifecycle"
	"github.com/ariefcatur/kantin-orders/internal/logging"
	"github.com/ariefcatur/kantin-orders/internal/orders"
	"github.com/ariefcatur/kantin-orders/internal/payment"
	"github.com/ariefcatur/kantin-orders/internal/redisx"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafkago.Header) error
}

// Handler exposes the order services over HTTP. Redis and Events are
// optional; without them idempotency keys and the status cache are skipped
// and no events are emitted.
type Handler struct {
	Carts     *cart.Service
	Checkout  *checkout.Service
	Lifecycle *lifecycle.Service
	Payments  *payment.Service

	Redis   redis.Cmdable
	Events  Publisher
	Metrics *Metrics
	Service string
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireActor)
		r.Route("/carts", func(r chi.Router) {
			r.Get("/", h.listCarts)
			r.Delete("/", h.clearCarts)
			r.Post("/lines", h.addLine)
			r.Patch("/lines/{lineID}", h.updateLine)
			r.Delete("/lines/{lineID}", h.removeLine)
			r.Get("/{merchantID}", h.getCart)
			r.Delete("/{merchantID}", h.clearCarts)
			r.Post("/{merchantID}/checkout", h.checkout)
		})
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.createTransaction)
			r.Get("/", h.listTransactions)
			r.Get("/{id}", h.getTransaction)
			r.Get("/{id}/status", h.getStatus)
			r.Patch("/{id}/status", h.updateStatus)
			r.Get("/{id}/payment", h.getPayment)
		})
		r.Post("/payments", h.recordPayment)
		r.Post("/payments/proof", h.submitProof)
	})
}

// publish emits one event after the unit of work has committed. Failures are
// logged; the request already succeeded.
func (h *Handler) publish(ctx context.Context, topic, eventType, transactionID string, payload any) {
	if h.Events == nil {
		return
	}
	log := logging.FromContext(ctx)
	b, err := kafkax.Encode(eventType, h.Service, transactionID, payload)
	if err != nil {
		log.Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := h.Events.Publish(ctx, topic, orders.PartitionKey(transactionID), b, kafkax.EventHeaders(eventType)...); err != nil {
		log.Warn("publish event",
			zap.String("event_type", eventType),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
	}
}

func (h *Handler) transactionCreated(ctx context.Context, t *orders.Transaction) {
	h.cacheStatus(ctx, t)
	h.publish(ctx, orders.TopicTransactionCreated, orders.EventTransactionCreated, t.ID,
		orders.NewTransactionCreatedPayload(t))
}

func (h *Handler) statusChanged(ctx context.Context, c *lifecycle.Change) {
	if c == nil || !c.Changed() {
		return
	}
	h.cacheStatus(ctx, c.Transaction)
	h.publish(ctx, orders.TopicTransactionStatusChanged, orders.EventTransactionStatusChanged, c.Transaction.ID,
		orders.NewTransactionStatusChangedPayload(c.Transaction, c.Previous))
}

func (h *Handler) paymentRecorded(ctx context.Context, p *orders.Payment) {
	h.publish(ctx, orders.TopicPaymentRecorded, orders.EventPaymentRecorded, p.TransactionID,
		orders.NewPaymentRecordedPayload(p))
}

func (h *Handler) cacheStatus(ctx context.Context, t *orders.Transaction) {
	if h.Redis == nil {
		return
	}
	err := redisx.SetStatus(ctx, h.Redis, t.ID, redisx.StatusEntry{
		Status:     string(t.Status),
		CustomerID: t.CustomerID,
		MerchantID: t.MerchantID,
		UpdatedAt:  t.UpdatedAt,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("cache status", zap.String("transaction_id", t.ID), zap.Error(err))
	}
}
