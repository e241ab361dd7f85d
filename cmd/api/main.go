package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ariefcatur/kantin-orders/internal/cart"
	"github.com/ariefcatur/kantin-orders/internal/checkout"
	"github.com/ariefcatur/kantin-orders/internal/config"
	"github.com/ariefcatur/kantin-orders/internal/httpx"
	kafkax "github.com/ariefcatur/kantin-orders/internal/kafka"
	"github.com/ariefcatur/kantin-orders/internal/lifecycle"
	"github.com/ariefcatur/kantin-orders/internal/logging"
	"github.com/ariefcatur/kantin-orders/internal/memory"
	"github.com/ariefcatur/kantin-orders/internal/orders"
	"github.com/ariefcatur/kantin-orders/internal/payment"
	"github.com/ariefcatur/kantin-orders/internal/postgres"
	"github.com/ariefcatur/kantin-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store orders.Store
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store, data is lost on exit")
		store = memory.NewStore()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		store = postgres.NewStore(db)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one for every topic
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
	prod.Start(ctx)

	metrics := httpx.NewMetrics(prometheus.DefaultRegisterer)
	router := httpx.NewRouter(log, metrics, prometheus.DefaultGatherer, cfg.RequestTimeout)
	h := &httpx.Handler{
		Carts:     cart.NewService(store),
		Checkout:  checkout.NewService(store),
		Lifecycle: lifecycle.NewService(store),
		Payments:  payment.NewService(store),
		Redis:     rdb,
		Events:    prod,
		Metrics:   metrics,
		Service:   cfg.ServiceName,
	}
	h.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	prod.Close() // stop accepting, flush what is buffered
	prod.WaitClosed()
	cancel()
}
