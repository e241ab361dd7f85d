package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE", "PG_MAX_CONNS", "REQUEST_TIMEOUT", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.HTTPAddr != ":8081" || cfg.Store != "postgres" || cfg.PGMaxConns != 8 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.RequestTimeout)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "kafka:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("PG_MAX_CONNS", "20")
	t.Setenv("REQUEST_TIMEOUT", "750ms")
	t.Setenv("PROJECTOR_WORKERS", "nope")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.PGMaxConns != 20 {
		t.Errorf("expected 20, got %d", cfg.PGMaxConns)
	}
	if cfg.RequestTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", cfg.RequestTimeout)
	}
	if cfg.ProjectorWorkers != 4 {
		t.Errorf("expected default workers on bad input, got %d", cfg.ProjectorWorkers)
	}
}
