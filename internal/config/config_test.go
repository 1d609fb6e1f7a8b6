package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
		if cfg.HTTP.Addr != ":8080" {
			t.Errorf("addr = %q, want :8080", cfg.HTTP.Addr)
		}
		if cfg.Market.AuctionSeconds != 60 {
			t.Errorf("auction seconds = %d, want 60", cfg.Market.AuctionSeconds)
		}
		if cfg.NATS.StreamName != "MARKET_EVENTS" {
			t.Errorf("stream name = %q, want MARKET_EVENTS", cfg.NATS.StreamName)
		}
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http:
  addr: ":9090"
market:
  auction_seconds: 30
  sweep_interval: 2s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("addr = %q, want :9090", cfg.HTTP.Addr)
	}
	if cfg.Market.AuctionSeconds != 30 {
		t.Errorf("auction seconds = %d, want 30", cfg.Market.AuctionSeconds)
	}
	if cfg.Market.SweepInterval != 2*time.Second {
		t.Errorf("sweep interval = %v, want 2s", cfg.Market.SweepInterval)
	}
	// Untouched sections keep their defaults.
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("nats url = %q, want default", cfg.NATS.URL)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http: [not a mapping"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty http addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"empty stream name", func(c *Config) { c.NATS.StreamName = "" }},
		{"empty subject prefix", func(c *Config) { c.NATS.SubjectPrefix = "" }},
		{"zero auction seconds", func(c *Config) { c.Market.AuctionSeconds = 0 }},
		{"negative sweep interval", func(c *Config) { c.Market.SweepInterval = -time.Second }},
		{"zero heartbeat ttl", func(c *Config) { c.Market.HeartbeatTTL = 0 }},
		{"zero outbox poll interval", func(c *Config) { c.Market.OutboxPollInterval = 0 }},
		{"zero outbox batch size", func(c *Config) { c.Market.OutboxBatchSize = 0 }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted a broken config")
			}
		})
	}
}
