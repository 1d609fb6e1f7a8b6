// Package config loads the marketd service configuration from a yaml file,
// applies defaults, and validates it. Database credentials come from the
// environment instead (see dbconfig).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	NATS   NATSConfig   `yaml:"nats"`
	Market MarketConfig `yaml:"market"`
}

// HTTPConfig configures the command/state/websocket server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// NATSConfig configures the JetStream push channel.
type NATSConfig struct {
	URL           string `yaml:"url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	ConsumerName  string `yaml:"consumer_name"`
}

// MarketConfig holds the auction timing knobs. SweepInterval is the
// reconciliation cadence for lazily expiring auctions; it bounds how stale
// an idle session's expired auction can get, nothing more.
type MarketConfig struct {
	AuctionSeconds     int           `yaml:"auction_seconds"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	HeartbeatTTL       time.Duration `yaml:"heartbeat_ttl"`
	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int32         `yaml:"outbox_batch_size"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			StreamName:    "MARKET_EVENTS",
			SubjectPrefix: "market.events",
			ConsumerName:  "market-gateway",
		},
		Market: MarketConfig{
			AuctionSeconds:     60,
			SweepInterval:      5 * time.Second,
			HeartbeatTTL:       30 * time.Second,
			OutboxPollInterval: time.Second,
			OutboxBatchSize:    100,
		},
	}
}

// Load reads the yaml file at path on top of the defaults. A missing path is
// not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.NATS.StreamName == "" || c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats stream_name and subject_prefix are required")
	}
	if c.Market.AuctionSeconds <= 0 {
		return fmt.Errorf("market.auction_seconds must be greater than 0")
	}
	if c.Market.SweepInterval <= 0 {
		return fmt.Errorf("market.sweep_interval must be greater than 0")
	}
	if c.Market.HeartbeatTTL <= 0 {
		return fmt.Errorf("market.heartbeat_ttl must be greater than 0")
	}
	if c.Market.OutboxPollInterval <= 0 {
		return fmt.Errorf("market.outbox_poll_interval must be greater than 0")
	}
	if c.Market.OutboxBatchSize <= 0 {
		return fmt.Errorf("market.outbox_batch_size must be greater than 0")
	}
	return nil
}
