package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: replica-1
market:
  symbol: btcusdt
  snapshot_limit: 500
api:
  rest_url: https://testnet.binance.vision
  ws_url: wss://testnet.binance.vision/ws
sync:
  retry_backoff: 100ms
  snapshot_attempts: 7
kafka:
  enabled: true
  brokers:
    - kafka-1:9092
    - kafka-2:9092
database:
  enabled: true
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "replica-1" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "replica-1")
	}
	if cfg.Market.Symbol != "btcusdt" {
		t.Errorf("Market.Symbol = %q, want %q (Load does not normalize)", cfg.Market.Symbol, "btcusdt")
	}
	if cfg.Market.SnapshotLimit != 500 {
		t.Errorf("Market.SnapshotLimit = %d, want 500", cfg.Market.SnapshotLimit)
	}
	if cfg.API.RestURL != "https://testnet.binance.vision" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://testnet.binance.vision")
	}
	if cfg.Sync.RetryBackoff != 100*time.Millisecond {
		t.Errorf("Sync.RetryBackoff = %v, want 100ms", cfg.Sync.RetryBackoff)
	}
	if cfg.Sync.SnapshotAttempts != 7 {
		t.Errorf("Sync.SnapshotAttempts = %d, want 7", cfg.Sync.SnapshotAttempts)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Database.Enabled || cfg.Database.Timescale.Host != "localhost" {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_SYMBOL", "ETHUSDT")

	yaml := `
instance:
  id: replica-1
market:
  symbol: ${TEST_SYMBOL}
database:
  enabled: true
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Timescale.Password != "secret123" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "secret123")
	}
	if cfg.Market.Symbol != "ETHUSDT" {
		t.Errorf("Market.Symbol = %q, want %q", cfg.Market.Symbol, "ETHUSDT")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("Load(missing) error = %v, want read config file error", err)
	}

	path := writeTempFile(t, "market: [not, a, map\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load(bad yaml) error = %v, want parse config yaml error", err)
	}

	path = writeTempFile(t, "market:\n  symbl: BTCUSDT\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "symbl") {
		t.Errorf("Load(unknown key) error = %v, want it to name the key", err)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, doc := range []string{"", "\n", "# comment only\n"} {
		cfg, err := Parse([]byte(doc))
		if err != nil {
			t.Errorf("Parse(%q) error = %v", doc, err)
			continue
		}
		if cfg.Instance.ID != "" || cfg.Market.Symbol != "" {
			t.Errorf("Parse(%q) = %+v, want zero config", doc, cfg)
		}
	}
}

func TestSampleConfig(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", "replica.yaml"))
	if err != nil {
		t.Fatalf("LoadAndValidate(sample) failed: %v", err)
	}
	if cfg.Market.Symbol != "BTCUSDT" {
		t.Errorf("Market.Symbol = %q, want BTCUSDT", cfg.Market.Symbol)
	}
	if cfg.Database.Timescale.Password != "secret" {
		t.Errorf("Database.Timescale.Password = %q, want secret", cfg.Database.Timescale.Password)
	}
	if cfg.Buffer.Capacity != 1024 {
		t.Errorf("Buffer.Capacity = %d, want 1024", cfg.Buffer.Capacity)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: replica-1
market:
  symbol: " btcusdt "
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Market.Symbol != "BTCUSDT" {
		t.Errorf("Market.Symbol = %q, want normalized %q", cfg.Market.Symbol, "BTCUSDT")
	}
	if cfg.Market.SnapshotLimit != DefaultSnapshotLimit {
		t.Errorf("Market.SnapshotLimit = %d, want default %d", cfg.Market.SnapshotLimit, DefaultSnapshotLimit)
	}
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Buffer.Capacity != DefaultBufferCapacity {
		t.Errorf("Buffer.Capacity = %d, want default %d", cfg.Buffer.Capacity, DefaultBufferCapacity)
	}
	if cfg.Sync.ReadyAttempts != DefaultReadyAttempts {
		t.Errorf("Sync.ReadyAttempts = %d, want default %d", cfg.Sync.ReadyAttempts, DefaultReadyAttempts)
	}
	if cfg.Sync.IdleBackoff != DefaultIdleBackoff {
		t.Errorf("Sync.IdleBackoff = %v, want default %v", cfg.Sync.IdleBackoff, DefaultIdleBackoff)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Database.Timescale.MaxConns != DefaultMaxConns {
		t.Errorf("Database.Timescale.MaxConns = %d, want default %d", cfg.Database.Timescale.MaxConns, DefaultMaxConns)
	}
	if cfg.Kafka.Topic != DefaultKafkaTopic {
		t.Errorf("Kafka.Topic = %q, want default %q", cfg.Kafka.Topic, DefaultKafkaTopic)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, DefaultLogFormat)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "market:\n  symbol: BTCUSDT\n")

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validate config: instance.id is required") {
		t.Errorf("error = %v, want wrapped instance.id error", err)
	}
}

// validConfig returns a config that passes Validate.
func validConfig() ReplicaConfig {
	cfg := ReplicaConfig{
		Instance: InstanceConfig{ID: "test"},
		Market:   MarketConfig{Symbol: "BTCUSDT"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ReplicaConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *ReplicaConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing symbol",
			mutate:  func(c *ReplicaConfig) { c.Market.Symbol = "" },
			wantErr: "market.symbol is required",
		},
		{
			name:    "bad snapshot limit",
			mutate:  func(c *ReplicaConfig) { c.Market.SnapshotLimit = 999 },
			wantErr: "market.snapshot_limit must be one of 5, 10, 20, 50, 100, 500, 1000, 5000, got 999",
		},
		{
			name:    "reconnect delays inverted",
			mutate:  func(c *ReplicaConfig) { c.Connection.ReconnectMaxDelay = 500 * time.Millisecond },
			wantErr: "connection.reconnect_max_delay (500ms) cannot be less than reconnect_base_delay (1s)",
		},
		{
			name:    "capacity not power of two",
			mutate:  func(c *ReplicaConfig) { c.Buffer.Capacity = 1000 },
			wantErr: "buffer.capacity must be a power of two >= 2, got 1000",
		},
		{
			name:    "capacity too small",
			mutate:  func(c *ReplicaConfig) { c.Buffer.Capacity = 1 },
			wantErr: "buffer.capacity must be a power of two >= 2, got 1",
		},
		{
			name:    "negative snapshot attempts",
			mutate:  func(c *ReplicaConfig) { c.Sync.SnapshotAttempts = -1 },
			wantErr: "sync.snapshot_attempts must be >= 1",
		},
		{
			name:    "database enabled without host",
			mutate:  func(c *ReplicaConfig) { c.Database.Enabled = true },
			wantErr: "database.timescale.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *ReplicaConfig) {
				c.Database.Enabled = true
				c.Database.Timescale = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.timescale.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "database disabled skips db validation",
			mutate:  func(c *ReplicaConfig) { c.Database.Timescale = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "kafka enabled without brokers",
			mutate:  func(c *ReplicaConfig) { c.Kafka.Enabled = true },
			wantErr: "kafka.brokers is required when kafka is enabled",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *ReplicaConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *ReplicaConfig) { c.Log.Level = "verbose" },
			wantErr: `log.level must be debug, info, warn or error, got "verbose"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *ReplicaConfig) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
		{
			name: "valid config",
			mutate: func(c *ReplicaConfig) {
				c.Database.Enabled = true
				c.Database.Timescale = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2}
				c.Kafka.Enabled = true
				c.Kafka.Brokers = []string{"localhost:9092"}
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		wsURL string
		want  string
	}{
		{"wss://stream.binance.com:9443/ws", "wss://stream.binance.com:9443/ws/btcusdt@depth@100ms"},
		{"wss://stream.binance.com:9443/ws/", "wss://stream.binance.com:9443/ws/btcusdt@depth@100ms"},
		{"wss://stream.binance.com:9443/stream?streams=btcusdt@depth", "wss://stream.binance.com:9443/stream?streams=btcusdt@depth"},
	}

	for _, tt := range tests {
		got := APIConfig{WSURL: tt.wsURL}.StreamURL("BTCUSDT")
		if got != tt.want {
			t.Errorf("StreamURL(%q) = %q, want %q", tt.wsURL, got, tt.want)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
