package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `environment: test

server:
  port: 9090
  read_timeout: 5s
  write_timeout: 5s
  shutdown_timeout: 5s

log:
  level: debug
  format: console
  output: stdout

engine:
  instruments: [BTC, ETH, SOL]
  window_capacity: 500
  spread_window: 30
  correlation_window: 60
  min_samples: 25
  z_threshold: 2.5
  correlation_threshold: 0.8
  min_confidence: 0.7
  signal_ttl: 12h
  stale_gap: 5m
  tick_tolerance: 2s

feed:
  websocket_url: wss://example.com/ws
  info_url: https://example.com/info
  reconnect_delay: 3s
  ping_interval: 15s

pipeline:
  queue_size: 500
  max_per_second: 10

kafka:
  enabled: false

clickhouse:
  enabled: false

redis:
  enabled: false

api:
  cache_ttl: 3s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "test" {
		t.Fatalf("environment = %q", c.Environment)
	}
	if c.Server.Port != 9090 {
		t.Fatalf("port = %d", c.Server.Port)
	}
	if len(c.Engine.Instruments) != 3 || c.Engine.Instruments[0] != "BTC" {
		t.Fatalf("instruments = %v", c.Engine.Instruments)
	}
	if c.Engine.SignalTTL != 12*time.Hour {
		t.Fatalf("signal ttl = %v", c.Engine.SignalTTL)
	}
	if c.Engine.ZThreshold != 2.5 {
		t.Fatalf("z threshold = %v", c.Engine.ZThreshold)
	}
	if c.Feed.WebSocketURL != "wss://example.com/ws" {
		t.Fatalf("ws url = %q", c.Feed.WebSocketURL)
	}
	if c.Pipeline.QueueSize != 500 || c.Pipeline.MaxPerSecond != 10 {
		t.Fatalf("pipeline = %+v", c.Pipeline)
	}
	if c.API.CacheTTL != 3*time.Second {
		t.Fatalf("cache ttl = %v", c.API.CacheTTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "environment: [unclosed")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := Load(writeConfig(t, sampleYAML))
		if err != nil {
			t.Fatalf("load base: %v", err)
		}
		return c
	}

	c := base()
	c.Environment = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("empty environment must fail")
	}

	c = base()
	c.Engine.Instruments = []string{"BTC"}
	if err := c.Validate(); err == nil {
		t.Fatalf("single instrument must fail")
	}

	c = base()
	c.Engine.CorrThreshold = 1.5
	if err := c.Validate(); err == nil {
		t.Fatalf("correlation threshold above 1 must fail")
	}

	c = base()
	c.Engine.MinConfidence = -0.1
	if err := c.Validate(); err == nil {
		t.Fatalf("negative min confidence must fail")
	}

	c = base()
	c.Feed.WebSocketURL = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("missing feed url must fail")
	}

	c = base()
	c.Kafka.Enabled = true
	if err := c.Validate(); err == nil {
		t.Fatalf("kafka enabled without brokers must fail")
	}

	c = base()
	c.Redis.Enabled = true
	if err := c.Validate(); err == nil {
		t.Fatalf("redis enabled without host must fail")
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("INSTRUMENTS", "AVAX,MATIC")
	t.Setenv("FEED_WS_URL", "wss://override.example.com/ws")
	t.Setenv("REDIS_HOST", "redis.internal")

	c, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if len(c.Engine.Instruments) != 2 || c.Engine.Instruments[0] != "AVAX" {
		t.Fatalf("instruments override = %v", c.Engine.Instruments)
	}
	if c.Feed.WebSocketURL != "wss://override.example.com/ws" {
		t.Fatalf("ws override = %q", c.Feed.WebSocketURL)
	}
	if c.Redis.Host != "redis.internal" {
		t.Fatalf("redis host override = %q", c.Redis.Host)
	}
}
