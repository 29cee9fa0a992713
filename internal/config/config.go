package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tailscale/hujson"
)

type Config struct {
	Bridge BridgeConfig `json:"bridge"`
	Policy PolicyConfig `json:"policy"`
	Ledger LedgerConfig `json:"ledger"`
	Log    LogConfig    `json:"log"`
}

type BridgeConfig struct {
	URL              string `json:"url" env:"AIEDA_BRIDGE_URL"`
	Token            string `json:"token" env:"AIEDA_TOKEN"`
	ReconnectDelayMS int    `json:"reconnect_delay_ms" env:"AIEDA_RECONNECT_DELAY_MS"`
	PingIntervalMS   int    `json:"ping_interval_ms" env:"AIEDA_PING_INTERVAL_MS"`
	WriteTimeoutMS   int    `json:"write_timeout_ms" env:"AIEDA_WRITE_TIMEOUT_MS"`
}

type PolicyConfig struct {
	AllowWriteActions        bool `json:"allow_write_actions" env:"AIEDA_ALLOW_WRITE_ACTIONS"`
	RequireWriteConfirmation bool `json:"require_write_confirmation" env:"AIEDA_REQUIRE_WRITE_CONFIRMATION"`
}

type LedgerConfig struct {
	RedisAddr  string `json:"redis_addr" env:"AIEDA_REDIS_ADDR"`
	TTLSeconds int    `json:"ttl_seconds" env:"AIEDA_LEDGER_TTL_SECONDS"`
}

type LogConfig struct {
	Level string `json:"level" env:"AIEDA_LOG_LEVEL"`
}

const (
	defaultURL              = "ws://127.0.0.1:8787/ws"
	defaultReconnectDelayMS = 3000
	defaultPingIntervalMS   = 15000
	defaultWriteTimeoutMS   = 10000
	defaultLedgerTTLSeconds = 24 * 60 * 60
)

func Default() Config {
	return Config{
		Bridge: BridgeConfig{
			URL:              defaultURL,
			ReconnectDelayMS: defaultReconnectDelayMS,
			PingIntervalMS:   defaultPingIntervalMS,
			WriteTimeoutMS:   defaultWriteTimeoutMS,
		},
		Policy: PolicyConfig{
			AllowWriteActions:        true,
			RequireWriteConfirmation: true,
		},
		Ledger: LedgerConfig{
			TTLSeconds: defaultLedgerTTLSeconds,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load layers defaults, the optional HuJSON file at path and AIEDA_*
// environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config failed: %w", err)
		}
		if err := Parse(content, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env failed: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// Parse decodes a HuJSON document (JSON with comments and trailing commas)
// over cfg.
func Parse(content []byte, cfg *Config) error {
	std, err := hujson.Standardize(content)
	if err != nil {
		return fmt.Errorf("parse config failed: %w", err)
	}
	if err := json.Unmarshal(std, cfg); err != nil {
		return fmt.Errorf("parse config failed: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Bridge.URL) == "" {
		c.Bridge.URL = defaultURL
	}
	c.Bridge.Token = strings.TrimSpace(c.Bridge.Token)
	if c.Bridge.ReconnectDelayMS <= 0 {
		c.Bridge.ReconnectDelayMS = defaultReconnectDelayMS
	}
	if c.Bridge.PingIntervalMS < 0 {
		c.Bridge.PingIntervalMS = defaultPingIntervalMS
	}
	if c.Bridge.WriteTimeoutMS <= 0 {
		c.Bridge.WriteTimeoutMS = defaultWriteTimeoutMS
	}
	if c.Ledger.TTLSeconds <= 0 {
		c.Ledger.TTLSeconds = defaultLedgerTTLSeconds
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		c.Log.Level = "info"
	}
}

func (b BridgeConfig) ReconnectDelay() time.Duration {
	return time.Duration(b.ReconnectDelayMS) * time.Millisecond
}

func (b BridgeConfig) PingInterval() time.Duration {
	return time.Duration(b.PingIntervalMS) * time.Millisecond
}

func (b BridgeConfig) WriteTimeout() time.Duration {
	return time.Duration(b.WriteTimeoutMS) * time.Millisecond
}

func (l LedgerConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (l LogConfig) SlogLevel() slog.Level {
	if lvl, ok := levels[strings.ToLower(l.Level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}
