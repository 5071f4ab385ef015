package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Strategy: StrategyConfig{CycleQty: 0.01}}
	applyDefaults(cfg)
	if cfg.Log.Level != "info" {
		t.Fatalf("expected info level, got %q", cfg.Log.Level)
	}
	if cfg.Strategy.OrderTimeout != 5*time.Second {
		t.Fatalf("expected 5s order timeout, got %v", cfg.Strategy.OrderTimeout)
	}
	if cfg.Strategy.CancelTimeout != 5*time.Second {
		t.Fatalf("expected 5s cancel timeout, got %v", cfg.Strategy.CancelTimeout)
	}
	if cfg.Strategy.ChaseLimitAttempts != 3 {
		t.Fatalf("expected 3 chase attempts, got %d", cfg.Strategy.ChaseLimitAttempts)
	}
	if cfg.Strategy.CancelRetries != 3 {
		t.Fatalf("expected 3 cancel retries, got %d", cfg.Strategy.CancelRetries)
	}
	if cfg.Strategy.BookDepth != 10 {
		t.Fatalf("expected depth 10, got %d", cfg.Strategy.BookDepth)
	}
	if cfg.CEX.Symbol != "BTCUSDT" || cfg.DEX.Symbol != "BTC" {
		t.Fatalf("unexpected symbol defaults: %q / %q", cfg.CEX.Symbol, cfg.DEX.Symbol)
	}
	if cfg.DEX.WSURL != mainnetDEXWSURL {
		t.Fatalf("expected mainnet ws url, got %q", cfg.DEX.WSURL)
	}
}

func TestTestnetSelectsTestnetURLs(t *testing.T) {
	cfg := &Config{Strategy: StrategyConfig{CycleQty: 0.01}, DEX: DEXConfig{Testnet: true}}
	applyDefaults(cfg)
	if cfg.DEX.WSURL != testnetDEXWSURL {
		t.Fatalf("expected testnet ws url, got %q", cfg.DEX.WSURL)
	}
	if cfg.DEX.RESTURL != testnetDEXRESTURL {
		t.Fatalf("expected testnet rest url, got %q", cfg.DEX.RESTURL)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero cycle qty", func(c *Config) { c.Strategy.CycleQty = 0 }},
		{"negative threshold", func(c *Config) { c.Strategy.MinSpreadThreshold = -1 }},
		{"shallow book", func(c *Config) { c.Strategy.BookDepth = 5 }},
		{"timescale without dsn", func(c *Config) { c.Timescale.Enabled = true; c.Timescale.DSN = "" }},
	}
	for _, tc := range cases {
		cfg := &Config{Strategy: StrategyConfig{CycleQty: 0.01}}
		applyDefaults(cfg)
		tc.mut(cfg)
		if err := validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
log:
  level: debug
cex:
  symbol: ETHUSDT
  maker_fee: 0.0001
dex:
  symbol: ETH
  testnet: true
strategy:
  cycle_qty: 0.05
  min_spread_threshold: 0.5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("level = %q", cfg.Log.Level)
	}
	if cfg.CEX.Symbol != "ETHUSDT" || cfg.DEX.Symbol != "ETH" {
		t.Fatalf("symbols = %q / %q", cfg.CEX.Symbol, cfg.DEX.Symbol)
	}
	if cfg.Strategy.OrderTimeout != 5*time.Second {
		t.Fatalf("t_order default = %v", cfg.Strategy.OrderTimeout)
	}
	if cfg.Strategy.MinSpreadThreshold != 0.5 {
		t.Fatalf("threshold = %v", cfg.Strategy.MinSpreadThreshold)
	}
	if cfg.DEX.RESTURL != testnetDEXRESTURL {
		t.Fatalf("rest url = %q", cfg.DEX.RESTURL)
	}
}

func TestLoadMissingPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
