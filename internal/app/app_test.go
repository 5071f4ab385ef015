package app

import (
	"testing"
	"time"

	"cex-dex-arb-bot/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		CEX: config.CEXConfig{Symbol: "BTCUSDT", MakerFee: 0.0002, TakerFee: 0.0004},
		DEX: config.DEXConfig{Symbol: "BTC", MakerFee: 0.0002, TakerFee: 0.0004},
		Strategy: config.StrategyConfig{
			CycleQty:           0.01,
			MinSpreadThreshold: 0.5,
			OrderTimeout:       5 * time.Second,
			CancelTimeout:      5 * time.Second,
			CancelRetries:      3,
			ChaseLimitAttempts: 3,
			MaxQuoteAge:        time.Second,
			BookDepth:          10,
		},
	}
}

func TestFeesFromConfig(t *testing.T) {
	fees := feesFromConfig(baseConfig())
	if fees.CEXMaker != 0.0002 || fees.CEXTaker != 0.0004 {
		t.Fatalf("cex fees = %+v", fees)
	}
	if fees.DEXMaker != 0.0002 || fees.DEXTaker != 0.0004 {
		t.Fatalf("dex fees = %+v", fees)
	}
}

func TestStrategyConfigFromConfig(t *testing.T) {
	sc := strategyConfigFromConfig(baseConfig())
	if sc.CEXSymbol != "BTCUSDT" || sc.DEXSymbol != "BTC" {
		t.Fatalf("symbols = %q/%q", sc.CEXSymbol, sc.DEXSymbol)
	}
	if sc.MinSpreadThreshold != 0.5 || sc.CycleQty != 0.01 {
		t.Fatalf("cfg = %+v", sc)
	}
	if sc.OrderTimeout != 5*time.Second || sc.ChaseLimitAttempts != 3 {
		t.Fatalf("cfg = %+v", sc)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	for _, key := range []string{"BINANCE_API_KEY", "BINANCE_SECRET_KEY", "HL_WALLET_ADDRESS", "HL_PRIVATE_KEY"} {
		t.Setenv(key, "")
	}
	if _, err := New(baseConfig(), nil); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestNewRejectsMismatchedWallet(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "k")
	t.Setenv("BINANCE_SECRET_KEY", "s")
	// Address of the well-known test key below is not the zero address.
	t.Setenv("HL_WALLET_ADDRESS", "0x0000000000000000000000000000000000000001")
	t.Setenv("HL_PRIVATE_KEY", "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
	cfg := baseConfig()
	cfg.State.SQLitePath = t.TempDir() + "/kv.db"
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected wallet/key mismatch error")
	}
}
