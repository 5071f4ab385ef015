package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := "# credentials\nBINANCE_API_KEY=abc\nexport HL_WALLET_ADDRESS=\"0xdead\"\nEMPTY\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("BINANCE_API_KEY", "")
	os.Unsetenv("BINANCE_API_KEY")
	t.Setenv("HL_WALLET_ADDRESS", "")
	os.Unsetenv("HL_WALLET_ADDRESS")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("BINANCE_API_KEY"); got != "abc" {
		t.Fatalf("BINANCE_API_KEY = %q", got)
	}
	if got := os.Getenv("HL_WALLET_ADDRESS"); got != "0xdead" {
		t.Fatalf("HL_WALLET_ADDRESS = %q", got)
	}
}

func TestLoadEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BINANCE_SECRET_KEY=file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("BINANCE_SECRET_KEY", "real")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("BINANCE_SECRET_KEY"); got != "real" {
		t.Fatalf("expected existing value kept, got %q", got)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file must be ignored, got %v", err)
	}
}
