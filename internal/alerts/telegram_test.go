package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cex-dex-arb-bot/internal/config"

	"go.uber.org/zap"
)

func TestTelegramDisabledIsNoop(t *testing.T) {
	tg := newTelegram(config.TelegramConfig{Enabled: false}, zap.NewNop(), "http://127.0.0.1:1", nil)
	if err := tg.Send(context.Background(), "ignored"); err != nil {
		t.Fatalf("disabled send must be a no-op, got %v", err)
	}
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	tg := newTelegram(config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}, zap.NewNop(), srv.URL, srv.Client())
	if err := tg.Send(context.Background(), "position mismatch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "42" || gotBody["text"] != "position mismatch" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	tg := newTelegram(config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}, zap.NewNop(), srv.URL, srv.Client())
	if err := tg.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from telegram ok=false")
	}
}

func TestTelegramMissingCredentials(t *testing.T) {
	tg := newTelegram(config.TelegramConfig{Enabled: true}, zap.NewNop(), "http://127.0.0.1:1", nil)
	if err := tg.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
