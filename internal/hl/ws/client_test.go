package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func wsTestServer(t *testing.T, ctx context.Context, msgCh chan map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case msgCh <- msg:
			default:
			}
		}
	}))
}

func TestClientSendsPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msgCh := make(chan map[string]any, 4)
	server := wsTestServer(t, ctx, msgCh)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() { _ = client.Run(runCtx, nil) }()

	deadline := time.After(900 * time.Millisecond)
	for {
		select {
		case msg := <-msgCh:
			if msg["method"] == "ping" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for ping")
		}
	}
}

func TestClientReplaysSubscriptions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msgCh := make(chan map[string]any, 4)
	server := wsTestServer(t, ctx, msgCh)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 0, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	sub := map[string]any{"method": "subscribe", "subscription": map[string]any{"type": "l2Book", "coin": "BTC"}}
	if err := client.Subscribe(ctx, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() { _ = client.Run(runCtx, nil) }()

	select {
	case msg := <-msgCh:
		if msg["method"] != "subscribe" {
			t.Fatalf("expected subscribe replay, got %v", msg)
		}
	case <-time.After(900 * time.Millisecond):
		t.Fatal("timed out waiting for subscription replay")
	}
}

func TestSubscribeWithoutConnection(t *testing.T) {
	client := New("ws://127.0.0.1:1", 10*time.Millisecond, 0, zap.NewNop())
	if err := client.Subscribe(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error before connect")
	}
}
