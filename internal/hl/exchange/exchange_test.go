package exchange

import (
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestFloatToWire(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{30020, "30020"},
		{0.001, "0.001"},
		{29998.5, "29998.5"},
		{0, "0"},
	}
	for _, tc := range cases {
		got, err := floatToWire(tc.in)
		if err != nil {
			t.Fatalf("floatToWire(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("floatToWire(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFloatToWireRejectsOverPrecision(t *testing.T) {
	if _, err := floatToWire(0.0000000001234); err == nil {
		t.Fatal("expected precision error")
	}
}

func TestLimitOrderWire(t *testing.T) {
	wire, err := LimitOrderWire(3, true, 0.01, 30020, false, TifAlo, "0x1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wire.Asset != 3 || !wire.IsBuy || wire.Price != "30020" || wire.Size != "0.01" {
		t.Fatalf("unexpected wire: %+v", wire)
	}
	if wire.OrderType.Limit == nil || wire.OrderType.Limit.Tif != TifAlo {
		t.Fatalf("unexpected order type: %+v", wire.OrderType)
	}
}

func TestEncodeOrderActionIsCanonical(t *testing.T) {
	wire, err := LimitOrderWire(0, true, 0.01, 30020, false, TifGtc, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	action := OrderAction{Type: "order", Orders: []OrderWire{wire}, Grouping: "na"}
	b1, err := EncodeOrderAction(action)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b2, err := EncodeOrderAction(action)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatal("encoding must be deterministic")
	}
	var decoded map[string]any
	if err := msgpack.Unmarshal(b1, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != "order" || decoded["grouping"] != "na" {
		t.Fatalf("decoded = %v", decoded)
	}
}

func TestSignOrderActionProducesSignature(t *testing.T) {
	signer, err := NewSigner("0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d", false)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	wire, err := LimitOrderWire(0, true, 0.01, 30020, false, TifGtc, "")
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	sig, err := signer.SignOrderAction(OrderAction{Type: "order", Orders: []OrderWire{wire}, Grouping: "na"}, 1700000000000, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig.R) != 66 || len(sig.S) != 66 {
		t.Fatalf("unexpected signature lengths: r=%d s=%d", len(sig.R), len(sig.S))
	}
	if sig.V != 27 && sig.V != 28 {
		t.Fatalf("unexpected recovery id %d", sig.V)
	}
}

func TestParsePlaceResponseResting(t *testing.T) {
	resp := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{
					map[string]any{"resting": map[string]any{"oid": float64(4567), "cloid": "0xabc"}},
				},
			},
		},
	}
	ack, err := parsePlaceResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.OID != 4567 || ack.Cloid != "0xabc" || ack.Status != "resting" {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestParsePlaceResponseFilled(t *testing.T) {
	resp := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{
					map[string]any{"filled": map[string]any{"oid": float64(99), "totalSz": "0.01", "avgPx": "30019.5"}},
				},
			},
		},
	}
	ack, err := parsePlaceResponse(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.Status != "filled" || ack.TotalSize != 0.01 || ack.AvgPx != 30019.5 {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestParsePlaceResponseReject(t *testing.T) {
	resp := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{map[string]any{"error": "Insufficient margin"}},
			},
		},
	}
	if _, err := parsePlaceResponse(resp); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestParseCancelResponse(t *testing.T) {
	ok := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "cancel",
			"data": map[string]any{"statuses": []any{"success"}},
		},
	}
	if err := parseCancelResponse(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "cancel",
			"data": map[string]any{"statuses": []any{map[string]any{"error": "Order already canceled"}}},
		},
	}
	if err := parseCancelResponse(bad); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}
