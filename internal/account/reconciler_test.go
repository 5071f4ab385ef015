package account

import (
	"context"
	"errors"
	"testing"

	"cex-dex-arb-bot/internal/strategy"

	"go.uber.org/zap"
)

type stubVenues struct {
	cexPos float64
	dexPos float64
}

func (s *stubVenues) PositionAmt(context.Context, string) (float64, error) { return s.cexPos, nil }
func (s *stubVenues) AvailableUSDT(context.Context) (float64, error)       { return 1000, nil }
func (s *stubVenues) PerpPosition(context.Context, string) (float64, error) {
	return s.dexPos, nil
}
func (s *stubVenues) Withdrawable(context.Context) (float64, error) { return 500, nil }

func reconcile(t *testing.T, cexPos, dexPos float64) (strategy.State, float64, error) {
	t.Helper()
	stub := &stubVenues{cexPos: cexPos, dexPos: dexPos}
	r := NewReconciler(stub, stub, "BTCUSDT", "BTC", 0.001, zap.NewNop())
	return r.Reconcile(context.Background())
}

func TestBothFlatStartsOpen(t *testing.T) {
	state, held, err := reconcile(t, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != strategy.StateOpenCondition || held != 0 {
		t.Fatalf("state=%s held=%v", state, held)
	}
}

func TestHedgedPairStartsClose(t *testing.T) {
	state, held, err := reconcile(t, -0.01, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != strategy.StateCloseCondition {
		t.Fatalf("state = %s", state)
	}
	if held != 0.01 {
		t.Fatalf("held = %v", held)
	}
}

func TestHedgedPairWithinLotTolerance(t *testing.T) {
	state, _, err := reconcile(t, -0.0105, 0.01)
	if err != nil {
		t.Fatalf("one-lot mismatch must be tolerated: %v", err)
	}
	if state != strategy.StateCloseCondition {
		t.Fatalf("state = %s", state)
	}
}

// S5: one-sided inventory refuses to start.
func TestOneSidedRefuses(t *testing.T) {
	_, _, err := reconcile(t, -0.01, 0)
	if !errors.Is(err, ErrPositionMismatch) {
		t.Fatalf("expected ErrPositionMismatch, got %v", err)
	}
}

func TestSameSidedRefuses(t *testing.T) {
	_, _, err := reconcile(t, 0.01, 0.01)
	if !errors.Is(err, ErrPositionMismatch) {
		t.Fatalf("expected ErrPositionMismatch, got %v", err)
	}
}

func TestSizeMismatchRefuses(t *testing.T) {
	_, _, err := reconcile(t, -0.02, 0.01)
	if !errors.Is(err, ErrPositionMismatch) {
		t.Fatalf("expected ErrPositionMismatch, got %v", err)
	}
}
