package book

import (
	"errors"
	"math"
	"testing"
	"time"
)

func testFees() FeeSchedule {
	return FeeSchedule{CEXMaker: 0.0002, CEXTaker: 0.0004, DEXMaker: 0.0002, DEXTaker: 0.0004}
}

func TestPriceBoardUpdateRejects(t *testing.T) {
	b := NewPriceBoard(testFees(), time.Second)
	cases := []struct{ bid, ask float64 }{
		{0, 100},
		{100, 0},
		{-5, 100},
		{100, 100},
		{101, 100},
	}
	for _, tc := range cases {
		if err := b.Update(VenueCEX, tc.bid, tc.ask); !errors.Is(err, ErrBadQuote) {
			t.Fatalf("bid=%v ask=%v: expected ErrBadQuote, got %v", tc.bid, tc.ask, err)
		}
	}
	if _, ok := b.Price(VenueCEX, SideBid); ok {
		t.Fatal("rejected update must not be visible")
	}
}

func TestPriceBoardPriceAndStaleness(t *testing.T) {
	b := NewPriceBoard(testFees(), time.Second)
	now := time.Unix(1700000000, 0)
	b.SetClock(func() time.Time { return now })

	if err := b.Update(VenueDEX, 30020, 30021); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, ok := b.Price(VenueDEX, SideBid); !ok || p != 30020 {
		t.Fatalf("bid = %v ok=%v", p, ok)
	}
	if p, ok := b.Price(VenueDEX, SideAsk); !ok || p != 30021 {
		t.Fatalf("ask = %v ok=%v", p, ok)
	}

	now = now.Add(1500 * time.Millisecond)
	if _, ok := b.Price(VenueDEX, SideBid); ok {
		t.Fatal("stale quote must read as absent")
	}
	if _, _, ok := b.NetSpread(); ok {
		t.Fatal("stale quote must suppress the edges")
	}
}

// Mirrors the S1 seed numbers: cex_ask=30000, dex_bid=30020, maker 0.02%,
// taker 0.04% gives an open edge close to +14.
func TestPriceBoardNetSpread(t *testing.T) {
	b := NewPriceBoard(testFees(), time.Second)
	now := time.Unix(1700000000, 0)
	b.SetClock(func() time.Time { return now })

	if err := b.Update(VenueCEX, 29999, 30000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Update(VenueDEX, 30020, 30022); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	open, closeEdge, ok := b.NetSpread()
	if !ok {
		t.Fatal("expected edges")
	}
	wantOpen := 30020*(1-0.0002) - 30000*(1+0.0004)
	wantClose := 29999*(1-0.0002) - 30022*(1+0.0004)
	if math.Abs(open-wantOpen) > 1e-9 {
		t.Fatalf("open edge = %v want %v", open, wantOpen)
	}
	if math.Abs(closeEdge-wantClose) > 1e-9 {
		t.Fatalf("close edge = %v want %v", closeEdge, wantClose)
	}
	if open < 13.9 || open > 14.1 {
		t.Fatalf("open edge %v outside the expected ~14 window", open)
	}
}

func TestPriceBoardNetSpreadNeedsBothVenues(t *testing.T) {
	b := NewPriceBoard(testFees(), time.Second)
	if err := b.Update(VenueCEX, 29999, 30000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, ok := b.NetSpread(); ok {
		t.Fatal("edges require both venues")
	}
}

func TestPriceBoardNoTornReads(t *testing.T) {
	b := NewPriceBoard(testFees(), time.Minute)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			_ = b.Update(VenueCEX, 100+float64(i), 200+float64(i))
		}
	}()
	for i := 0; i < 2000; i++ {
		snap := b.Snapshot()
		if t0, ok := snap[VenueCEX]; ok {
			if t0.Ask-t0.Bid != 100 {
				t.Fatalf("torn read: bid=%v ask=%v", t0.Bid, t0.Ask)
			}
		}
	}
	<-done
}
