package book

import (
	"errors"
	"testing"
	"time"
)

func validBook(t *testing.T) *L2Book {
	t.Helper()
	b, err := NewL2Book(VenueDEX, "BTC",
		[]Level{{Price: 30020, Size: 1.5, Orders: 3}, {Price: 30010, Size: 2, Orders: 1}, {Price: 30000, Size: 0.5, Orders: 2}},
		[]Level{{Price: 30025, Size: 1, Orders: 1}, {Price: 30030, Size: 4, Orders: 5}},
		7, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestL2BookDerived(t *testing.T) {
	b := validBook(t)
	if bid, ok := b.BestBid(); !ok || bid != 30020 {
		t.Fatalf("best bid = %v ok=%v", bid, ok)
	}
	if ask, ok := b.BestAsk(); !ok || ask != 30025 {
		t.Fatalf("best ask = %v ok=%v", ask, ok)
	}
	if mid := b.MidPrice(); mid != 30022.5 {
		t.Fatalf("mid = %v", mid)
	}
	if s := b.Spread(); s != 5 {
		t.Fatalf("spread = %v", s)
	}
	if d := b.Depth(SideBid, 2); d != 3.5 {
		t.Fatalf("bid depth 2 = %v", d)
	}
	if d := b.Depth(SideAsk, 10); d != 5 {
		t.Fatalf("ask depth clamped = %v", d)
	}
}

func TestL2BookRejectsCrossed(t *testing.T) {
	_, err := NewL2Book(VenueCEX, "BTCUSDT",
		[]Level{{Price: 30030, Size: 1, Orders: 1}},
		[]Level{{Price: 30025, Size: 1, Orders: 1}},
		1, time.Now())
	if !errors.Is(err, ErrCrossedBook) {
		t.Fatalf("expected ErrCrossedBook, got %v", err)
	}
}

func TestL2BookRejectsBadLevels(t *testing.T) {
	cases := []struct {
		name string
		bids []Level
	}{
		{"zero size", []Level{{Price: 100, Size: 0, Orders: 1}}},
		{"negative price", []Level{{Price: -1, Size: 1, Orders: 1}}},
		{"duplicate price", []Level{{Price: 100, Size: 1, Orders: 1}, {Price: 100, Size: 2, Orders: 1}}},
		{"out of order", []Level{{Price: 100, Size: 1, Orders: 1}, {Price: 101, Size: 1, Orders: 1}}},
	}
	for _, tc := range cases {
		if _, err := NewL2Book(VenueDEX, "BTC", tc.bids, nil, 0, time.Now()); !errors.Is(err, ErrBadLevel) {
			t.Fatalf("%s: expected ErrBadLevel, got %v", tc.name, err)
		}
	}
}

func TestL2BookEmptySides(t *testing.T) {
	b, err := NewL2Book(VenueDEX, "BTC", nil, nil, 0, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.BestBid(); ok {
		t.Fatal("expected no best bid")
	}
	if b.MidPrice() != 0 || b.Spread() != 0 {
		t.Fatal("expected zero mid and spread on empty book")
	}
}
