package market

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cex-dex-arb-bot/internal/book"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
)

func dexL2Frame() json.RawMessage {
	return json.RawMessage(`{
		"channel": "l2Book",
		"data": {
			"coin": "BTC",
			"time": 1700000000000,
			"levels": [
				[{"px":"30020","sz":"1.5","n":3},{"px":"30010","sz":"2","n":1}],
				[{"px":"30022","sz":"1","n":2},{"px":"30030","sz":"4","n":5}]
			]
		}
	}`)
}

func TestParseDEXBook(t *testing.T) {
	l2, err := ParseDEXBook(dexL2Frame(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l2.Symbol != "BTC" || l2.Venue != book.VenueDEX {
		t.Fatalf("book = %+v", l2)
	}
	if bid, _ := l2.BestBid(); bid != 30020 {
		t.Fatalf("best bid = %v", bid)
	}
	if ask, _ := l2.BestAsk(); ask != 30022 {
		t.Fatalf("best ask = %v", ask)
	}
	if l2.Bids[0].Orders != 3 {
		t.Fatalf("orders = %d", l2.Bids[0].Orders)
	}
}

func TestParseDEXBookTruncatesToDepth(t *testing.T) {
	l2, err := ParseDEXBook(dexL2Frame(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l2.Bids) != 1 || len(l2.Asks) != 1 {
		t.Fatalf("depth not applied: %d/%d", len(l2.Bids), len(l2.Asks))
	}
}

func TestParseDEXBookRejectsOtherChannels(t *testing.T) {
	if _, err := ParseDEXBook(json.RawMessage(`{"channel":"trades","data":{}}`), 10); err == nil {
		t.Fatal("expected error for non-l2Book frame")
	}
}

func TestDepthBookAppliesDeltas(t *testing.T) {
	db := newDepthBook(book.VenueCEX, "BTCUSDT", 10)
	db.apply(
		[]priceLevel{{29999, 1}, {29998, 2}},
		[]priceLevel{{30000, 1}, {30001, 3}},
	)
	snap, err := db.snapshot(time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if bid, _ := snap.BestBid(); bid != 29999 {
		t.Fatalf("best bid = %v", bid)
	}

	// A zero-size delta removes the level; a new best bid appears.
	db.apply([]priceLevel{{29999, 0}}, nil)
	snap, err = db.snapshot(time.Unix(1700000001, 0))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if bid, _ := snap.BestBid(); bid != 29998 {
		t.Fatalf("best bid after removal = %v", bid)
	}
}

func TestDepthBookRejectsCrossedSnapshot(t *testing.T) {
	db := newDepthBook(book.VenueCEX, "BTCUSDT", 10)
	db.apply([]priceLevel{{30002, 1}}, []priceLevel{{30000, 1}})
	if _, err := db.snapshot(time.Now()); err == nil {
		t.Fatal("crossed book must not snapshot")
	}
}

// The DEX path updates the board silently; the CEX path fires the signal
// hook after updating.
func TestFeedSignalDiscipline(t *testing.T) {
	fees := book.FeeSchedule{}
	board := book.NewPriceBoard(fees, time.Minute)
	feed := NewFeed(board, nil, nil, "BTCUSDT", "BTC", 10, zap.NewNop())

	signals := 0
	feed.SetSignalHook(func(context.Context) { signals++ })

	feed.handleDEXMessage(dexL2Frame())
	if signals != 0 {
		t.Fatal("dex update must not fire the signal hook")
	}
	if bid, ok := board.Price(book.VenueDEX, book.SideBid); !ok || bid != 30020 {
		t.Fatalf("dex bid = %v ok=%v", bid, ok)
	}

	feed.handleCEXDepth(context.Background(), &futures.WsDepthEvent{
		Symbol: "BTCUSDT",
		Time:   1700000000000,
		Bids:   []futures.Bid{{Price: "29999", Quantity: "1"}},
		Asks:   []futures.Ask{{Price: "30000", Quantity: "2"}},
	})
	if signals != 1 {
		t.Fatalf("signals = %d, want 1", signals)
	}
	if ask, ok := board.Price(book.VenueCEX, book.SideAsk); !ok || ask != 30000 {
		t.Fatalf("cex ask = %v ok=%v", ask, ok)
	}

	// A delta that only removes the ask leaves a one-sided book; no quote
	// update, no signal.
	feed.handleCEXDepth(context.Background(), &futures.WsDepthEvent{
		Symbol: "BTCUSDT",
		Time:   1700000000100,
		Asks:   []futures.Ask{{Price: "30000", Quantity: "0"}},
	})
	if signals != 1 {
		t.Fatalf("one-sided book must not signal, got %d", signals)
	}
}
