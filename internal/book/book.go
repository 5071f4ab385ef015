package book

import (
	"errors"
	"fmt"
	"time"
)

// Venue identifies one of the two trading venues. The CEX is the
// Binance-shaped futures exchange, the DEX the Hyperliquid-shaped perps venue.
type Venue string

const (
	VenueCEX Venue = "binance"
	VenueDEX Venue = "hyperliquid"
)

// Side of the book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Level is one price level: price, resting size and number of orders.
// Venues that do not report order counts use 1.
type Level struct {
	Price  float64
	Size   float64
	Orders int
}

// L2Book is an in-memory snapshot of the top of a venue's order book.
// Bids are ordered descending by price, asks ascending.
type L2Book struct {
	Venue  Venue
	Symbol string
	Bids   []Level
	Asks   []Level
	Seq    uint64
	Time   time.Time
}

var (
	ErrCrossedBook = errors.New("crossed book")
	ErrBadLevel    = errors.New("bad book level")
)

// NewL2Book validates the level sequences before wrapping them: bids strictly
// descending, asks strictly ascending, no nonpositive sizes, top bid < top ask.
func NewL2Book(venue Venue, symbol string, bids, asks []Level, seq uint64, ts time.Time) (*L2Book, error) {
	if err := checkLevels(bids, false); err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	if err := checkLevels(asks, true); err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	if len(bids) > 0 && len(asks) > 0 && bids[0].Price >= asks[0].Price {
		return nil, fmt.Errorf("%w: bid %v >= ask %v", ErrCrossedBook, bids[0].Price, asks[0].Price)
	}
	return &L2Book{Venue: venue, Symbol: symbol, Bids: bids, Asks: asks, Seq: seq, Time: ts}, nil
}

func checkLevels(levels []Level, ascending bool) error {
	for i, lvl := range levels {
		if lvl.Price <= 0 || lvl.Size <= 0 {
			return fmt.Errorf("%w: price %v size %v", ErrBadLevel, lvl.Price, lvl.Size)
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1].Price
		if lvl.Price == prev {
			return fmt.Errorf("%w: duplicate price %v", ErrBadLevel, lvl.Price)
		}
		if ascending && lvl.Price < prev {
			return fmt.Errorf("%w: asks out of order at %v", ErrBadLevel, lvl.Price)
		}
		if !ascending && lvl.Price > prev {
			return fmt.Errorf("%w: bids out of order at %v", ErrBadLevel, lvl.Price)
		}
	}
	return nil
}

// BestBid returns the top bid price, ok=false on an empty side.
func (b *L2Book) BestBid() (float64, bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the top ask price, ok=false on an empty side.
func (b *L2Book) BestAsk() (float64, bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// MidPrice is the midpoint of the top of book, 0 when either side is empty.
func (b *L2Book) MidPrice() float64 {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0
	}
	return (b.Bids[0].Price + b.Asks[0].Price) / 2
}

// Spread is top ask minus top bid, 0 when either side is empty.
func (b *L2Book) Spread() float64 {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price - b.Bids[0].Price
}

// Depth sums the sizes of the top n levels on one side.
func (b *L2Book) Depth(side Side, n int) float64 {
	levels := b.Bids
	if side == SideAsk {
		levels = b.Asks
	}
	if n > len(levels) {
		n = len(levels)
	}
	var total float64
	for _, lvl := range levels[:n] {
		total += lvl.Size
	}
	return total
}
