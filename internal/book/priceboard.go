package book

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// FeeSchedule holds per-venue maker/taker rates as decimals (0.0002 = 0.02%).
type FeeSchedule struct {
	CEXMaker float64
	CEXTaker float64
	DEXMaker float64
	DEXTaker float64
}

// Ticker is the latest top of book seen for one venue.
type Ticker struct {
	Bid float64
	Ask float64
	At  time.Time
}

var ErrBadQuote = errors.New("bad quote")

// PriceBoard keeps the freshest bid/ask per venue and derives the fee-adjusted
// inter-venue edges. No history is kept; every update overwrites. All access
// goes through a single mutex so a reader never observes a torn bid/ask pair.
type PriceBoard struct {
	mu     sync.Mutex
	prices map[Venue]Ticker
	fees   FeeSchedule
	maxAge time.Duration
	now    func() time.Time
}

// NewPriceBoard builds a board with the given fee schedule. Quotes older than
// maxAge are treated as absent; maxAge <= 0 defaults to one second.
func NewPriceBoard(fees FeeSchedule, maxAge time.Duration) *PriceBoard {
	if maxAge <= 0 {
		maxAge = time.Second
	}
	return &PriceBoard{
		prices: make(map[Venue]Ticker),
		fees:   fees,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// SetClock replaces the board's time source. Tests only.
func (p *PriceBoard) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// Update atomically replaces a venue's quote. Crossed or nonpositive quotes
// are rejected and the previous quote kept.
func (p *PriceBoard) Update(venue Venue, bid, ask float64) error {
	if bid <= 0 || ask <= 0 || bid >= ask {
		return fmt.Errorf("%w: %s bid=%v ask=%v", ErrBadQuote, venue, bid, ask)
	}
	p.mu.Lock()
	p.prices[venue] = Ticker{Bid: bid, Ask: ask, At: p.now()}
	p.mu.Unlock()
	return nil
}

// Price returns one side of a venue's latest quote. ok=false when the venue
// has never been quoted or the quote is stale.
func (p *PriceBoard) Price(venue Venue, side Side) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.fresh(venue)
	if !ok {
		return 0, false
	}
	if side == SideBid {
		return t.Bid, true
	}
	return t.Ask, true
}

// Snapshot returns both venues' quotes as last seen, regardless of age.
func (p *PriceBoard) Snapshot() map[Venue]Ticker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Venue]Ticker, len(p.prices))
	for v, t := range p.prices {
		out[v] = t
	}
	return out
}

// NetSpread derives the fee-adjusted edges from a single consistent read of
// both quotes:
//
//	openEdge  = dexBid*(1-dexMaker) - cexAsk*(1+cexTaker)   (open: DEX buy maker, CEX sell taker)
//	closeEdge = cexBid*(1-cexMaker) - dexAsk*(1+dexTaker)   (close: DEX sell maker, CEX buy taker)
//
// The maker leg is always the DEX: its thinner book gives better price
// capture, and the CEX taker leg guarantees the hedge fill. ok=false when
// either venue is unquoted or stale.
func (p *PriceBoard) NetSpread() (openEdge, closeEdge float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cex, okC := p.fresh(VenueCEX)
	dex, okD := p.fresh(VenueDEX)
	if !okC || !okD {
		return 0, 0, false
	}
	openEdge = dex.Bid*(1-p.fees.DEXMaker) - cex.Ask*(1+p.fees.CEXTaker)
	closeEdge = cex.Bid*(1-p.fees.CEXMaker) - dex.Ask*(1+p.fees.DEXTaker)
	return openEdge, closeEdge, true
}

func (p *PriceBoard) fresh(venue Venue) (Ticker, bool) {
	t, ok := p.prices[venue]
	if !ok || t.Bid == 0 {
		return Ticker{}, false
	}
	if p.now().Sub(t.At) > p.maxAge {
		return Ticker{}, false
	}
	return t, true
}
