package market

import (
	"sort"
	"time"

	"cex-dex-arb-bot/internal/book"
)

// depthBook accumulates diff-depth deltas into a price-level map. A zero
// quantity removes the level. Snapshots come out as validated L2Books capped
// at the configured depth.
type depthBook struct {
	venue  book.Venue
	symbol string
	depth  int
	bids   map[float64]float64
	asks   map[float64]float64
	seq    uint64
}

func newDepthBook(venue book.Venue, symbol string, depth int) *depthBook {
	return &depthBook{
		venue:  venue,
		symbol: symbol,
		depth:  depth,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
	}
}

type priceLevel struct {
	Price float64
	Size  float64
}

func (d *depthBook) apply(bids, asks []priceLevel) {
	for _, lvl := range bids {
		if lvl.Size <= 0 {
			delete(d.bids, lvl.Price)
		} else {
			d.bids[lvl.Price] = lvl.Size
		}
	}
	for _, lvl := range asks {
		if lvl.Size <= 0 {
			delete(d.asks, lvl.Price)
		} else {
			d.asks[lvl.Price] = lvl.Size
		}
	}
	d.seq++
}

// snapshot materializes the current top of the book. The L2Book constructor
// rejects transient crossed states that occur while deltas are catching up.
func (d *depthBook) snapshot(ts time.Time) (*book.L2Book, error) {
	bids := make([]book.Level, 0, len(d.bids))
	for price, size := range d.bids {
		bids = append(bids, book.Level{Price: price, Size: size, Orders: 1})
	}
	asks := make([]book.Level, 0, len(d.asks))
	for price, size := range d.asks {
		asks = append(asks, book.Level{Price: price, Size: size, Orders: 1})
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	if len(bids) > d.depth {
		bids = bids[:d.depth]
	}
	if len(asks) > d.depth {
		asks = asks[:d.depth]
	}
	return book.NewL2Book(d.venue, d.symbol, bids, asks, d.seq, ts)
}
