package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/cex"
	"cex-dex-arb-bot/internal/hl/ws"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
)

const cexDepthInterval = 100 * time.Millisecond

// Feed fuses the two market-data streams into the price board. DEX book
// updates land silently; CEX updates additionally fire the signal hook, so
// the strictly fresher CEX stream acts as the sampling clock and the board
// is never re-evaluated twice per inter-venue tick pair.
type Feed struct {
	log       *zap.Logger
	board     *book.PriceBoard
	depth     int
	cexSymbol string
	dexSymbol string
	dexWS     *ws.Client
	cexClient *cex.Client

	mu      sync.Mutex
	cexBook *depthBook

	signal func(ctx context.Context)
}

func NewFeed(board *book.PriceBoard, dexWS *ws.Client, cexClient *cex.Client, cexSymbol, dexSymbol string, depth int, log *zap.Logger) *Feed {
	return &Feed{
		log:       log,
		board:     board,
		depth:     depth,
		cexSymbol: cexSymbol,
		dexSymbol: dexSymbol,
		dexWS:     dexWS,
		cexClient: cexClient,
		cexBook:   newDepthBook(book.VenueCEX, cexSymbol, depth),
	}
}

// SetSignalHook publishes the strategy's signal-check capability. Must be
// set before Start.
func (f *Feed) SetSignalHook(fn func(ctx context.Context)) {
	f.signal = fn
}

func (f *Feed) Start(ctx context.Context) error {
	if err := f.dexWS.Connect(ctx); err != nil {
		return err
	}
	sub := map[string]any{
		"method": "subscribe",
		"subscription": map[string]any{
			"type": "l2Book",
			"coin": f.dexSymbol,
		},
	}
	if err := f.dexWS.Subscribe(ctx, sub); err != nil {
		return err
	}
	go func() {
		_ = f.dexWS.Run(ctx, f.handleDEXMessage)
	}()

	go func() {
		_ = f.cexClient.RunDepthStream(ctx, f.cexSymbol, cexDepthInterval, func(ev *futures.WsDepthEvent) {
			f.handleCEXDepth(ctx, ev)
		})
	}()
	return nil
}

// handleDEXMessage parses an l2Book frame and updates the board without
// firing a signal.
func (f *Feed) handleDEXMessage(raw json.RawMessage) {
	l2, err := ParseDEXBook(raw, f.depth)
	if err != nil {
		return
	}
	bid, okB := l2.BestBid()
	ask, okA := l2.BestAsk()
	if !okB || !okA {
		return
	}
	if err := f.board.Update(book.VenueDEX, bid, ask); err != nil {
		f.log.Debug("dex quote rejected", zap.Error(err))
	}
}

// handleCEXDepth folds a diff-depth delta into the running book, refreshes
// the board and invokes the signal check.
func (f *Feed) handleCEXDepth(ctx context.Context, ev *futures.WsDepthEvent) {
	if ev == nil {
		return
	}
	bids := make([]priceLevel, 0, len(ev.Bids))
	for _, lvl := range ev.Bids {
		bids = append(bids, priceLevel{Price: parsePx(lvl.Price), Size: parsePx(lvl.Quantity)})
	}
	asks := make([]priceLevel, 0, len(ev.Asks))
	for _, lvl := range ev.Asks {
		asks = append(asks, priceLevel{Price: parsePx(lvl.Price), Size: parsePx(lvl.Quantity)})
	}

	f.mu.Lock()
	f.cexBook.apply(bids, asks)
	snap, err := f.cexBook.snapshot(time.UnixMilli(ev.Time))
	f.mu.Unlock()
	if err != nil {
		// Transient crossed book while deltas catch up.
		f.log.Debug("cex book snapshot rejected", zap.Error(err))
		return
	}
	bid, okB := snap.BestBid()
	ask, okA := snap.BestAsk()
	if !okB || !okA {
		return
	}
	if err := f.board.Update(book.VenueCEX, bid, ask); err != nil {
		f.log.Debug("cex quote rejected", zap.Error(err))
		return
	}
	if f.signal != nil {
		f.signal(ctx)
	}
}

type dexLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// ParseDEXBook decodes a Hyperliquid l2Book frame: levels[0] bids descending,
// levels[1] asks ascending, each level carrying px/sz/n strings.
func ParseDEXBook(raw json.RawMessage, depth int) (*book.L2Book, error) {
	var frame struct {
		Channel string `json:"channel"`
		Data    struct {
			Coin   string        `json:"coin"`
			Time   int64         `json:"time"`
			Levels [2][]dexLevel `json:"levels"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	if frame.Channel != "l2Book" {
		return nil, fmt.Errorf("not an l2Book frame: %q", frame.Channel)
	}
	parseSide := func(levels []dexLevel) []book.Level {
		if len(levels) > depth {
			levels = levels[:depth]
		}
		out := make([]book.Level, 0, len(levels))
		for _, lvl := range levels {
			price := parsePx(lvl.Px)
			size := parsePx(lvl.Sz)
			if price <= 0 || size <= 0 {
				continue
			}
			out = append(out, book.Level{Price: price, Size: size, Orders: lvl.N})
		}
		return out
	}
	bids := parseSide(frame.Data.Levels[0])
	asks := parseSide(frame.Data.Levels[1])
	return book.NewL2Book(book.VenueDEX, frame.Data.Coin, bids, asks, 0, time.UnixMilli(frame.Data.Time))
}

func parsePx(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
