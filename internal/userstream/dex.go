package userstream

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/hl/ws"
	"cex-dex-arb-bot/internal/strategy"

	"go.uber.org/zap"
)

// Resyncer lets the stream ask the strategy to re-query in-flight order
// state after a reconnect, covering terminal events lost during the gap.
type Resyncer interface {
	Resync(ctx context.Context)
}

// DEXStream subscribes to Hyperliquid orderUpdates for the wallet and
// forwards terminal events.
type DEXStream struct {
	ws      *ws.Client
	wallet  string
	handler Handler
	log     *zap.Logger
}

func NewDEXStream(wsClient *ws.Client, wallet string, handler Handler, log *zap.Logger) *DEXStream {
	return &DEXStream{ws: wsClient, wallet: wallet, handler: handler, log: log}
}

// Start connects, subscribes and launches the read loop. When resync is
// non-nil it runs after every reconnect.
func (s *DEXStream) Start(ctx context.Context, resync Resyncer) error {
	if err := s.ws.Connect(ctx); err != nil {
		return err
	}
	sub := map[string]any{
		"method": "subscribe",
		"subscription": map[string]any{
			"type": "orderUpdates",
			"user": s.wallet,
		},
	}
	if err := s.ws.Subscribe(ctx, sub); err != nil {
		return err
	}
	if resync != nil {
		s.ws.OnReconnect(func() { resync.Resync(ctx) })
	}
	go func() {
		_ = s.ws.Run(ctx, func(raw json.RawMessage) {
			for _, ev := range NormalizeDEXOrderUpdates(raw, s.log) {
				s.handler.OnOrderEvent(ctx, ev)
			}
		})
	}()
	return nil
}

type dexOrderUpdate struct {
	Order struct {
		Coin   string `json:"coin"`
		Oid    int64  `json:"oid"`
		Cloid  string `json:"cloid"`
		Sz     string `json:"sz"`
		OrigSz string `json:"origSz"`
	} `json:"order"`
	Status string `json:"status"`
}

// NormalizeDEXOrderUpdates parses an orderUpdates frame into terminal
// events. The venue reports sz as the REMAINING size; the cumulative fill is
// origSz - sz. Open/resting updates produce nothing.
func NormalizeDEXOrderUpdates(raw json.RawMessage, log *zap.Logger) []strategy.OrderEvent {
	var frame struct {
		Channel string           `json:"channel"`
		Data    []dexOrderUpdate `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil
	}
	if frame.Channel != "orderUpdates" {
		return nil
	}
	var out []strategy.OrderEvent
	for _, upd := range frame.Data {
		orig := parseQty(upd.Order.OrigSz)
		remaining := parseQty(upd.Order.Sz)
		cum := orig - remaining
		if cum < 0 {
			cum = 0
		}
		ev := strategy.OrderEvent{
			Venue:     book.VenueDEX,
			OrderID:   strconv.FormatInt(upd.Order.Oid, 10),
			ClientID:  upd.Order.Cloid,
			FilledQty: cum,
		}
		switch strings.ToLower(upd.Status) {
		case "filled":
			ev.Type = strategy.EventAllTraded
			ev.FilledQty = orig
		case "canceled", "cancelled", "margincanceled":
			if cum > 0 {
				ev.Type = strategy.EventPartialFilledCanceled
			} else {
				ev.Type = strategy.EventAllCanceled
			}
		case "rejected", "expired":
			ev.Type = strategy.EventAllCanceled
			ev.FilledQty = 0
		default:
			// open / resting; nothing terminal to report
			continue
		}
		out = append(out, ev)
	}
	if len(out) == 0 && len(frame.Data) > 0 && log != nil {
		log.Debug("order updates carried no terminal events", zap.Int("count", len(frame.Data)))
	}
	return out
}
