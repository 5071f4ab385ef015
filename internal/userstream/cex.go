package userstream

import (
	"context"
	"strconv"

	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/cex"
	"cex-dex-arb-bot/internal/strategy"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
)

// Handler receives normalized terminal order events; the strategy machine
// implements it.
type Handler interface {
	OnOrderEvent(ctx context.Context, ev strategy.OrderEvent)
}

// CEXStream runs the Binance futures user-data stream and forwards terminal
// order events to the handler. Non-terminal updates are intentionally
// dropped: the machine only reacts to ALL_TRADED / PARTIAL_FILLED_CANCELED /
// ALL_CANCELED.
type CEXStream struct {
	client  *cex.Client
	handler Handler
	log     *zap.Logger
}

func NewCEXStream(client *cex.Client, handler Handler, log *zap.Logger) *CEXStream {
	return &CEXStream{client: client, handler: handler, log: log}
}

func (s *CEXStream) Run(ctx context.Context) error {
	return s.client.RunUserStream(ctx, func(ev *futures.WsUserDataEvent) {
		oe, ok := NormalizeCEXEvent(ev)
		if !ok {
			return
		}
		s.handler.OnOrderEvent(ctx, oe)
	})
}

// NormalizeCEXEvent maps an ORDER_TRADE_UPDATE to a terminal event. The
// venue's filled quantity is cumulative, which is exactly what the machine
// expects. CANCELED and EXPIRED split on whether anything filled; REJECTED
// counts as canceled with no fill.
func NormalizeCEXEvent(ev *futures.WsUserDataEvent) (strategy.OrderEvent, bool) {
	if ev == nil || ev.Event != futures.UserDataEventTypeOrderTradeUpdate {
		return strategy.OrderEvent{}, false
	}
	o := ev.OrderTradeUpdate
	cum := parseQty(o.AccumulatedFilledQty)
	out := strategy.OrderEvent{
		Venue:     book.VenueCEX,
		OrderID:   strconv.FormatInt(o.ID, 10),
		ClientID:  o.ClientOrderID,
		FilledQty: cum,
	}
	switch o.Status {
	case futures.OrderStatusTypeFilled:
		out.Type = strategy.EventAllTraded
		return out, true
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		if cum > 0 {
			out.Type = strategy.EventPartialFilledCanceled
		} else {
			out.Type = strategy.EventAllCanceled
		}
		return out, true
	case futures.OrderStatusTypeRejected:
		out.Type = strategy.EventAllCanceled
		out.FilledQty = 0
		return out, true
	default:
		return strategy.OrderEvent{}, false
	}
}

func parseQty(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
