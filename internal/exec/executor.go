package exec

import (
	"context"
	"fmt"

	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/metrics"

	"go.uber.org/zap"
)

// Executor is the uniform place/cancel surface over both venues. It owns the
// precision policy (quantities floored to lot step, limit prices rounded per
// maker/taker) and failure normalization. It never retries; retry policy
// belongs to the strategy.
type Executor struct {
	drivers map[book.Venue]Driver
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(drivers map[book.Venue]Driver, log *zap.Logger, m *metrics.Metrics) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Executor{drivers: drivers, log: log, metrics: m}
}

// PlaceOrder rounds the request to the venue's precision and submits it.
// A quantity that rounds to zero is refused before anything reaches the
// venue, with Ok=false and Retriable=false.
func (e *Executor) PlaceOrder(ctx context.Context, req OrderRequest) Result {
	driver, ok := e.drivers[req.Venue]
	if !ok {
		return Result{Ok: false, Msg: fmt.Sprintf("unknown venue %q", req.Venue)}
	}
	if filters, ok := driver.Filters(req.Symbol); ok {
		if req.Qty > 0 {
			req.Qty = FloorToStep(req.Qty, filters.StepSize)
		}
		if req.Price > 0 {
			req.Price = RoundPrice(req.Price, filters.TickSize, req.Side, req.Maker)
		}
	}
	if req.QuoteAmount <= 0 && req.Qty <= 0 {
		return Result{Ok: false, Retriable: false, Msg: "quantity rounds to zero"}
	}

	res := driver.Place(ctx, req)
	if res.Ok {
		e.metrics.OrdersPlaced.Inc()
		e.log.Info("order placed",
			zap.String("venue", string(req.Venue)),
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Float64("qty", req.Qty),
			zap.Float64("price", req.Price),
			zap.String("order_id", res.Data.OrderID),
			zap.String("client_id", req.ClientID),
		)
		return res
	}
	e.metrics.OrdersFailed.Inc()
	e.log.Warn("order placement failed",
		zap.String("venue", string(req.Venue)),
		zap.String("symbol", req.Symbol),
		zap.Bool("retriable", res.Retriable),
		zap.String("msg", res.Msg),
	)
	if res.FilterReject {
		// Precision filters are stale; reload so the next attempt rounds right.
		if err := driver.RefreshFilters(ctx); err != nil {
			e.log.Warn("filter refresh failed", zap.Error(err))
		}
	}
	return res
}

// PlaceOrderAsync places on a worker goroutine and delivers the Result on
// the returned channel. The completion handler is expected to re-enter the
// strategy and install the slot idempotently by client id.
func (e *Executor) PlaceOrderAsync(ctx context.Context, req OrderRequest) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- e.PlaceOrder(ctx, req)
		close(ch)
	}()
	return ch
}

// CancelOrder submits a cancel. A cancel that the venue refuses because the
// order is already terminal is reported Ok=false Retriable=false; the
// caller's user stream carries the authoritative terminal event.
func (e *Executor) CancelOrder(ctx context.Context, req CancelRequest) Result {
	driver, ok := e.drivers[req.Venue]
	if !ok {
		return Result{Ok: false, Msg: fmt.Sprintf("unknown venue %q", req.Venue)}
	}
	res := driver.Cancel(ctx, req)
	if !res.Ok {
		e.log.Warn("cancel failed",
			zap.String("venue", string(req.Venue)),
			zap.String("order_id", req.OrderID),
			zap.Bool("retriable", res.Retriable),
			zap.String("msg", res.Msg),
		)
	}
	return res
}

// QueryOrder fetches an order's current status, used to follow up in-flight
// orders after a stream reconnect.
func (e *Executor) QueryOrder(ctx context.Context, venue book.Venue, symbol, orderID string) Result {
	driver, ok := e.drivers[venue]
	if !ok {
		return Result{Ok: false, Msg: fmt.Sprintf("unknown venue %q", venue)}
	}
	return driver.Query(ctx, symbol, orderID)
}

// LotStep exposes a venue's quantity step so callers can pre-check rounding.
func (e *Executor) LotStep(venue book.Venue, symbol string) (float64, bool) {
	driver, ok := e.drivers[venue]
	if !ok {
		return 0, false
	}
	filters, ok := driver.Filters(symbol)
	if !ok {
		return 0, false
	}
	return filters.StepSize, true
}
