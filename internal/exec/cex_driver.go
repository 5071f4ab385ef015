package exec

import (
	"context"
	"strconv"

	"cex-dex-arb-bot/internal/cex"
)

// CEXDriver adapts the Binance futures client to the Driver interface.
type CEXDriver struct {
	client *cex.Client
}

func NewCEXDriver(client *cex.Client) *CEXDriver {
	return &CEXDriver{client: client}
}

func (d *CEXDriver) Place(ctx context.Context, req OrderRequest) Result {
	var ack *cex.Ack
	var err error
	switch {
	case req.Price > 0:
		ack, err = d.client.PlaceLimit(ctx, req.Symbol, string(req.Side), formatFloat(req.Qty), formatFloat(req.Price), req.ClientID)
	case req.QuoteAmount > 0:
		// Futures has no quote-denominated market order; convert at mark.
		mark, merr := d.client.MarkPrice(ctx, req.Symbol)
		if merr != nil {
			return resultFromCEXError(merr)
		}
		qty := req.QuoteAmount / mark
		if filters, ok := d.Filters(req.Symbol); ok {
			qty = FloorToStep(qty, filters.StepSize)
		}
		if qty <= 0 {
			return Result{Ok: false, Retriable: false, Msg: "quote amount rounds to zero quantity"}
		}
		ack, err = d.client.PlaceMarket(ctx, req.Symbol, string(req.Side), formatFloat(qty), req.ClientID)
	default:
		ack, err = d.client.PlaceMarket(ctx, req.Symbol, string(req.Side), formatFloat(req.Qty), req.ClientID)
	}
	if err != nil {
		return resultFromCEXError(err)
	}
	return Result{Ok: true, Data: ackFromCEX(ack)}
}

func (d *CEXDriver) Cancel(ctx context.Context, req CancelRequest) Result {
	if req.Symbol == "" {
		return Result{Ok: false, Retriable: false, Msg: "symbol is required for cex cancel"}
	}
	oid, err := strconv.ParseInt(req.OrderID, 10, 64)
	if err != nil {
		return Result{Ok: false, Retriable: false, Msg: "bad order id: " + req.OrderID}
	}
	ack, err := d.client.Cancel(ctx, req.Symbol, oid)
	if err != nil {
		return resultFromCEXError(err)
	}
	return Result{Ok: true, Data: ackFromCEX(ack)}
}

func (d *CEXDriver) Query(ctx context.Context, symbol, orderID string) Result {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return Result{Ok: false, Retriable: false, Msg: "bad order id: " + orderID}
	}
	ack, err := d.client.QueryOrder(ctx, symbol, oid)
	if err != nil {
		return resultFromCEXError(err)
	}
	return Result{Ok: true, Data: ackFromCEX(ack)}
}

func (d *CEXDriver) Filters(symbol string) (Filters, bool) {
	f, ok := d.client.SymbolFilters(symbol)
	if !ok {
		return Filters{}, false
	}
	return Filters{TickSize: f.TickSize, StepSize: f.StepSize}, true
}

func (d *CEXDriver) RefreshFilters(ctx context.Context) error {
	return d.client.RefreshFilters(ctx)
}

func ackFromCEX(ack *cex.Ack) Ack {
	return Ack{
		OrderID:   strconv.FormatInt(ack.OrderID, 10),
		ClientID:  ack.ClientOrderID,
		Status:    OrderStatus(ack.Status),
		FilledQty: ack.ExecutedQty,
		AvgPrice:  ack.AvgPrice,
	}
}

func resultFromCEXError(err error) Result {
	return Result{
		Ok:           false,
		Retriable:    cex.IsRetriable(err),
		FilterReject: cex.IsFilterReject(err),
		Msg:          err.Error(),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
