package exec

import (
	"context"

	"cex-dex-arb-bot/internal/book"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// OrderRequest is the venue-neutral order form. Price 0 means market;
// QuoteAmount places a market order by notional instead of base quantity.
// Maker controls which way the limit price rounds to the venue tick.
type OrderRequest struct {
	Venue       book.Venue
	Symbol      string
	Side        Side
	Qty         float64
	Price       float64
	QuoteAmount float64
	Maker       bool
	ReduceOnly  bool
	ClientID    string
}

// CancelRequest addresses an order on either venue. Symbol is required for
// the CEX; OrderIDs is the DEX batch form.
type CancelRequest struct {
	Venue    book.Venue
	Symbol   string
	OrderID  string
	ClientID string
	OrderIDs []string
}

// Ack is the normalized acknowledgment carried inside a Result.
type Ack struct {
	OrderID   string
	ClientID  string
	Status    OrderStatus
	FilledQty float64
	AvgPrice  float64
}

// Result is the uniform venue response. Retriable distinguishes transport
// faults from venue rejects; FilterReject flags stale precision filters.
type Result struct {
	Ok           bool
	Retriable    bool
	FilterReject bool
	Msg          string
	Data         Ack
}

// Filters is a venue's tick/step precision for one symbol.
type Filters struct {
	TickSize float64
	StepSize float64
}

// Driver is one venue's raw order interface. Drivers translate wire shapes
// and classify failures; they never retry.
type Driver interface {
	Place(ctx context.Context, req OrderRequest) Result
	Cancel(ctx context.Context, req CancelRequest) Result
	Query(ctx context.Context, symbol, orderID string) Result
	Filters(symbol string) (Filters, bool)
	RefreshFilters(ctx context.Context) error
}
