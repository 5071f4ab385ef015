package cex

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client wraps the Binance USDT-margined futures API. Order, query, filter
// and account REST calls pass through a shared limiter so a chase burst
// cannot trip the venue's request weight limits; the listen-key calls of the
// user stream do not.
type Client struct {
	fc      *futures.Client
	log     *zap.Logger
	limiter *rate.Limiter

	mu      sync.RWMutex
	filters map[string]Filters
}

// Filters is the tick/step precision pair for one symbol.
type Filters struct {
	TickSize float64
	StepSize float64
}

// Ack is the normalized order acknowledgment shared by place, cancel and
// query responses.
type Ack struct {
	OrderID       int64
	ClientOrderID string
	Status        string
	ExecutedQty   float64
	AvgPrice      float64
}

func New(apiKey, secretKey string, testnet bool, wsURL string, log *zap.Logger) *Client {
	futures.UseTestnet = testnet
	if wsURL != "" {
		futures.BaseWsMainUrl = wsURL
	}
	return &Client{
		fc:      futures.NewClient(apiKey, secretKey),
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(8), 16),
		filters: make(map[string]Filters),
	}
}

func (c *Client) PlaceLimit(ctx context.Context, symbol, side string, qty, price, clientID string) (*Ack, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	svc := c.fc.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(qty).
		Price(price)
	if clientID != "" {
		svc = svc.NewClientOrderID(clientID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	return ackFromCreate(resp), nil
}

func (c *Client) PlaceMarket(ctx context.Context, symbol, side, qty, clientID string) (*Ack, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	svc := c.fc.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty)
	if clientID != "" {
		svc = svc.NewClientOrderID(clientID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	return ackFromCreate(resp), nil
}

func (c *Client) Cancel(ctx context.Context, symbol string, orderID int64) (*Ack, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.fc.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, err
	}
	return &Ack{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Status:        string(resp.Status),
		ExecutedQty:   parseFloat(resp.ExecutedQuantity),
	}, nil
}

// QueryOrder follows up an order whose terminal event may have been missed
// across a stream reconnect.
func (c *Client) QueryOrder(ctx context.Context, symbol string, orderID int64) (*Ack, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	order, err := c.fc.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, err
	}
	return &Ack{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
		ExecutedQty:   parseFloat(order.ExecutedQuantity),
		AvgPrice:      parseFloat(order.AvgPrice),
	}, nil
}

// SymbolFilters returns the cached tick/step pair for a symbol.
func (c *Client) SymbolFilters(symbol string) (Filters, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.filters[symbol]
	return f, ok
}

// RefreshFilters reloads tick/step precision from exchangeInfo. Called once
// at startup and again after a filter reject.
func (c *Client) RefreshFilters(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	info, err := c.fc.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return err
	}
	filters := make(map[string]Filters, len(info.Symbols))
	for _, sym := range info.Symbols {
		var f Filters
		if pf := sym.PriceFilter(); pf != nil {
			f.TickSize = parseFloat(pf.TickSize)
		}
		if lf := sym.LotSizeFilter(); lf != nil {
			f.StepSize = parseFloat(lf.StepSize)
		}
		if f.TickSize > 0 || f.StepSize > 0 {
			filters[sym.Symbol] = f
		}
	}
	c.mu.Lock()
	c.filters = filters
	c.mu.Unlock()
	return nil
}

// PositionAmt returns the signed position size for a symbol, 0 when flat.
func (c *Client) PositionAmt(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	positions, err := c.fc.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, pos := range positions {
		if pos.Symbol == symbol {
			return parseFloat(pos.PositionAmt), nil
		}
	}
	return 0, nil
}

// MarkPrice returns the current mark price for a symbol, used to convert a
// quote-denominated market order into base quantity.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	premiums, err := c.fc.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range premiums {
		if p.Symbol == symbol {
			return parseFloat(p.MarkPrice), nil
		}
	}
	return 0, errors.New("no premium index entry")
}

// AvailableUSDT returns the free USDT balance on the futures wallet.
func (c *Client) AvailableUSDT(ctx context.Context) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	balances, err := c.fc.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range balances {
		if b.Asset == "USDT" {
			return parseFloat(b.AvailableBalance), nil
		}
	}
	return 0, errors.New("no USDT balance entry")
}

func ackFromCreate(resp *futures.CreateOrderResponse) *Ack {
	return &Ack{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Status:        string(resp.Status),
		ExecutedQty:   parseFloat(resp.ExecutedQuantity),
		AvgPrice:      parseFloat(resp.AvgPrice),
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
