package exec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/hl/exchange"
	"cex-dex-arb-bot/internal/hl/rest"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// marketSlippage bounds the aggressive IOC price used to emulate a market
// order on the DEX.
const marketSlippage = 0.02

// PriceSource supplies a reference price for DEX market emulation.
type PriceSource func(side book.Side) (float64, bool)

// DEXDriver adapts the Hyperliquid exchange client to the Driver interface.
// Market orders are emulated as aggressive IOC limits, the venue's native
// idiom.
type DEXDriver struct {
	ex     *exchange.Client
	rest   *rest.Client
	user   string
	coin   string
	asset  int
	step   float64
	tick   float64
	priceF PriceSource
}

func NewDEXDriver(ex *exchange.Client, restClient *rest.Client, user, coin string, meta rest.AssetMeta, price PriceSource) *DEXDriver {
	szDecimals := meta.SzDecimals
	// Perp prices carry at most 6 decimals, shrinking as size precision grows.
	pxDecimals := 6 - szDecimals
	if pxDecimals < 0 {
		pxDecimals = 0
	}
	return &DEXDriver{
		ex:     ex,
		rest:   restClient,
		user:   user,
		coin:   coin,
		asset:  meta.Index,
		step:   math.Pow(10, -float64(szDecimals)),
		tick:   math.Pow(10, -float64(pxDecimals)),
		priceF: price,
	}
}

func (d *DEXDriver) Place(ctx context.Context, req OrderRequest) Result {
	if req.QuoteAmount > 0 {
		return Result{Ok: false, Retriable: false, Msg: "quote-denominated orders are not supported on the dex"}
	}
	price := req.Price
	tif := exchange.TifGtc
	if price <= 0 {
		ref, ok := d.marketReference(req.Side)
		if !ok {
			return Result{Ok: false, Retriable: false, Msg: "no reference price for market order"}
		}
		price = RoundPrice(ref, d.tick, req.Side, false)
		tif = exchange.TifIoc
	}
	wire, err := exchange.LimitOrderWire(d.asset, req.Side == SideBuy, req.Qty, price, req.ReduceOnly, tif, cloidFromClientID(req.ClientID))
	if err != nil {
		return Result{Ok: false, Retriable: false, Msg: err.Error()}
	}
	ack, err := d.ex.PlaceOrder(ctx, wire)
	if err != nil {
		return resultFromDEXError(err)
	}
	out := Result{Ok: true, Data: Ack{
		OrderID:  strconv.FormatInt(ack.OID, 10),
		ClientID: req.ClientID,
		Status:   StatusNew,
	}}
	if ack.Status == "filled" {
		out.Data.Status = StatusFilled
		out.Data.FilledQty = ack.TotalSize
		out.Data.AvgPrice = ack.AvgPx
	}
	return out
}

// marketReference picks the far-touch price and pads it with slippage so the
// IOC limit behaves like a market order without chasing into a void.
func (d *DEXDriver) marketReference(side Side) (float64, bool) {
	if d.priceF == nil {
		return 0, false
	}
	if side == SideBuy {
		ask, ok := d.priceF(book.SideAsk)
		return ask * (1 + marketSlippage), ok
	}
	bid, ok := d.priceF(book.SideBid)
	return bid * (1 - marketSlippage), ok
}

func (d *DEXDriver) Cancel(ctx context.Context, req CancelRequest) Result {
	ids := req.OrderIDs
	if len(ids) == 0 && req.OrderID != "" {
		ids = []string{req.OrderID}
	}
	if len(ids) == 0 {
		return Result{Ok: false, Retriable: false, Msg: "order ids are required for dex cancel"}
	}
	oids := make([]int64, 0, len(ids))
	for _, raw := range ids {
		oid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Result{Ok: false, Retriable: false, Msg: "bad order id: " + raw}
		}
		oids = append(oids, oid)
	}
	if err := d.ex.CancelOrders(ctx, d.asset, oids); err != nil {
		return resultFromDEXError(err)
	}
	return Result{Ok: true, Data: Ack{OrderID: ids[0], Status: StatusCanceled}}
}

func (d *DEXDriver) Query(ctx context.Context, _ string, orderID string) Result {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return Result{Ok: false, Retriable: false, Msg: "bad order id: " + orderID}
	}
	status, err := d.rest.OrderStatus(ctx, d.user, oid)
	if err != nil {
		return resultFromDEXError(err)
	}
	ack := Ack{OrderID: orderID, FilledQty: status.CumFilled}
	switch strings.ToLower(status.Status) {
	case "filled":
		ack.Status = StatusFilled
	case "canceled", "cancelled", "margincanceled":
		ack.Status = StatusCanceled
	case "rejected":
		ack.Status = StatusRejected
	default:
		if status.CumFilled > 0 {
			ack.Status = StatusPartiallyFilled
		} else {
			ack.Status = StatusNew
		}
	}
	return Result{Ok: true, Data: ack}
}

func (d *DEXDriver) Filters(string) (Filters, bool) {
	return Filters{TickSize: d.tick, StepSize: d.step}, true
}

func (d *DEXDriver) RefreshFilters(ctx context.Context) error {
	metas, err := d.rest.Meta(ctx)
	if err != nil {
		return err
	}
	meta, ok := metas[d.coin]
	if !ok {
		return fmt.Errorf("coin %q missing from meta universe", d.coin)
	}
	d.asset = meta.Index
	d.step = math.Pow(10, -float64(meta.SzDecimals))
	pxDecimals := 6 - meta.SzDecimals
	if pxDecimals < 0 {
		pxDecimals = 0
	}
	d.tick = math.Pow(10, -float64(pxDecimals))
	return nil
}

// cloidFromClientID maps the strategy's deterministic client id onto the
// venue's 128-bit hex cloid format. Same id in, same cloid out, so restarts
// can re-derive it.
func cloidFromClientID(id string) string {
	if id == "" {
		return ""
	}
	return hexutil.Encode(crypto.Keccak256([]byte(id))[:16])
}

func resultFromDEXError(err error) Result {
	if errors.Is(err, exchange.ErrRejected) {
		return Result{Ok: false, Retriable: false, Msg: err.Error()}
	}
	return Result{Ok: false, Retriable: true, Msg: err.Error()}
}
