package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/exec"
	"cex-dex-arb-bot/internal/metrics"

	"go.uber.org/zap"
)

// qtyEps is the fill-matching tolerance; posEps decides whether a position
// still counts as held after a close.
const (
	qtyEps = 1e-6
	posEps = 1e-5
)

// Machine drives the two-leg open/close protocol. A single mutex serializes
// every event source (signal ticks, user-stream events, timer ticks) and is
// held across the synchronous executor calls, so an order is always
// registered in the slot before its fill event can be observed.
type Machine struct {
	log     *zap.Logger
	cfg     Config
	board   *book.PriceBoard
	exec    Executor
	metrics *metrics.Metrics
	alerts  Alerter
	now     func() time.Time

	mu           sync.Mutex
	state        State
	slot         *orderSlot
	heldQty      float64
	leg1Filled   float64
	leg2Filled   float64
	chaseAttempt int
	cycleSeq     uint64
	lastCum      map[string]float64
}

func NewMachine(cfg Config, board *book.PriceBoard, executor Executor, log *zap.Logger, m *metrics.Metrics, alerts Alerter) *Machine {
	if m == nil {
		m = metrics.NewNoop()
	}
	if alerts == nil {
		alerts = noopAlerter{}
	}
	return &Machine{
		log:     log,
		cfg:     cfg,
		board:   board,
		exec:    executor,
		metrics: m,
		alerts:  alerts,
		now:     time.Now,
		state:   StateOpenCondition,
		lastCum: make(map[string]float64),
	}
}

// SetClock replaces the machine's time source. Tests only.
func (m *Machine) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// SetInitial installs the reconciler's verdict before any event flows.
func (m *Machine) SetInitial(state State, heldQty float64) {
	m.mu.Lock()
	m.state = state
	m.heldQty = heldQty
	m.metrics.HeldQty.Set(heldQty)
	m.mu.Unlock()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) HeldQty() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldQty
}

// SignalCheck is the capability published to the market-data adapter; it is
// invoked on every CEX book tick and from the timer in Condition states.
func (m *Machine) SignalCheck(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signalCheckLocked(ctx)
}

func (m *Machine) signalCheckLocked(ctx context.Context) {
	if !m.state.IsCondition() || m.slot != nil {
		return
	}
	openEdge, closeEdge, ok := m.board.NetSpread()
	if !ok {
		return
	}
	m.metrics.OpenEdge.Set(openEdge)
	m.metrics.CloseEdge.Set(closeEdge)
	switch {
	case m.state == StateOpenCondition && openEdge > m.cfg.MinSpreadThreshold:
		m.metrics.SignalsFired.Inc()
		m.log.Info("open signal", zap.Float64("open_edge", openEdge), zap.Float64("threshold", m.cfg.MinSpreadThreshold))
		m.beginCycleLocked(ctx, false)
	case m.state == StateCloseCondition && closeEdge > m.cfg.MinSpreadThreshold && m.heldQty > posEps:
		m.metrics.SignalsFired.Inc()
		m.log.Info("close signal", zap.Float64("close_edge", closeEdge), zap.Float64("threshold", m.cfg.MinSpreadThreshold))
		m.beginCycleLocked(ctx, true)
	}
}

// beginCycleLocked places Leg1: the DEX maker order pinned at the current
// best bid (open) or ask (close). The price is never improved mid-life.
func (m *Machine) beginCycleLocked(ctx context.Context, closing bool) {
	side := exec.SideBuy
	bookSide := book.SideBid
	qty := m.cfg.CycleQty
	if closing {
		side = exec.SideSell
		bookSide = book.SideAsk
		qty = m.heldQty
	}
	price, ok := m.board.Price(book.VenueDEX, bookSide)
	if !ok {
		m.log.Warn("no dex quote at signal, skipping cycle")
		return
	}
	if step, ok := m.exec.LotStep(book.VenueDEX, m.cfg.DEXSymbol); ok {
		qty = exec.FloorToStep(qty, step)
	}
	if qty <= qtyEps {
		m.log.Warn("cycle quantity rounds to zero, aborting", zap.Float64("raw_qty", m.cfg.CycleQty))
		return
	}

	m.cycleSeq++
	clientID := m.clientID("l1", 0)
	res := m.exec.PlaceOrder(ctx, exec.OrderRequest{
		Venue:      book.VenueDEX,
		Symbol:     m.cfg.DEXSymbol,
		Side:       side,
		Qty:        qty,
		Price:      price,
		Maker:      true,
		ReduceOnly: closing,
		ClientID:   clientID,
	})
	if !res.Ok {
		m.log.Warn("leg1 placement failed", zap.String("msg", res.Msg), zap.Bool("retriable", res.Retriable))
		return
	}
	m.leg1Filled = 0
	m.leg2Filled = 0
	m.chaseAttempt = 0
	m.lastCum = map[string]float64{res.Data.OrderID: 0}
	m.slot = &orderSlot{
		venue:    book.VenueDEX,
		symbol:   m.cfg.DEXSymbol,
		side:     side,
		orderID:  res.Data.OrderID,
		clientID: clientID,
		price:    price,
		qtyTotal: qty,
		placedAt: m.now(),
	}
	if closing {
		m.setState(StateCloseLeg1Waiting)
	} else {
		m.setState(StateOpenLeg1Waiting)
	}
}

// OnOrderEvent processes a normalized terminal user-stream event. Events for
// orders outside the slot are dropped: a replayed terminal event finds its
// order id already cleared and becomes a no-op.
func (m *Machine) OnOrderEvent(ctx context.Context, ev OrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil || !m.slotMatches(ev) {
		m.log.Debug("event for unknown order dropped",
			zap.String("order_id", ev.OrderID),
			zap.String("type", string(ev.Type)),
		)
		return
	}
	cum := ev.FilledQty
	inc := cum - m.lastCum[m.slot.orderID]
	if inc < 0 {
		inc = 0
	}
	m.lastCum[m.slot.orderID] = cum

	m.log.Info("order event",
		zap.String("state", string(m.state)),
		zap.String("type", string(ev.Type)),
		zap.Float64("cum_qty", cum),
		zap.Float64("inc_qty", inc),
	)

	switch {
	case m.state.isLeg1():
		m.onLeg1EventLocked(ctx, ev, cum)
	case m.state.isLeg2():
		m.onLeg2EventLocked(ctx, ev, inc)
	default:
		// A terminal event while idle violates invariant 3.
		m.inconsistencyLocked(ctx, fmt.Sprintf("terminal event %s for order %s in state %s", ev.Type, ev.OrderID, m.state))
	}
}

func (m *Machine) onLeg1EventLocked(ctx context.Context, ev OrderEvent, cum float64) {
	canceling := m.state == StateOpenLeg1Canceling || m.state == StateCloseLeg1Canceling
	switch ev.Type {
	case EventAllTraded:
		if canceling {
			// Cancel lost the race; the fill stands and the late cancel ack
			// will find the order gone.
			m.metrics.CancelRaces.Inc()
		}
		m.leg1Filled = cum
		m.slot = nil
		m.startLeg2Locked(ctx)
	case EventPartialFilledCanceled:
		m.leg1Filled = cum
		m.slot = nil
		if cum > qtyEps {
			m.startLeg2Locked(ctx)
		} else {
			m.abortCycleLocked()
		}
	case EventAllCanceled:
		m.slot = nil
		m.abortCycleLocked()
	}
}

func (m *Machine) onLeg2EventLocked(ctx context.Context, ev OrderEvent, inc float64) {
	m.leg2Filled += inc
	remaining := m.leg1Filled - m.leg2Filled
	m.slot = nil

	switch ev.Type {
	case EventAllTraded:
		if remaining <= qtyEps {
			m.completeCycleLocked()
			return
		}
		// The order filled in full but covered less than Leg1 (lot rounding
		// dust); keep chasing the remainder.
		m.chaseLocked(ctx, remaining)
	case EventPartialFilledCanceled, EventAllCanceled:
		if remaining <= qtyEps {
			m.completeCycleLocked()
			return
		}
		m.chaseLocked(ctx, remaining)
	}
}

// startLeg2Locked opens the CEX taker hedge for exactly the Leg1 fill.
func (m *Machine) startLeg2Locked(ctx context.Context) {
	m.leg2Filled = 0
	m.chaseAttempt = 0
	if m.state.isOpenCycle() {
		m.setState(StateOpenLeg2Waiting)
	} else {
		m.setState(StateCloseLeg2Waiting)
	}
	m.placeLeg2Locked(ctx, m.leg1Filled)
}

func (m *Machine) chaseLocked(ctx context.Context, remaining float64) {
	m.chaseAttempt++
	m.metrics.ChaseAttempts.Inc()
	if m.state.isOpenCycle() {
		m.setState(StateOpenLeg2Chasing)
	} else {
		m.setState(StateCloseLeg2Chasing)
	}
	m.placeLeg2Locked(ctx, remaining)
}

// placeLeg2Locked posts the hedge. The first ChaseLimitAttempts placements
// are limits refreshed to the opposite best price; after that the remainder
// goes to market.
func (m *Machine) placeLeg2Locked(ctx context.Context, qty float64) {
	closing := !m.state.isOpenCycle()
	side := exec.SideSell
	bookSide := book.SideBid
	if closing {
		side = exec.SideBuy
		bookSide = book.SideAsk
	}
	if step, ok := m.exec.LotStep(book.VenueCEX, m.cfg.CEXSymbol); ok {
		qty = exec.FloorToStep(qty, step)
	}
	if qty <= qtyEps {
		// Remainder is sub-lot dust; the hedge is as complete as it can get.
		m.log.Warn("leg2 remainder below lot size, completing cycle", zap.Float64("remainder", qty))
		m.completeCycleLocked()
		return
	}

	var price float64
	if m.chaseAttempt < m.cfg.ChaseLimitAttempts {
		if p, ok := m.board.Price(book.VenueCEX, bookSide); ok {
			price = p
		} else {
			m.log.Warn("no cex quote for hedge limit, going to market")
		}
	}

	clientID := m.clientID("l2", m.chaseAttempt)
	res := m.exec.PlaceOrder(ctx, exec.OrderRequest{
		Venue:      book.VenueCEX,
		Symbol:     m.cfg.CEXSymbol,
		Side:       side,
		Qty:        qty,
		Price:      price,
		Maker:      false,
		ReduceOnly: closing,
		ClientID:   clientID,
	})
	if !res.Ok {
		if res.Retriable {
			// The slot stays empty; the timer tick re-attempts the hedge.
			m.log.Warn("leg2 placement failed, will retry", zap.String("msg", res.Msg))
			return
		}
		m.inconsistencyLocked(ctx, fmt.Sprintf("leg2 reject with %.8f unhedged: %s", qty, res.Msg))
		return
	}
	if _, seen := m.lastCum[res.Data.OrderID]; !seen {
		m.lastCum[res.Data.OrderID] = 0
	}
	m.slot = &orderSlot{
		venue:    book.VenueCEX,
		symbol:   m.cfg.CEXSymbol,
		side:     side,
		orderID:  res.Data.OrderID,
		clientID: clientID,
		price:    price,
		qtyTotal: qty,
		placedAt: m.now(),
	}
}

func (m *Machine) completeCycleLocked() {
	if m.state.isOpenCycle() {
		m.heldQty += m.leg1Filled
		m.metrics.CyclesOpened.Inc()
		m.log.Info("open cycle complete", zap.Float64("held_qty", m.heldQty))
		m.resetCycleLocked()
		m.setState(StateCloseCondition)
		return
	}
	m.heldQty -= m.leg1Filled
	if m.heldQty < posEps {
		m.heldQty = 0
	}
	m.metrics.CyclesClosed.Inc()
	m.log.Info("close cycle complete", zap.Float64("held_qty", m.heldQty))
	m.resetCycleLocked()
	if m.heldQty > posEps {
		// Partial close left inventory behind; keep scanning for exits.
		m.setState(StateCloseCondition)
	} else {
		m.setState(StateOpenCondition)
	}
}

// abortCycleLocked returns to the governing Condition state after a cycle
// that never reached Leg2.
func (m *Machine) abortCycleLocked() {
	m.resetCycleLocked()
	m.setState(governingCondition(m.state))
}

// inconsistencyLocked handles states the protocol cannot recover from on its
// own: loud log, operator alert, best-effort cancel, quiesce.
func (m *Machine) inconsistencyLocked(ctx context.Context, reason string) {
	m.metrics.StateInconsistency.Inc()
	m.log.Error("state inconsistency, aborting cycle", zap.String("reason", reason), zap.String("state", string(m.state)))
	if m.slot != nil {
		m.cancelSlotLocked(ctx)
	}
	m.resetCycleLocked()
	m.setState(governingCondition(m.state))
	m.alerts.Notify(ctx, "arb-bot inconsistency: "+reason)
}

func (m *Machine) resetCycleLocked() {
	m.slot = nil
	m.leg1Filled = 0
	m.leg2Filled = 0
	m.chaseAttempt = 0
	m.lastCum = make(map[string]float64)
	m.metrics.HeldQty.Set(m.heldQty)
}

// OnTimerTick runs at 1 Hz: order timeouts, cancel-ack timeouts, hedge
// re-attempts, and signal re-evaluation while idle.
func (m *Machine) OnTimerTick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	if m.slot != nil {
		slot := m.slot
		switch {
		case !slot.cancelSentAt.IsZero():
			if now.Sub(slot.cancelSentAt) <= m.cfg.CancelTimeout {
				return
			}
			if slot.cancelRetries < m.cfg.CancelRetries {
				slot.cancelRetries++
				slot.cancelSentAt = now
				m.log.Warn("cancel ack overdue, retrying",
					zap.String("order_id", slot.orderID),
					zap.Int("retry", slot.cancelRetries),
				)
				m.cancelSlotLocked(ctx)
				return
			}
			m.inconsistencyLocked(ctx, fmt.Sprintf("cancel of order %s unacknowledged after %d retries", slot.orderID, slot.cancelRetries))
		case now.Sub(slot.placedAt) > m.cfg.OrderTimeout:
			m.log.Warn("order timeout, canceling",
				zap.String("state", string(m.state)),
				zap.String("order_id", slot.orderID),
			)
			if m.state == StateOpenLeg1Waiting {
				m.setState(StateOpenLeg1Canceling)
			} else if m.state == StateCloseLeg1Waiting {
				m.setState(StateCloseLeg1Canceling)
			}
			slot.cancelSentAt = now
			m.cancelSlotLocked(ctx)
		}
		return
	}

	if m.state.isLeg2() {
		// A retriable Leg2 failure left the hedge pending.
		m.placeLeg2Locked(ctx, m.leg1Filled-m.leg2Filled)
		return
	}
	m.signalCheckLocked(ctx)
}

func (m *Machine) cancelSlotLocked(ctx context.Context) {
	slot := m.slot
	req := exec.CancelRequest{Venue: slot.venue, OrderID: slot.orderID}
	if slot.venue == book.VenueCEX {
		req.Symbol = slot.symbol
	} else {
		req.OrderIDs = []string{slot.orderID}
	}
	res := m.exec.CancelOrder(ctx, req)
	if !res.Ok && !res.Retriable {
		// The order is already terminal on the venue; the user stream event
		// settles the slot.
		m.log.Info("cancel refused, awaiting terminal event", zap.String("order_id", slot.orderID), zap.String("msg", res.Msg))
	}
	if slot.cancelSentAt.IsZero() {
		slot.cancelSentAt = m.now()
	}
}

// Resync queries the in-flight order after a user-stream reconnect and
// replays its terminal state, if any, as a synthetic event.
func (m *Machine) Resync(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil {
		return
	}
	slot := m.slot
	res := m.exec.QueryOrder(ctx, slot.venue, slot.symbol, slot.orderID)
	if !res.Ok {
		m.log.Warn("order follow-up failed", zap.String("order_id", slot.orderID), zap.String("msg", res.Msg))
		return
	}
	ev := OrderEvent{Venue: slot.venue, OrderID: slot.orderID, ClientID: slot.clientID, FilledQty: res.Data.FilledQty}
	switch res.Data.Status {
	case exec.StatusFilled:
		ev.Type = EventAllTraded
	case exec.StatusCanceled, exec.StatusRejected:
		if res.Data.FilledQty > qtyEps {
			ev.Type = EventPartialFilledCanceled
		} else {
			ev.Type = EventAllCanceled
		}
	default:
		return
	}
	m.log.Info("order follow-up resolved terminal state", zap.String("order_id", slot.orderID), zap.String("type", string(ev.Type)))
	cum := ev.FilledQty
	inc := cum - m.lastCum[slot.orderID]
	if inc < 0 {
		inc = 0
	}
	m.lastCum[slot.orderID] = cum
	if m.state.isLeg1() {
		m.onLeg1EventLocked(ctx, ev, cum)
	} else if m.state.isLeg2() {
		m.onLeg2EventLocked(ctx, ev, inc)
	}
}

// CancelInflight is the shutdown path: best-effort cancel of any live order.
func (m *Machine) CancelInflight(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil {
		return
	}
	m.log.Info("canceling in-flight order for shutdown", zap.String("order_id", m.slot.orderID))
	m.cancelSlotLocked(ctx)
}

func (m *Machine) slotMatches(ev OrderEvent) bool {
	if ev.OrderID != "" && ev.OrderID == m.slot.orderID {
		return true
	}
	return ev.ClientID != "" && ev.ClientID == m.slot.clientID
}

func (m *Machine) setState(next State) {
	if next == m.state {
		return
	}
	m.log.Info("state transition", zap.String("from", string(m.state)), zap.String("to", string(next)))
	m.state = next
}

func (m *Machine) clientID(leg string, attempt int) string {
	return fmt.Sprintf("arb-%d-%s-%d", m.cycleSeq, leg, attempt)
}
