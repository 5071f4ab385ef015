package strategy

import (
	"context"
	"time"

	"cex-dex-arb-bot/internal/book"
	"cex-dex-arb-bot/internal/exec"
)

// State is the single strategy state. Leg1 is always the DEX maker leg,
// Leg2 the CEX taker hedge.
type State string

const (
	StateOpenCondition     State = "OpenCondition"
	StateOpenLeg1Waiting   State = "OpenLeg1Waiting"
	StateOpenLeg1Canceling State = "OpenLeg1Canceling"
	StateOpenLeg2Waiting   State = "OpenLeg2Waiting"
	StateOpenLeg2Chasing   State = "OpenLeg2Chasing"

	StateCloseCondition     State = "CloseCondition"
	StateCloseLeg1Waiting   State = "CloseLeg1Waiting"
	StateCloseLeg1Canceling State = "CloseLeg1Canceling"
	StateCloseLeg2Waiting   State = "CloseLeg2Waiting"
	StateCloseLeg2Chasing   State = "CloseLeg2Chasing"
)

// IsCondition reports whether the machine is idle between cycles.
func (s State) IsCondition() bool {
	return s == StateOpenCondition || s == StateCloseCondition
}

func (s State) isOpenCycle() bool {
	switch s {
	case StateOpenCondition, StateOpenLeg1Waiting, StateOpenLeg1Canceling, StateOpenLeg2Waiting, StateOpenLeg2Chasing:
		return true
	}
	return false
}

func (s State) isLeg1() bool {
	switch s {
	case StateOpenLeg1Waiting, StateOpenLeg1Canceling, StateCloseLeg1Waiting, StateCloseLeg1Canceling:
		return true
	}
	return false
}

func (s State) isLeg2() bool {
	switch s {
	case StateOpenLeg2Waiting, StateOpenLeg2Chasing, StateCloseLeg2Waiting, StateCloseLeg2Chasing:
		return true
	}
	return false
}

// governingCondition is the Condition state a cycle falls back to on abort.
func governingCondition(s State) State {
	if s.isOpenCycle() {
		return StateOpenCondition
	}
	return StateCloseCondition
}

// EventType is a normalized terminal user-stream event kind.
type EventType string

const (
	EventAllTraded             EventType = "ALL_TRADED"
	EventPartialFilledCanceled EventType = "PARTIAL_FILLED_CANCELED"
	EventAllCanceled           EventType = "ALL_CANCELED"
)

// OrderEvent is a terminal event delivered by the user-stream adapter.
// FilledQty is the order's cumulative fill, never an increment.
type OrderEvent struct {
	Venue     book.Venue
	Type      EventType
	OrderID   string
	ClientID  string
	FilledQty float64
}

// Executor is the slice of the trade executor the machine drives.
type Executor interface {
	PlaceOrder(ctx context.Context, req exec.OrderRequest) exec.Result
	CancelOrder(ctx context.Context, req exec.CancelRequest) exec.Result
	QueryOrder(ctx context.Context, venue book.Venue, symbol, orderID string) exec.Result
	LotStep(venue book.Venue, symbol string) (float64, bool)
}

// Alerter pushes operator alerts; nil-safe via the noop implementation.
type Alerter interface {
	Notify(ctx context.Context, msg string)
}

type noopAlerter struct{}

func (noopAlerter) Notify(context.Context, string) {}

type Config struct {
	CEXSymbol          string
	DEXSymbol          string
	CycleQty           float64
	MinSpreadThreshold float64
	OrderTimeout       time.Duration
	CancelTimeout      time.Duration
	CancelRetries      int
	ChaseLimitAttempts int
}

// orderSlot tracks the single in-flight order of the current leg.
type orderSlot struct {
	venue         book.Venue
	symbol        string
	side          exec.Side
	orderID       string
	clientID      string
	price         float64
	qtyTotal      float64
	placedAt      time.Time
	cancelSentAt  time.Time
	cancelRetries int
}
