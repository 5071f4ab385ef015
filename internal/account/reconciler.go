package account

import (
	"context"
	"errors"
	"fmt"
	"math"

	"cex-dex-arb-bot/internal/strategy"

	"go.uber.org/zap"
)

// ErrPositionMismatch is returned when the two venues disagree in a way the
// strategy cannot own: one-sided, same-sided, or size-mismatched inventory.
// The process must exit non-zero and leave reconciliation to the operator.
var ErrPositionMismatch = errors.New("position mismatch")

// CEXSource is the slice of the futures client the reconciler reads.
type CEXSource interface {
	PositionAmt(ctx context.Context, symbol string) (float64, error)
	AvailableUSDT(ctx context.Context) (float64, error)
}

// DEXSource is the slice of the perps venue the reconciler reads.
type DEXSource interface {
	PerpPosition(ctx context.Context, coin string) (float64, error)
	Withdrawable(ctx context.Context) (float64, error)
}

// Reconciler inspects both venues once at boot and picks the strategy's
// initial state. Only two configurations are startable: both flat, or a
// DEX long hedged by an equal CEX short.
type Reconciler struct {
	cex       CEXSource
	dex       DEXSource
	cexSymbol string
	dexSymbol string
	lotTol    float64
	log       *zap.Logger
}

func NewReconciler(cexSrc CEXSource, dexSrc DEXSource, cexSymbol, dexSymbol string, lotTol float64, log *zap.Logger) *Reconciler {
	if lotTol <= 0 {
		lotTol = 1e-6
	}
	return &Reconciler{
		cex:       cexSrc,
		dex:       dexSrc,
		cexSymbol: cexSymbol,
		dexSymbol: dexSymbol,
		lotTol:    lotTol,
		log:       log,
	}
}

// Reconcile returns the initial state and held quantity.
func (r *Reconciler) Reconcile(ctx context.Context) (strategy.State, float64, error) {
	cexUSDT, err := r.cex.AvailableUSDT(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("cex balance: %w", err)
	}
	dexUSDC, err := r.dex.Withdrawable(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("dex balance: %w", err)
	}
	cexPos, err := r.cex.PositionAmt(ctx, r.cexSymbol)
	if err != nil {
		return "", 0, fmt.Errorf("cex position: %w", err)
	}
	dexPos, err := r.dex.PerpPosition(ctx, r.dexSymbol)
	if err != nil {
		return "", 0, fmt.Errorf("dex position: %w", err)
	}
	r.log.Info("reconciled venues",
		zap.Float64("cex_usdt", cexUSDT),
		zap.Float64("dex_usdc", dexUSDC),
		zap.Float64("cex_position", cexPos),
		zap.Float64("dex_position", dexPos),
	)

	cexFlat := math.Abs(cexPos) <= r.lotTol
	dexFlat := math.Abs(dexPos) <= r.lotTol
	switch {
	case cexFlat && dexFlat:
		return strategy.StateOpenCondition, 0, nil
	case dexPos > 0 && cexPos < 0 && math.Abs(dexPos+cexPos) <= r.lotTol:
		// Hedged pair within one lot: resume scanning for the exit.
		return strategy.StateCloseCondition, dexPos, nil
	default:
		return "", 0, fmt.Errorf("%w: cex=%.8f dex=%.8f", ErrPositionMismatch, cexPos, dexPos)
	}
}
