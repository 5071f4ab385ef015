package account

import (
	"context"

	"cex-dex-arb-bot/internal/hl/rest"
)

// DEXAdapter exposes the Hyperliquid info client as a DEXSource.
type DEXAdapter struct {
	rest *rest.Client
	user string
}

func NewDEXAdapter(restClient *rest.Client, user string) *DEXAdapter {
	return &DEXAdapter{rest: restClient, user: user}
}

func (a *DEXAdapter) PerpPosition(ctx context.Context, coin string) (float64, error) {
	state, err := a.rest.UserState(ctx, a.user)
	if err != nil {
		return 0, err
	}
	for _, pos := range state.Positions {
		if pos.Coin == coin {
			return pos.Size, nil
		}
	}
	return 0, nil
}

func (a *DEXAdapter) Withdrawable(ctx context.Context) (float64, error) {
	state, err := a.rest.UserState(ctx, a.user)
	if err != nil {
		return 0, err
	}
	return state.Withdrawable, nil
}
