package exec

import "math"

// roundEps absorbs float noise before snapping to a grid, so 0.0099999999
// counts as 0.01 when the step is 0.001.
const roundEps = 1e-6

// FloorToStep snaps v down to the nearest multiple of step.
func FloorToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	n := math.Floor(v/step + roundEps)
	return snap(n*step, step)
}

// CeilToStep snaps v up to the nearest multiple of step.
func CeilToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	n := math.Ceil(v/step - roundEps)
	return snap(n*step, step)
}

// RoundPrice rounds a limit price to the venue tick. Maker legs round toward
// the passive side so the order rests inside the book and never crosses;
// taker legs round toward the aggressive side so the order is sure to cross.
// Both collapse to: buy-maker and sell-taker round down, the mirror pair up.
func RoundPrice(price, tick float64, side Side, maker bool) float64 {
	down := (maker && side == SideBuy) || (!maker && side == SideSell)
	if down {
		return FloorToStep(price, tick)
	}
	return CeilToStep(price, tick)
}

// snap re-quantizes a product of n*step to kill accumulated binary error
// (0.001*7 = 0.007000000000000001).
func snap(v, step float64) float64 {
	decimals := 0
	for s := step; s < 1 && decimals < 12; s *= 10 {
		decimals++
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
