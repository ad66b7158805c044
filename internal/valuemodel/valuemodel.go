package valuemodel

import "math"

// #region constants
// Shape parameters of the effective reach curve. Chosen so that
// EffectiveReach(R, R) is 1.
const (
	A = 4.08577
	B = 3.08577
)

// #endregion constants

// #region effective-reach
// EffectiveReach returns the fraction of a campaign's value earned after
// winning x of its R target impressions. The curve is a rescaled arctangent:
// flat near zero, steep around the target, flattening again beyond it
// towards an asymptote of about 1.38. R <= 0 yields 0.
func EffectiveReach(x, r int) float64 {
	if r <= 0 {
		return 0
	}
	return rho(float64(x), float64(r))
}

func rho(x, r float64) float64 {
	return (2 / A) * (math.Atan(A*x/r-B) - math.Atan(-B))
}

// MarginalEffectiveReach is the derivative of EffectiveReach with respect to
// x, the value of one more impression. R <= 0 yields 0.
func MarginalEffectiveReach(x, r int) float64 {
	if r <= 0 {
		return 0
	}
	u := A*float64(x)/float64(r) - B
	return 2 / (float64(r) * (1 + u*u))
}

// #endregion effective-reach

// #region per-impression
// AverageValuePerImpression spreads the value still to be earned evenly over
// the remaining impressions: (ρ(R,R) − ρ(x,R)) × budget / remaining.
// Returns 0 when remaining <= 0 or R <= 0.
func AverageValuePerImpression(x, r int, budget float64, remaining int) float64 {
	if r <= 0 || remaining <= 0 {
		return 0
	}
	return (EffectiveReach(r, r) - EffectiveReach(x, r)) * budget / float64(remaining)
}

// Profit approximates what a campaign has earned so far: the effective reach
// share of its budget minus what has been spent.
func Profit(x, r int, budget, cost float64) float64 {
	return EffectiveReach(x, r)*budget - cost
}

// #endregion per-impression
