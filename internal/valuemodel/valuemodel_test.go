package valuemodel

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
)

// #region effective-reach-tests
func TestEffectiveReachEndpoints(t *testing.T) {
	for _, r := range []int{1, 10, 500, 1000, 25000} {
		if got := EffectiveReach(0, r); math.Abs(got) > 1e-12 {
			t.Errorf("R=%d: expected ρ(0)=0, got %g", r, got)
		}
		if got := EffectiveReach(r, r); math.Abs(got-1) > 1e-3 {
			t.Errorf("R=%d: expected ρ(R)≈1, got %g", r, got)
		}
	}
}

// Golden value pinned for reach=1000, x=500.
func TestEffectiveReachGolden(t *testing.T) {
	got := EffectiveReach(500, 1000)
	if math.Abs(got-0.2208) > 1e-3 {
		t.Fatalf("expected ρ(500,1000)≈0.2208, got %.6f", got)
	}
}

func TestEffectiveReachMonotone(t *testing.T) {
	for _, r := range []int{50, 1000} {
		prev := EffectiveReach(0, r)
		for x := 1; x <= 3*r; x++ {
			cur := EffectiveReach(x, r)
			if cur <= prev {
				t.Fatalf("R=%d: not strictly increasing at x=%d (%g <= %g)", r, x, cur, prev)
			}
			prev = cur
		}
	}
}

func TestEffectiveReachBeyondTarget(t *testing.T) {
	// Past the target the curve keeps rising towards its asymptote.
	over := EffectiveReach(2000, 1000)
	if over <= 1 || over >= 1.39 {
		t.Fatalf("expected 1 < ρ(2R) < 1.39, got %g", over)
	}
	if MarginalEffectiveReach(2000, 1000) <= 0 {
		t.Fatal("marginal value beyond target should stay positive")
	}
}

// #endregion effective-reach-tests

// #region marginal-tests
func TestMarginalMatchesNumericalDerivative(t *testing.T) {
	settings := &fd.Settings{Formula: fd.Central, Step: 1e-4}
	for _, r := range []int{10, 100, 1000, 5000} {
		for _, frac := range []float64{0, 0.1, 0.25, 0.5, 0.75, 1, 1.5} {
			x := int(frac * float64(r))
			rf := float64(r)
			numeric := fd.Derivative(func(v float64) float64 { return rho(v, rf) }, float64(x), settings)
			analytic := MarginalEffectiveReach(x, r)
			if math.Abs(numeric-analytic) > 1e-7 {
				t.Errorf("R=%d x=%d: analytic %g, numeric %g", r, x, analytic, numeric)
			}
		}
	}
}

func TestMarginalMatchesForwardDifference(t *testing.T) {
	const eps = 1e-3
	r := 1000
	for x := 0; x <= 2000; x += 125 {
		forward := (rho(float64(x)+eps, float64(r)) - rho(float64(x), float64(r))) / eps
		if diff := math.Abs(MarginalEffectiveReach(x, r) - forward); diff > 1e-6 {
			t.Errorf("x=%d: forward difference off by %g", x, diff)
		}
	}
}

func TestMarginalPeaksBeforeTarget(t *testing.T) {
	r := 1000
	low := MarginalEffectiveReach(0, r)
	peakX := int(B / A * float64(r))
	peak := MarginalEffectiveReach(peakX, r)
	high := MarginalEffectiveReach(2*r, r)
	if !(peak > low && peak > high) {
		t.Fatalf("expected interior peak: ρ'(0)=%g ρ'(%d)=%g ρ'(2R)=%g", low, peakX, peak, high)
	}
}

// #endregion marginal-tests

// #region degenerate-tests
func TestDegenerateReach(t *testing.T) {
	for _, r := range []int{0, -5} {
		if got := EffectiveReach(10, r); got != 0 {
			t.Errorf("EffectiveReach(10,%d): expected 0, got %g", r, got)
		}
		if got := MarginalEffectiveReach(10, r); got != 0 {
			t.Errorf("MarginalEffectiveReach(10,%d): expected 0, got %g", r, got)
		}
		if got := AverageValuePerImpression(10, r, 100, 5); got != 0 {
			t.Errorf("AverageValuePerImpression(R=%d): expected 0, got %g", r, got)
		}
	}
}

func TestAverageValuePerImpression(t *testing.T) {
	if got := AverageValuePerImpression(100, 1000, 500, 0); got != 0 {
		t.Errorf("no remaining impressions should yield 0, got %g", got)
	}

	got := AverageValuePerImpression(200, 1000, 500, 800)
	want := (EffectiveReach(1000, 1000) - EffectiveReach(200, 1000)) * 500 / 800
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %g, got %g", want, got)
	}
	if got <= 0 {
		t.Errorf("expected positive value, got %g", got)
	}
}

// Per-campaign reward between two days: 100 → 150 impressions, cost 10 → 25.
func TestProfitDeltaScenario(t *testing.T) {
	const r, budget = 1000, 500.0
	valueGained := EffectiveReach(150, r)*budget - EffectiveReach(100, r)*budget
	reward := Profit(150, r, budget, 25) - Profit(100, r, budget, 10)

	if math.Abs(reward-(valueGained-15)) > 1e-9 {
		t.Fatalf("expected reward = value_gained - 15 (%g), got %g", valueGained-15, reward)
	}
	if math.Abs(reward-(-8.44)) > 0.05 {
		t.Fatalf("expected reward ≈ -8.44, got %g", reward)
	}
}

// #endregion degenerate-tests
