package relax

import "testing"

func TestMax(t *testing.T) {
	if got := Max([]float64{1, 5, 3}); got != 5 {
		t.Errorf("Max = %g, want 5", got)
	}
	if got := Max([]float64{-2}); got != -2 {
		t.Errorf("Max single = %g, want -2", got)
	}
}

func TestMaxEnvelopeSelectsLargestLowerBound(t *testing.T) {
	lowers := []float64{-1, 2, 0}
	uppers := []float64{3, 4, 1}
	env := MaxEnvelope(lowers, uppers)
	want := []float64{0, 1, 0}
	for i, c := range want {
		if env.LowerCoef[i] != c {
			t.Errorf("LowerCoef[%d] = %g, want %g", i, env.LowerCoef[i], c)
		}
	}
	if env.UpperBias != 4 {
		t.Errorf("UpperBias = %g, want 4 (max of uppers)", env.UpperBias)
	}
}

func TestMaxEnvelopeSoundAtCorners(t *testing.T) {
	lowers := []float64{-1, 0.5}
	uppers := []float64{2, 3}
	env := MaxEnvelope(lowers, uppers)
	corners := [][2]float64{{-1, 0.5}, {-1, 3}, {2, 0.5}, {2, 3}}
	for _, c := range corners {
		z := Max(c[:])
		lo := env.LowerCoef[0]*c[0] + env.LowerCoef[1]*c[1] + env.LowerBias
		up := env.UpperCoef[0]*c[0] + env.UpperCoef[1]*c[1] + env.UpperBias
		if lo > z+1e-9 {
			t.Errorf("lower unsound at %v: lo=%g z=%g", c, lo, z)
		}
		if up < z-1e-9 {
			t.Errorf("upper unsound at %v: up=%g z=%g", c, up, z)
		}
	}
}
