// Package relax holds the per-activation point-evaluation and
// bound-envelope formulas used by both the DeepPoly symbolic engine and
// the LP-relaxation builder, so the two subsystems stay consistent about
// what "fixed phase" and "unfixed" mean for each activation. It mirrors
// the teacher's satellite math packages (chans, nxx1, knadapt): small
// files, pure functions and tiny value types, no graph awareness.
package relax

// Affine1 is an affine lower/upper envelope over a single source x with
// known interval [l,u]: LowerSlope*x + LowerBias <= y <= UpperSlope*x + UpperBias.
type Affine1 struct {
	LowerSlope, LowerBias float64
	UpperSlope, UpperBias float64
}

// AffineN is an affine lower/upper envelope over N ordered sources.
type AffineN struct {
	LowerCoef []float64
	LowerBias float64
	UpperCoef []float64
	UpperBias float64
}

// fixedPhase returns true if the interval [l,u] entirely decides the sign
// of x, i.e. the activation does not need a relaxation at all.
func fixedPhase(l, u float64) (negative, positive bool) {
	return u <= 0, l >= 0
}
