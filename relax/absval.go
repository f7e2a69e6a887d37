package relax

import "math"

// Abs evaluates the point-wise absolute value.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// AbsEnvelope returns the DeepPoly envelope for an AbsoluteValue source
// with interval [l,u]: fixed phase reduces to +-x; unfixed is the box
// 0 <= y <= max(-l,u), represented here as a lower envelope y>=0 and an
// upper envelope y<=max(-l,u) (slope 0, i.e. independent of x).
func AbsEnvelope(l, u float64) Affine1 {
	neg, pos := fixedPhase(l, u)
	if pos {
		return Affine1{LowerSlope: 1, UpperSlope: 1}
	}
	if neg {
		return Affine1{LowerSlope: -1, UpperSlope: -1}
	}
	bound := math.Max(-l, u)
	return Affine1{UpperBias: bound}
}
