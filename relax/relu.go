package relax

// ReLU evaluates the point-wise rectifier.
func ReLU(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// ReLUEnvelopeParam returns the DeepPoly envelope for a ReLU source with
// interval [l,u], using lambda in [0,1] as the parameterised lower-envelope
// coefficient: lambda=0 selects y>=0, lambda=1 selects y>=x, and values in
// between are their convex combination. The envelope is sound for any
// lambda in [0,1].
func ReLUEnvelopeParam(l, u, lambda float64) Affine1 {
	neg, pos := fixedPhase(l, u)
	if pos {
		return Affine1{LowerSlope: 1, UpperSlope: 1}
	}
	if neg {
		return Affine1{}
	}
	slope := u / (u - l)
	bias := -u * l / (u - l)
	return Affine1{
		LowerSlope: lambda,
		LowerBias:  0,
		UpperSlope: slope,
		UpperBias:  bias,
	}
}

// ReLUEnvelope returns the base (unparameterised) envelope, picking the
// lower face by the standard area-minimising heuristic: y=x when u>=-l,
// else y=0.
func ReLUEnvelope(l, u float64) Affine1 {
	lambda := 0.0
	if u+l >= 0 {
		lambda = 1
	}
	return ReLUEnvelopeParam(l, u, lambda)
}
