package relax

// LeakyReLU evaluates the point-wise leaky rectifier with slope alpha.
func LeakyReLU(alpha, x float64) float64 {
	if x < 0 {
		return alpha * x
	}
	return x
}

// LeakyReLUEnvelopeParam returns the DeepPoly envelope for a LeakyReLU(alpha)
// source with interval [l,u]. lambda in [0,1] shifts the lower envelope
// between y=alpha*x (lambda=0) and y=x (lambda=1).
func LeakyReLUEnvelopeParam(alpha, l, u, lambda float64) Affine1 {
	neg, pos := fixedPhase(l, u)
	if pos {
		return Affine1{LowerSlope: 1, UpperSlope: 1}
	}
	if neg {
		return Affine1{LowerSlope: alpha, UpperSlope: alpha}
	}
	weight := (u - alpha*l) / (u - l)
	bias := (alpha - 1) * u * l / (u - l)
	lowerSlope := alpha + lambda*(1-alpha)
	return Affine1{
		LowerSlope: lowerSlope,
		UpperSlope: weight,
		UpperBias:  bias,
	}
}

// LeakyReLUEnvelope is the base (unparameterised) envelope, choosing the
// lower face by the same area heuristic as ReLU.
func LeakyReLUEnvelope(alpha, l, u float64) Affine1 {
	lambda := 0.0
	if u+l >= 0 {
		lambda = 1
	}
	return LeakyReLUEnvelopeParam(alpha, l, u, lambda)
}
