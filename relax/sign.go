package relax

// Sign evaluates the point-wise sign function, with Sign(0)=1 to match the
// l>=0 fixed-phase rule (y=1 includes the boundary).
func Sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// SignEnvelopeParam returns the DeepPoly envelope for a Sign source with
// interval [l,u] (l<0<=u unfixed case). lam1 steers the upper slanted
// face (through (l,-1)) and lam2 steers the lower slanted face (through
// (u,1)); both default to 1 in the base (unparameterised) algorithm,
// reproducing the envelope in the per-activation table exactly. When u is
// 0 the lower face is the constant y>=-1.
func SignEnvelopeParam(l, u, lam1, lam2 float64) Affine1 {
	_, pos := fixedPhase(l, u)
	if pos {
		return Affine1{LowerBias: 1, UpperBias: 1}
	}
	if u < 0 {
		return Affine1{LowerBias: -1, UpperBias: -1}
	}
	lowerSlope := 0.0
	if u > 0 {
		lowerSlope = lam2 * 2 / u
	}
	return Affine1{
		LowerSlope: lowerSlope,
		LowerBias:  -1,
		UpperSlope: lam1 * 2 / (-l),
		UpperBias:  1,
	}
}

// SignEnvelope is the base (unparameterised, lam1=lam2=1) envelope.
func SignEnvelope(l, u float64) Affine1 {
	_, pos := fixedPhase(l, u)
	if pos {
		return Affine1{LowerBias: 1, UpperBias: 1}
	}
	if u < 0 {
		return Affine1{LowerBias: -1, UpperBias: -1}
	}
	return SignEnvelopeParam(l, u, 1, 1)
}
