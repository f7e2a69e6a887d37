package relax

// Bilinear evaluates the point-wise product of two sources.
func Bilinear(x, y float64) float64 {
	return x * y
}

// mcCormickLower returns the two classical McCormick under-estimators of
// z=x*y over the box [xl,xu]x[yl,yu], each as an AffineN over [x,y]:
//
//	z >= yl*x + xl*y - xl*yl
//	z >= yu*x + xu*y - xu*yu
func mcCormickLower(xl, xu, yl, yu float64) [2]AffineN {
	return [2]AffineN{
		{LowerCoef: []float64{yl, xl}, LowerBias: -xl * yl},
		{LowerCoef: []float64{yu, xu}, LowerBias: -xu * yu},
	}
}

// mcCormickUpper returns the two classical McCormick over-estimators:
//
//	z <= yl*x + xu*y - xu*yl
//	z <= yu*x + xl*y - xl*yu
func mcCormickUpper(xl, xu, yl, yu float64) [2]AffineN {
	return [2]AffineN{
		{UpperCoef: []float64{yl, xu}, UpperBias: -xu * yl},
		{UpperCoef: []float64{yu, xl}, UpperBias: -xl * yu},
	}
}

// BilinearMcCormick returns all four McCormick inequalities for the LP
// builder: two independent lower-supporting planes and two independent
// upper-supporting planes, each to be added as its own LP constraint.
func BilinearMcCormick(xl, xu, yl, yu float64) (lowers, uppers [2]AffineN) {
	return mcCormickLower(xl, xu, yl, yu), mcCormickUpper(xl, xu, yl, yu)
}

// BilinearEnvelope collapses the McCormick family into the single affine
// lower/upper pair the DeepPoly engine needs, selecting within the family
// via lambda in [0,1] (the "two coefficients" of the parameterised variant
// are the lambda used here for the lower envelope and, by the caller, a
// second independent lambda for the upper envelope).
func BilinearEnvelope(xl, xu, yl, yu, lambdaLo, lambdaUp float64) AffineN {
	lo := mcCormickLower(xl, xu, yl, yu)
	up := mcCormickUpper(xl, xu, yl, yu)

	coefLo := []float64{
		lambdaLo*lo[0].LowerCoef[0] + (1-lambdaLo)*lo[1].LowerCoef[0],
		lambdaLo*lo[0].LowerCoef[1] + (1-lambdaLo)*lo[1].LowerCoef[1],
	}
	biasLo := lambdaLo*lo[0].LowerBias + (1-lambdaLo)*lo[1].LowerBias

	coefUp := []float64{
		lambdaUp*up[0].UpperCoef[0] + (1-lambdaUp)*up[1].UpperCoef[0],
		lambdaUp*up[0].UpperCoef[1] + (1-lambdaUp)*up[1].UpperCoef[1],
	}
	biasUp := lambdaUp*up[0].UpperBias + (1-lambdaUp)*up[1].UpperBias

	return AffineN{LowerCoef: coefLo, LowerBias: biasLo, UpperCoef: coefUp, UpperBias: biasUp}
}
