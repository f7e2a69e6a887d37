package relax

import "math"

// Sigmoid evaluates the point-wise logistic function.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// sigmoidPrime is the derivative of Sigmoid at x, expressed via sigma(x).
func sigmoidPrime(x float64) float64 {
	s := Sigmoid(x)
	return s * (1 - s)
}

// SigmoidEnvelope returns the DeepPoly envelope for a Sigmoid source with
// interval [l,u], per the table: degenerate intervals collapse to the
// constant sigma(u); otherwise the envelope uses the secant slope lambda
// and the tighter of the two endpoint tangent slopes lambda'.
func SigmoidEnvelope(l, u float64) Affine1 {
	if l == u {
		v := Sigmoid(u)
		return Affine1{LowerBias: v, UpperBias: v}
	}
	sl, su := Sigmoid(l), Sigmoid(u)
	lambda := (su - sl) / (u - l)
	lambdaPrime := math.Min(sigmoidPrime(l), sigmoidPrime(u))

	var env Affine1
	if l > 0 {
		env.LowerSlope = lambda
		env.LowerBias = sl - lambda*l
	} else {
		env.LowerSlope = lambdaPrime
		env.LowerBias = sl - lambdaPrime*l
	}
	if u <= 0 {
		env.UpperSlope = lambda
		env.UpperBias = su - lambda*u
	} else {
		env.UpperSlope = lambdaPrime
		env.UpperBias = su - lambdaPrime*u
	}
	return env
}
