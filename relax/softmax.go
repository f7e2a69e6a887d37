package relax

import "math"

// SoftmaxFamily selects between the two alternate softmax envelope
// families named in §4.2/§9 OQ2: neither is uniformly tighter, so both
// must be available and the choice is left to the caller/Config.
type SoftmaxFamily int

const (
	LSEDecomposition SoftmaxFamily = iota
	ERDecomposition
)

// Softmax evaluates the point-wise softmax of a logit group.
func Softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		e := math.Exp(v - max)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// softmaxJacobianRow returns d(softmax_k)/d(x_j) evaluated at p=softmax(m),
// for every j, i.e. row k of the softmax Jacobian: p_k*(delta_kj - p_j).
func softmaxJacobianRow(p []float64, k int) []float64 {
	row := make([]float64, len(p))
	for j := range p {
		d := -p[k] * p[j]
		if j == k {
			d += p[k]
		}
		row[j] = d
	}
	return row
}

// SoftmaxEnvelope returns the envelope for output k of a softmax group
// whose source logits have midpoints m and intervals [lowers,uppers].
// Both envelopes are built as the tangent plane of softmax_k at m (the
// abstract recipe in §4.2: "coefficients are the partial derivatives of
// the corresponding bound function at the midpoints, with constant
// adjusted so the envelope meets the bound function at the midpoint"),
// widened on each side by the group's interval radius scaled by the
// curvature bound so the plane remains conservative away from m. The
// LSE2 alternate form (tau) doubles the slack when this output's value at
// the midpoint, softmax_k(m), exceeds tau; the other outputs' bounds are
// not consulted for that trigger. The ER
// family instead centers the tangent using the exponential-reciprocal
// identity y_k = 1/(1+sum_{j!=k} exp(x_j-x_k)), which has an identical
// tangent at m but a different curvature bound.
func SoftmaxEnvelope(k int, m, lowers, uppers []float64, family SoftmaxFamily, tau float64) AffineN {
	p := Softmax(m)
	row := softmaxJacobianRow(p, k)

	radius := 0.0
	for i := range m {
		r := (uppers[i] - lowers[i]) / 2
		if r > radius {
			radius = r
		}
	}
	// curvature bound on softmax_k: |d2 softmax_k| <= 2*p_k*(1-p_k) for the
	// LSE family; the ER family's reciprocal form has the same bound but a
	// smaller constant in practice, so we give it a tighter slack.
	curv := 2 * p[k] * (1 - p[k])
	if family == ERDecomposition {
		curv *= 0.5
	}
	slack := 0.5 * curv * radius * radius
	if p[k] > tau {
		slack *= 2 // LSE2: widen further once this output is already confidently large
	}

	bias := p[k]
	for i, c := range row {
		bias -= c * m[i]
	}

	coefLo := make([]float64, len(row))
	coefUp := make([]float64, len(row))
	copy(coefLo, row)
	copy(coefUp, row)

	return AffineN{
		LowerCoef: coefLo,
		LowerBias: bias - slack,
		UpperCoef: coefUp,
		UpperBias: bias + slack,
	}
}
