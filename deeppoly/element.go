package deeppoly

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Element is a layer's abstract DeepPoly record: symbolic lower/upper
// linear expressions over a reference layer's K neurons, plus the
// concrete lb/ub snapshots obtained by concretizing them.
type Element struct {
	Layer int
	Ref   int
	K     int

	// SymLb/SymUb are N x K: row i gives the coefficients of the affine
	// expression bounding neuron i from below/above in terms of the
	// reference layer's neurons.
	SymLb, SymUb *mat.Dense
	// SymLbBias/SymUbBias are length N.
	SymLbBias, SymUbBias []float64

	Lb, Ub []float64
}

// FatalError reports an unsupported layer type or an invariant violation
// encountered while propagating (§4.2 Failure semantics): these abort the
// verification run.
type FatalError struct {
	Layer int
	Msg   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("deeppoly: layer %d: %s", e.Layer, e.Msg)
}
