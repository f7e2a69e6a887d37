package graph

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// compareEps is the default tolerance used when deciding whether a new
// lb/ub is a genuine tightening (ε for comparisons, §6).
const compareEps = 1e-9

// SampleProvider lazily yields simulation-sample heuristics for one neuron.
// A nil SampleProvider means "no samples available" for every neuron.
type SampleProvider func(neuron int) []float64

// Layer is a fixed-size vector of neurons sharing a type and connectivity
// pattern, per §3.
type Layer struct {
	Idx  int
	Typ  LayerType
	N    int
	CompareEps float64

	// Predecessors holds the sorted, strictly-smaller indices of layers
	// this layer depends on.
	Predecessors []int

	// Weights maps predecessor layer index to its N_src x N weight matrix.
	// Only populated for WeightedSum layers.
	Weights map[int]*mat.Dense
	Bias    []float64

	// Sources holds, for activation layers, the per-neuron list of
	// (predecessor layer, predecessor neuron) terms.
	Sources [][]ActivationSource

	Lb, Ub []float64

	// VarOfNeuron maps neuron index to external variable id, or -1 if the
	// neuron has been eliminated.
	VarOfNeuron []int

	// Eliminated maps neuron index to its fixed constant value.
	Eliminated map[int]float64

	// Alpha is the LeakyReLU slope; only meaningful when AlphaSet.
	Alpha    float64
	AlphaSet bool

	Samples SampleProvider
}

func newLayer(idx int, typ LayerType, n int) *Layer {
	vo := make([]int, n)
	lb := make([]float64, n)
	ub := make([]float64, n)
	for i := range vo {
		vo[i] = -1
		lb[i] = math.Inf(-1)
		ub[i] = math.Inf(1)
	}
	return &Layer{
		Idx:        idx,
		Typ:        typ,
		N:          n,
		CompareEps: compareEps,
		Weights:    make(map[int]*mat.Dense),
		Sources:    make([][]ActivationSource, n),
		Lb:         lb,
		Ub:         ub,
		VarOfNeuron: vo,
		Eliminated: make(map[int]float64),
	}
}

// IsEliminated reports whether neuron i has been fixed to a constant.
func (l *Layer) IsEliminated(i int) bool {
	_, ok := l.Eliminated[i]
	return ok
}

// VariableCount returns the number of non-eliminated (LP-visible) neurons,
// distinct from the declared width N.
func (l *Layer) VariableCount() int {
	return l.N - len(l.Eliminated)
}

// SetWeight sets entry (i,j) of the weight matrix coming from predecessor
// src: row i of the source layer contributes to column j of this layer.
// Panics if this is not a WeightedSum layer or if src is not a registered
// predecessor.
func (l *Layer) SetWeight(src, i, j int, w float64) {
	m, ok := l.Weights[src]
	if !ok {
		panic(&StructuralError{Layer: l.Idx, Msg: "setWeight: unknown predecessor layer"})
	}
	m.Set(i, j, w)
}

// SetBias sets the bias of neuron i (WeightedSum layers only).
func (l *Layer) SetBias(i int, b float64) {
	if l.Bias == nil {
		l.Bias = make([]float64, l.N)
	}
	l.Bias[i] = b
}

// AddActivationSource appends one term to neuron dst's source list.
func (l *Layer) AddActivationSource(srcLayer, srcNeuron, dst int) {
	l.Sources[dst] = append(l.Sources[dst], ActivationSource{Layer: srcLayer, Neuron: srcNeuron})
}

// SetLb refines the lower bound of neuron i. Non-tightening updates
// (newLb <= current lb + eps) are ignored, per the monotone-refinement
// invariant.
func (l *Layer) SetLb(i int, v float64) {
	if v <= l.Lb[i]+l.CompareEps {
		return
	}
	l.Lb[i] = v
}

// SetUb refines the upper bound of neuron i symmetrically to SetLb.
func (l *Layer) SetUb(i int, v float64) {
	if v >= l.Ub[i]-l.CompareEps {
		return
	}
	l.Ub[i] = v
}

// Eliminate fixes neuron i to constant value, removing it from the
// variable surface.
func (l *Layer) Eliminate(i int, value float64) {
	l.Eliminated[i] = value
	l.VarOfNeuron[i] = -1
	l.Lb[i] = value
	l.Ub[i] = value
}
