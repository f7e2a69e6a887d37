// Package graph is the layer-graph data model: a directed, strictly
// index-ordered multigraph of layers ranging over affine transforms and
// the activation families in the per-activation relaxation table. It is
// the leaf subsystem everything else in this module depends on.
package graph

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// NeuronID globally identifies a neuron by (layer, neuron-within-layer).
type NeuronID struct {
	Layer, Neuron int
}

// Graph is a DAG of Layers, built once by a loader and then mutated only
// via bound tightening and neuron elimination (§3 Lifecycle).
type Graph struct {
	layers      map[int]*Layer
	order       []int // ascending layer indices, maintained sorted
	successors  map[int][]int
	neuronToVar map[NeuronID]int
	varToNeuron map[int]NeuronID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		layers:      make(map[int]*Layer),
		successors:  make(map[int][]int),
		neuronToVar: make(map[NeuronID]int),
		varToNeuron: make(map[int]NeuronID),
	}
}

// AddLayer registers a new layer. idx must be unique and non-negative.
func (g *Graph) AddLayer(idx int, typ LayerType, size int) *Layer {
	if idx < 0 {
		panic(&StructuralError{Layer: idx, Msg: "negative layer index"})
	}
	if _, exists := g.layers[idx]; exists {
		panic(&StructuralError{Layer: idx, Msg: "duplicate layer index"})
	}
	l := newLayer(idx, typ, size)
	g.layers[idx] = l
	g.order = append(g.order, idx)
	sort.Ints(g.order)
	return l
}

// GetLayer returns the layer at idx, or nil if absent.
func (g *Graph) GetLayer(idx int) *Layer {
	return g.layers[idx]
}

// GetNumberOfLayers returns the number of registered layers.
func (g *Graph) GetNumberOfLayers() int {
	return len(g.layers)
}

// TopologicalOrder returns layer indices in ascending (and therefore
// dependency-respecting) order.
func (g *Graph) TopologicalOrder() []int {
	out := make([]int, len(g.order))
	copy(out, g.order)
	return out
}

// Successors returns the layers that declare idx as a predecessor, i.e.
// the transpose of the predecessor edges.
func (g *Graph) Successors(idx int) []int {
	return g.successors[idx]
}

// AddDependency declares that dst reads from src. src must have a strictly
// smaller index than dst. For WeightedSum layers this also allocates the
// (possibly still zero) weight matrix for src.
func (g *Graph) AddDependency(src, dst int) {
	sl, dl := g.mustLayer(src), g.mustLayer(dst)
	if src >= dst {
		panic(&StructuralError{Layer: dst, Msg: "predecessor index must be strictly smaller"})
	}
	for _, p := range dl.Predecessors {
		if p == src {
			return // idempotent
		}
	}
	dl.Predecessors = append(dl.Predecessors, src)
	sort.Ints(dl.Predecessors)
	g.successors[src] = append(g.successors[src], dst)

	if dl.Typ == WeightedSum {
		if _, ok := dl.Weights[src]; !ok {
			dl.Weights[src] = mat.NewDense(sl.N, dl.N, nil)
		}
	}
}

// SetWeight sets entry (i,j) of dst's weight matrix coming from src.
func (g *Graph) SetWeight(dst, src, i, j int, w float64) {
	g.mustLayer(dst).SetWeight(src, i, j, w)
}

// SetBias sets the bias of neuron i in layer idx.
func (g *Graph) SetBias(idx, i int, b float64) {
	g.mustLayer(idx).SetBias(i, b)
}

// AddActivationSource appends a source term to neuron dstNeuron of layer
// dst, referencing neuron srcNeuron of layer srcLayer.
func (g *Graph) AddActivationSource(dst, srcLayer, srcNeuron, dstNeuron int) {
	sl := g.mustLayer(srcLayer) // validate existence
	dl := g.mustLayer(dst)
	if dstNeuron < 0 || dstNeuron >= dl.N {
		panic(&StructuralError{Layer: dst, Msg: "activation source: destination neuron out of range"})
	}
	if srcNeuron < 0 || srcNeuron >= sl.N {
		panic(&StructuralError{Layer: dst, Msg: "activation source: source neuron out of range"})
	}
	dl.AddActivationSource(srcLayer, srcNeuron, dstNeuron)
}

// SetNeuronVariable binds neuron (layer,neuron) to external variable id v.
func (g *Graph) SetNeuronVariable(layer, neuron, v int) {
	l := g.mustLayer(layer)
	l.VarOfNeuron[neuron] = v
	id := NeuronID{Layer: layer, Neuron: neuron}
	g.neuronToVar[id] = v
	g.varToNeuron[v] = id
}

// NeuronToVar returns the variable id bound to (layer,neuron), or (-1,false)
// if the neuron is unbound or eliminated.
func (g *Graph) NeuronToVar(layer, neuron int) (int, bool) {
	l := g.layers[layer]
	if l == nil || l.IsEliminated(neuron) {
		return -1, false
	}
	v, ok := g.neuronToVar[NeuronID{Layer: layer, Neuron: neuron}]
	if !ok {
		return -1, false
	}
	return v, true
}

// VarToNeuron inverts NeuronToVar.
func (g *Graph) VarToNeuron(v int) (NeuronID, bool) {
	id, ok := g.varToNeuron[v]
	return id, ok
}

// EliminateNeuron fixes the neuron bound to variable id v to value,
// removing it from the variable surface and folding its constant value
// into place.
func (g *Graph) EliminateNeuron(v int, value float64) {
	id, ok := g.varToNeuron[v]
	if !ok {
		panic(&StructuralError{Msg: "eliminateNeuron: unknown variable id"})
	}
	l := g.mustLayer(id.Layer)
	l.Eliminate(id.Neuron, value)
	delete(g.neuronToVar, id)
	delete(g.varToNeuron, v)
}

// SetLb/SetUb forward to the named layer's monotone-refinement setters.
func (g *Graph) SetLb(layer, neuron int, v float64) { g.mustLayer(layer).SetLb(neuron, v) }
func (g *Graph) SetUb(layer, neuron int, v float64) { g.mustLayer(layer).SetUb(neuron, v) }

func (g *Graph) mustLayer(idx int) *Layer {
	l := g.layers[idx]
	if l == nil {
		panic(&StructuralError{Layer: idx, Msg: "reference to unknown layer"})
	}
	return l
}
