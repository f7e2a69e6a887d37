package graph

import (
	"fmt"

	"github.com/openverify/nlrcore/relax"
)

// ComputeAssignment forward-evaluates the graph given values for every
// neuron of the input layer, per §4.1. Activation functions are applied
// point-wise; Softmax normalizes across its layer's per-neuron source
// group; Bilinear multiplies its two sources; Max takes the max of its
// sources. Eliminated sources contribute their fixed value regardless of
// layer type.
func (g *Graph) ComputeAssignment(inputLayer int, inputValues []float64) (map[NeuronID]float64, error) {
	in := g.mustLayer(inputLayer)
	if in.Typ != Input {
		return nil, fmt.Errorf("graph: layer %d is not an Input layer", inputLayer)
	}
	if len(inputValues) != in.N {
		return nil, fmt.Errorf("graph: expected %d input values, got %d", in.N, len(inputValues))
	}

	values := make(map[NeuronID]float64)
	for i, v := range inputValues {
		values[NeuronID{Layer: inputLayer, Neuron: i}] = v
	}

	for _, idx := range g.TopologicalOrder() {
		if idx == inputLayer {
			continue
		}
		l := g.layers[idx]
		switch l.Typ {
		case WeightedSum:
			g.evalWeightedSum(l, values)
		case Softmax:
			g.evalSoftmax(l, values)
		case Bilinear:
			g.evalBilinear(l, values)
		case Max:
			g.evalMax(l, values)
		case ReLU, LeakyReLU, AbsoluteValue, Sign, Round, Sigmoid:
			g.evalPointwise(l, values)
		default:
			panic(&StructuralError{Layer: idx, Msg: "computeAssignment: unsupported layer type"})
		}
	}
	return values, nil
}

func (g *Graph) neuronValue(values map[NeuronID]float64, layer, neuron int) float64 {
	l := g.layers[layer]
	if l.IsEliminated(neuron) {
		return l.Eliminated[neuron]
	}
	return values[NeuronID{Layer: layer, Neuron: neuron}]
}

func (g *Graph) evalWeightedSum(l *Layer, values map[NeuronID]float64) {
	for j := 0; j < l.N; j++ {
		sum := 0.0
		if l.Bias != nil {
			sum = l.Bias[j]
		}
		for _, src := range l.Predecessors {
			w := l.Weights[src]
			sl := g.layers[src]
			for i := 0; i < sl.N; i++ {
				sum += w.At(i, j) * g.neuronValue(values, src, i)
			}
		}
		values[NeuronID{Layer: l.Idx, Neuron: j}] = sum
	}
}

func (g *Graph) evalPointwise(l *Layer, values map[NeuronID]float64) {
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		src := l.Sources[i][0]
		x := g.neuronValue(values, src.Layer, src.Neuron)
		var y float64
		switch l.Typ {
		case ReLU:
			y = relax.ReLU(x)
		case LeakyReLU:
			y = relax.LeakyReLU(l.Alpha, x)
		case AbsoluteValue:
			y = relax.Abs(x)
		case Sign:
			y = relax.Sign(x)
		case Round:
			y = relax.Round(x)
		case Sigmoid:
			y = relax.Sigmoid(x)
		}
		values[NeuronID{Layer: l.Idx, Neuron: i}] = y
	}
}

func (g *Graph) evalSoftmax(l *Layer, values map[NeuronID]float64) {
	logits := make([]float64, l.N)
	for i := 0; i < l.N; i++ {
		src := l.Sources[i][0]
		logits[i] = g.neuronValue(values, src.Layer, src.Neuron)
	}
	probs := relax.Softmax(logits)
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		values[NeuronID{Layer: l.Idx, Neuron: i}] = probs[i]
	}
}

func (g *Graph) evalBilinear(l *Layer, values map[NeuronID]float64) {
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		srcs := l.Sources[i]
		x := g.neuronValue(values, srcs[0].Layer, srcs[0].Neuron)
		y := g.neuronValue(values, srcs[1].Layer, srcs[1].Neuron)
		values[NeuronID{Layer: l.Idx, Neuron: i}] = relax.Bilinear(x, y)
	}
}

func (g *Graph) evalMax(l *Layer, values map[NeuronID]float64) {
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		srcs := l.Sources[i]
		xs := make([]float64, len(srcs))
		for j, s := range srcs {
			xs[j] = g.neuronValue(values, s.Layer, s.Neuron)
		}
		values[NeuronID{Layer: l.Idx, Neuron: i}] = relax.Max(xs)
	}
}
