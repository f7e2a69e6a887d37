package deeppoly

import "github.com/openverify/nlrcore/graph"

// Re-exported so callers building against this package's per-layer
// dispatch (and the package's own switch statements) can name a layer
// type without an extra import of graph for this one purpose.
const (
	Input         = graph.Input
	WeightedSum   = graph.WeightedSum
	ReLU          = graph.ReLU
	LeakyReLU     = graph.LeakyReLU
	AbsoluteValue = graph.AbsoluteValue
	Sign          = graph.Sign
	Round         = graph.Round
	Max           = graph.Max
	Sigmoid       = graph.Sigmoid
	Softmax       = graph.Softmax
	Bilinear      = graph.Bilinear
)
