package tighten

import "fmt"

// InfeasibleError reports that the LP oracle proved the relaxation
// infeasible for some neuron during a tightening run -- a distinct
// outcome, not a bug (§7 taxonomy item 2).
type InfeasibleError struct {
	Layer, Neuron int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("tighten: infeasible at layer %d neuron %d", e.Layer, e.Neuron)
}

// FatalError reports an oracle status outside {optimal, infeasible,
// cutoff, timeout} (§7 taxonomy item 3).
type FatalError struct {
	Layer, Neuron int
	Status        string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("tighten: layer %d neuron %d: unexpected solver status %s", e.Layer, e.Neuron, e.Status)
}
