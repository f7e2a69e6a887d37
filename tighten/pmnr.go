package tighten

import (
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/lprelax"
)

// TightenPMNR is "per-multi-neuron reasoning" (glossary): it runs the
// backward-converge tightener once per branch (each an extra conjunction
// of polygonal tightenings describing one hypothetical phase assignment),
// discards branches the oracle proves infeasible, and reports the union
// of the bounds surviving across the remaining branches -- the true
// assignment lies in exactly one branch, so the sound envelope over all
// branches is their union, further intersected with the bounds already
// known before PMNR ran. Grounded on original_source/tests/Test_PMNR.h,
// which exercises exactly this collect-infeasible-branches shape.
func (t *Tightener) TightenPMNR(branches [][]lprelax.Tightening, maxRounds int) error {
	snap := snapshotBounds(t.G)

	type survivor struct {
		lb, ub map[graph.NeuronID]float64
	}
	var survivors []survivor
	allInfeasible := true

	for _, branch := range branches {
		restoreBounds(t.G, snap)
		err := t.tightenBackwardConvergeExtra(maxRounds, branch)
		if _, ok := err.(*InfeasibleError); ok {
			continue
		}
		if err != nil {
			restoreBounds(t.G, snap)
			return err
		}
		allInfeasible = false
		s := survivor{lb: make(map[graph.NeuronID]float64), ub: make(map[graph.NeuronID]float64)}
		for id := range snap {
			l := t.G.GetLayer(id.Layer)
			if l.IsEliminated(id.Neuron) {
				continue
			}
			s.lb[id] = l.Lb[id.Neuron]
			s.ub[id] = l.Ub[id.Neuron]
		}
		survivors = append(survivors, s)
	}

	restoreBounds(t.G, snap)
	if allInfeasible {
		return &InfeasibleError{}
	}

	for id := range snap {
		l := t.G.GetLayer(id.Layer)
		if l.IsEliminated(id.Neuron) {
			continue
		}
		lb, ub := survivors[0].lb[id], survivors[0].ub[id]
		for _, s := range survivors[1:] {
			if s.lb[id] < lb {
				lb = s.lb[id]
			}
			if s.ub[id] > ub {
				ub = s.ub[id]
			}
		}
		t.G.SetLb(id.Layer, id.Neuron, lb)
		t.G.SetUb(id.Layer, id.Neuron, ub)
	}
	return nil
}

type boundSnapshot struct{ lb, ub float64 }

func snapshotBounds(g *graph.Graph) map[graph.NeuronID]boundSnapshot {
	snap := make(map[graph.NeuronID]boundSnapshot)
	for _, idx := range g.TopologicalOrder() {
		l := g.GetLayer(idx)
		for n := 0; n < l.N; n++ {
			if l.IsEliminated(n) {
				continue
			}
			snap[graph.NeuronID{Layer: idx, Neuron: n}] = boundSnapshot{l.Lb[n], l.Ub[n]}
		}
	}
	return snap
}

func restoreBounds(g *graph.Graph, snap map[graph.NeuronID]boundSnapshot) {
	for id, b := range snap {
		l := g.GetLayer(id.Layer)
		l.Lb[id.Neuron] = b.lb
		l.Ub[id.Neuron] = b.ub
	}
}
