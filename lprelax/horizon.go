// Package lprelax encodes a layer graph's prefix or neighborhood as a
// linear program whose feasible region over-approximates the network's
// input/output relation (§4.3), against an oracle.Oracle.
package lprelax

import "github.com/openverify/nlrcore/graph"

// Horizon is the set of layers whose full defining constraints are
// emitted by Build. Layers referenced by an in-horizon layer's
// constraints but not themselves in Horizon are added as free variables
// bounded by their current interval, on demand.
type Horizon struct {
	layers map[int]bool
}

func (h Horizon) contains(idx int) bool { return h.layers[idx] }

// Forward returns the horizon [0, lastLayer].
func Forward(g *graph.Graph, lastLayer int) Horizon {
	h := Horizon{layers: make(map[int]bool)}
	for _, idx := range g.TopologicalOrder() {
		if idx > lastLayer {
			break
		}
		h.layers[idx] = true
	}
	return h
}

// Backward returns the BFS ball of radius depth around target, walking
// predecessor edges only (the direction the LP relaxation needs to
// express how target's value depends on earlier layers).
func Backward(g *graph.Graph, target, depth int) Horizon {
	h := Horizon{layers: make(map[int]bool)}
	frontier := []int{target}
	h.layers[target] = true
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []int
		for _, idx := range frontier {
			l := g.GetLayer(idx)
			if l == nil {
				continue
			}
			for _, p := range l.Predecessors {
				if !h.layers[p] {
					h.layers[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return h
}
