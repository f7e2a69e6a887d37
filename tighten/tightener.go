package tighten

import (
	"sync"
	"sync/atomic"

	"github.com/openverify/nlrcore/deeppoly"
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/lprelax"
	"github.com/openverify/nlrcore/oracle"
)

// Tightener is the LP-relaxation bound tightener. One instance is built
// per verification run; it is not safe for concurrent use by more than
// one top-level caller, though internally it runs W workers.
type Tightener struct {
	G       *graph.Graph
	Solvers []oracle.Oracle // len W, one per worker

	// Eps2 is the LP rounding slack applied outward (widening) to every
	// tightened bound before it is compared against the current one.
	Eps2 float64
	// BackwardDepth is the BFS-ball radius D used by backward modes.
	BackwardDepth int
	// Cutoff carries the optional per-neuron cutoff value (§6).
	Cutoff map[graph.NeuronID]float64
	// ParamCoef carries the parameterised-variant coefficients passed
	// through to the LP builder.
	ParamCoef map[int]deeppoly.ParamCoeffs

	// TighterCount, SignChangeCount and CutoffCount are atomic
	// bookkeeping counters (§4.4 step 6).
	TighterCount    int64
	SignChangeCount int64
	CutoffCount     int64

	mu         sync.Mutex // serializes LP build and bound write-back
	solvers    *freeQueue
	pool       *pool
	interrupt  int32
	infeasible atomic.Value // stores *InfeasibleError
}

// New builds a Tightener with W = len(solvers) workers.
func New(g *graph.Graph, solvers []oracle.Oracle) *Tightener {
	return &Tightener{
		G:         g,
		Solvers:   solvers,
		Eps2:      1e-7,
		Cutoff:    make(map[graph.NeuronID]float64),
		ParamCoef: make(map[int]deeppoly.ParamCoeffs),
	}
}

func (t *Tightener) start() {
	t.interrupt = 0
	t.infeasible = atomic.Value{}
	t.solvers = newFreeQueue(t.Solvers)
	t.pool = newPool(len(t.Solvers))
}

func (t *Tightener) finish() error {
	t.pool.close()
	if v := t.infeasible.Load(); v != nil {
		return v.(*InfeasibleError)
	}
	return nil
}

// TightenForward sweeps every non-eliminated neuron of every layer in
// topological order, building each neuron's LP relaxation as the forward
// horizon [0, neuron's own layer].
func (t *Tightener) TightenForward() error {
	t.start()
	for _, idx := range t.G.TopologicalOrder() {
		l := t.G.GetLayer(idx)
		h := lprelax.Forward(t.G, idx)
		t.dispatchLayer(l, h, nil)
	}
	return t.finish()
}

// TightenLayer tightens a single layer's neurons against the forward
// horizon up to that layer.
func (t *Tightener) TightenLayer(idx int) error {
	t.start()
	l := t.G.GetLayer(idx)
	h := lprelax.Forward(t.G, idx)
	t.dispatchLayer(l, h, nil)
	return t.finish()
}

// TightenBackwardConverge repeats a full backward (BFS-ball) sweep until
// a round produces no further tightening, or maxRounds is reached.
func (t *Tightener) TightenBackwardConverge(maxRounds int) error {
	return t.tightenBackwardConvergeExtra(maxRounds, nil)
}

func (t *Tightener) tightenBackwardConvergeExtra(maxRounds int, extra []lprelax.Tightening) error {
	for round := 0; round < maxRounds; round++ {
		before := atomic.LoadInt64(&t.TighterCount)
		t.start()
		for _, idx := range t.G.TopologicalOrder() {
			l := t.G.GetLayer(idx)
			h := lprelax.Backward(t.G, idx, t.BackwardDepth)
			t.dispatchLayer(l, h, extra)
		}
		if err := t.finish(); err != nil {
			return err
		}
		if atomic.LoadInt64(&t.TighterCount) == before {
			return nil
		}
	}
	return nil
}

func (t *Tightener) dispatchLayer(l *graph.Layer, h lprelax.Horizon, extra []lprelax.Tightening) {
	for i := 0; i < l.N; i++ {
		neuron := i
		t.pool.submit(func() {
			t.tightenOne(l, neuron, h, extra)
		})
	}
}

func (t *Tightener) tightenOne(l *graph.Layer, neuron int, h lprelax.Horizon, extra []lprelax.Tightening) {
	if atomic.LoadInt32(&t.interrupt) != 0 {
		return
	}
	if l.IsEliminated(neuron) {
		return
	}
	id := graph.NeuronID{Layer: l.Idx, Neuron: neuron}

	skipLower, skipUpper := t.sampleSkip(l, neuron, id)
	if skipLower && skipUpper {
		return
	}

	solver, ok := t.solvers.acquire(&t.interrupt)
	if !ok {
		return
	}

	t.mu.Lock()
	solver.Reset()
	name, hasVar := t.G.NeuronToVar(l.Idx, neuron)
	var varName string
	var buildErr error
	if hasVar {
		varName = oracle.VarName(name)
		buildErr = lprelax.Build(t.G, h, solver, t.ParamCoef, extra)
	}
	t.mu.Unlock()

	if !hasVar || buildErr != nil {
		t.solvers.release(solver)
		return
	}

	cutoff, hasCutoff := t.Cutoff[id]

	if !skipUpper {
		t.solveDirection(l, neuron, id, solver, varName, true, hasCutoff, cutoff)
		if atomic.LoadInt32(&t.interrupt) != 0 {
			t.solvers.release(solver)
			return
		}
		solver.ResetModel()
	}
	if !skipLower {
		t.solveDirection(l, neuron, id, solver, varName, false, hasCutoff, cutoff)
	}

	t.solvers.release(solver)
}

func (t *Tightener) sampleSkip(l *graph.Layer, neuron int, id graph.NeuronID) (skipLower, skipUpper bool) {
	if l.Samples == nil {
		return false, false
	}
	cutoff, ok := t.Cutoff[id]
	if !ok {
		return false, false
	}
	samples := l.Samples(neuron)
	if len(samples) == 0 {
		return false, false
	}
	allAbove, allBelow := true, true
	for _, s := range samples {
		if s <= cutoff {
			allAbove = false
		}
		if s >= cutoff {
			allBelow = false
		}
	}
	return allAbove, allBelow
}

// solveDirection runs one maximize (maximize=true) or minimize solve for
// neuron's variable and writes back a strictly tighter bound.
func (t *Tightener) solveDirection(l *graph.Layer, neuron int, id graph.NeuronID, solver oracle.Oracle, varName string, maximize, hasCutoff bool, cutoff float64) {
	if maximize {
		solver.SetMinimizationCost([]oracle.Term{{Coef: -1, Var: varName}})
		if hasCutoff {
			solver.SetCutoff(-cutoff, true)
		}
	} else {
		solver.SetMinimizationCost([]oracle.Term{{Coef: 1, Var: varName}})
		if hasCutoff {
			solver.SetCutoff(cutoff, true)
		}
	}

	status := solver.Solve()
	value, ok := t.resolveObjective(maximize, status, solver, l.Idx, neuron, cutoff, hasCutoff)
	if !ok {
		return
	}
	if maximize {
		value = -value
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if maximize {
		newUb := value + t.Eps2
		oldUb := l.Ub[neuron]
		if newUb < oldUb-l.CompareEps {
			t.G.SetUb(l.Idx, neuron, newUb)
			atomic.AddInt64(&t.TighterCount, 1)
			if oldUb > 0 && newUb <= 0 {
				atomic.AddInt64(&t.SignChangeCount, 1)
			}
		}
	} else {
		newLb := value - t.Eps2
		oldLb := l.Lb[neuron]
		if newLb > oldLb+l.CompareEps {
			t.G.SetLb(l.Idx, neuron, newLb)
			atomic.AddInt64(&t.TighterCount, 1)
			if oldLb < 0 && newLb >= 0 {
				atomic.AddInt64(&t.SignChangeCount, 1)
			}
		}
	}
}

// resolveObjective implements §4.4's LP objective resolution. The
// returned value is always in "pre-negation" cost units: the caller
// applies the same maximize-direction negation regardless of which
// branch below produced it, so a cutoff short-circuit for the maximize
// direction must hand back -cutoff to land on the declared cutoff after
// that negation.
func (t *Tightener) resolveObjective(maximize bool, status oracle.Status, solver oracle.Oracle, layer, neuron int, cutoff float64, hasCutoff bool) (float64, bool) {
	switch status {
	case oracle.StatusInfeasible:
		ie := &InfeasibleError{Layer: layer, Neuron: neuron}
		t.infeasible.Store(ie)
		atomic.StoreInt32(&t.interrupt, 1)
		t.solvers.drain()
		return 0, false
	case oracle.StatusCutoff:
		atomic.AddInt64(&t.CutoffCount, 1)
		if hasCutoff {
			if maximize {
				return -cutoff, true
			}
			return cutoff, true
		}
		_, obj := solver.ExtractSolution()
		return obj, true
	case oracle.StatusOptimal:
		_, obj := solver.ExtractSolution()
		return obj, true
	case oracle.StatusTimeout:
		return solver.GetObjectiveBound(), true
	default:
		panic(&FatalError{Layer: layer, Neuron: neuron, Status: status.String()})
	}
}
