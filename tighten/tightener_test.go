package tighten

import (
	"math"
	"testing"

	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/oracle"
)

// inputReLU builds Input(1) -> ReLU(1) with a deliberately loose pre-set
// interval on the ReLU layer, so a scripted tightening is observable.
func inputReLU(lb, ub float64) *graph.Graph {
	g := graph.New()
	g.AddLayer(0, graph.Input, 1)
	g.AddLayer(1, graph.ReLU, 1)
	g.AddDependency(0, 1)
	g.AddActivationSource(1, 0, 0, 0)
	g.SetNeuronVariable(0, 0, 0)
	g.SetNeuronVariable(1, 0, 1)
	in := g.GetLayer(0)
	in.Lb[0], in.Ub[0] = -1, 1
	out := g.GetLayer(1)
	out.Lb[0], out.Ub[0] = lb, ub
	return g
}

func TestTightenLayerWritesBackStrictlyTighterBounds(t *testing.T) {
	g := inputReLU(-5, 5)
	m := oracle.NewMockOracle()
	m.Script = []oracle.ScriptedResult{
		{Status: oracle.StatusOptimal, Objective: -2}, // maximize: y_max = 2
		{Status: oracle.StatusOptimal, Objective: -1}, // minimize: y_min = -1
	}
	tn := New(g, []oracle.Oracle{m})
	if err := tn.TightenLayer(1); err != nil {
		t.Fatalf("TightenLayer: %v", err)
	}
	out := g.GetLayer(1)
	if math.Abs(out.Ub[0]-2) > 1e-6 {
		t.Errorf("Ub = %g, want ~2", out.Ub[0])
	}
	if math.Abs(out.Lb[0]-(-1)) > 1e-6 {
		t.Errorf("Lb = %g, want ~-1", out.Lb[0])
	}
	if tn.TighterCount != 2 {
		t.Errorf("TighterCount = %d, want 2", tn.TighterCount)
	}
	if tn.SignChangeCount != 0 {
		t.Errorf("SignChangeCount = %d, want 0", tn.SignChangeCount)
	}
}

func TestTightenLayerDetectsSignChange(t *testing.T) {
	g := inputReLU(-5, 5)
	m := oracle.NewMockOracle()
	m.Script = []oracle.ScriptedResult{
		{Status: oracle.StatusOptimal, Objective: -3}, // maximize: y_max = 3 (still > 0, no flip)
		{Status: oracle.StatusOptimal, Objective: 1},  // minimize: y_min = 1 (oldLb<0, newLb>=0: flip)
	}
	tn := New(g, []oracle.Oracle{m})
	if err := tn.TightenLayer(1); err != nil {
		t.Fatalf("TightenLayer: %v", err)
	}
	if tn.SignChangeCount != 1 {
		t.Errorf("SignChangeCount = %d, want 1", tn.SignChangeCount)
	}
}

func TestTightenLayerIgnoresNonTighteningResult(t *testing.T) {
	g := inputReLU(-5, 5)
	m := oracle.NewMockOracle()
	m.Script = []oracle.ScriptedResult{
		{Status: oracle.StatusOptimal, Objective: -10}, // maximize gives 10, looser than existing ub=5
		{Status: oracle.StatusOptimal, Objective: -10}, // minimize gives -10, looser than existing lb=-5
	}
	tn := New(g, []oracle.Oracle{m})
	if err := tn.TightenLayer(1); err != nil {
		t.Fatalf("TightenLayer: %v", err)
	}
	out := g.GetLayer(1)
	if out.Lb[0] != -5 || out.Ub[0] != 5 {
		t.Errorf("bounds should be unchanged, got [%g,%g]", out.Lb[0], out.Ub[0])
	}
	if tn.TighterCount != 0 {
		t.Errorf("TighterCount = %d, want 0", tn.TighterCount)
	}
}

func TestTightenLayerInfeasiblePropagates(t *testing.T) {
	g := inputReLU(-5, 5)
	m := oracle.NewMockOracle()
	m.Script = []oracle.ScriptedResult{
		{Status: oracle.StatusInfeasible},
	}
	tn := New(g, []oracle.Oracle{m})
	err := tn.TightenLayer(1)
	if err == nil {
		t.Fatalf("expected infeasibility error")
	}
	if _, ok := err.(*InfeasibleError); !ok {
		t.Errorf("expected *InfeasibleError, got %T: %v", err, err)
	}
}

func TestTightenLayerCutoffUsesDeclaredCutoffValue(t *testing.T) {
	g := inputReLU(-5, 5)
	m := oracle.NewMockOracle()
	m.Script = []oracle.ScriptedResult{
		{Status: oracle.StatusCutoff},
		{Status: oracle.StatusOptimal, Objective: -10},
	}
	tn := New(g, []oracle.Oracle{m})
	tn.Cutoff[graph.NeuronID{Layer: 1, Neuron: 0}] = 4
	if err := tn.TightenLayer(1); err != nil {
		t.Fatalf("TightenLayer: %v", err)
	}
	if tn.CutoffCount != 1 {
		t.Errorf("CutoffCount = %d, want 1", tn.CutoffCount)
	}
	out := g.GetLayer(1)
	// maximize hit cutoff: the solver reports StatusCutoff with the
	// declared cutoff value 4 used directly as the tightened bound.
	if math.Abs(out.Ub[0]-4) > 1e-6 {
		t.Errorf("Ub = %g, want ~4 (declared cutoff)", out.Ub[0])
	}
}

func TestTightenLayerFatalErrorOnUnexpectedStatus(t *testing.T) {
	g := inputReLU(-5, 5)
	m := oracle.NewMockOracle()
	m.Script = []oracle.ScriptedResult{
		{Status: oracle.StatusUnknown},
	}
	tn := New(g, []oracle.Oracle{m})
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on unexpected solver status")
		}
		if _, ok := r.(*FatalError); !ok {
			t.Errorf("expected *FatalError, got %T: %v", r, r)
		}
	}()
	tn.TightenLayer(1)
}

// TestSequentialPoolRunsInline exercises the w<=1 inline-execution path
// (a single solver) and checks both scripted results were consumed in
// order -- the tightened bounds are only correct if submit() ran the
// neuron's closure synchronously rather than dropping it on an unused
// worker channel.
func TestSequentialPoolRunsInline(t *testing.T) {
	g := inputReLU(-5, 5)
	m := oracle.NewMockOracle()
	m.Script = []oracle.ScriptedResult{
		{Status: oracle.StatusOptimal, Objective: -2},
		{Status: oracle.StatusOptimal, Objective: -1},
	}
	tn := New(g, []oracle.Oracle{m})
	if err := tn.TightenLayer(1); err != nil {
		t.Fatalf("TightenLayer: %v", err)
	}
	out := g.GetLayer(1)
	if math.Abs(out.Ub[0]-2) > 1e-6 || math.Abs(out.Lb[0]-(-1)) > 1e-6 {
		t.Errorf("bounds = [%g,%g], want [-1,2]", out.Lb[0], out.Ub[0])
	}
}
