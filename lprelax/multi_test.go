package lprelax

import (
	"testing"

	"github.com/openverify/nlrcore/deeppoly"
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/oracle"
)

func bilinearGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddLayer(0, graph.Input, 2)
	g.AddLayer(1, graph.Bilinear, 1)
	g.AddDependency(0, 1)
	g.AddActivationSource(1, 0, 0, 0)
	g.AddActivationSource(1, 0, 1, 0)

	in := g.GetLayer(0)
	in.Lb[0], in.Ub[0] = 0, 2
	in.Lb[1], in.Ub[1] = -1, 3

	g.SetNeuronVariable(0, 0, 0)
	g.SetNeuronVariable(0, 1, 1)
	g.SetNeuronVariable(1, 0, 2)

	eng := deeppoly.NewEngine(g)
	if err := eng.Run(0); err != nil {
		t.Fatalf("deeppoly.Run: %v", err)
	}
	return g
}

// TestBuildBilinearSoundAtFixedPoint pins x0 and x1 to one concrete point
// via extra equality constraints and checks the LP's envelope for z=x0*x1
// brackets the true product there, which is all McCormick guarantees away
// from the box corners.
func TestBuildBilinearSoundAtFixedPoint(t *testing.T) {
	g := bilinearGraph(t)
	h := Forward(g, 1)

	x0Val, x1Val := 1.5, 1.0
	build := func(maximize bool) float64 {
		o := oracle.NewGonumOracle()
		if err := Build(g, h, o, nil, nil); err != nil {
			t.Fatalf("Build: %v", err)
		}
		o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: oracle.VarName(0)}}, x0Val)
		o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: oracle.VarName(1)}}, x1Val)
		coef := 1.0
		if maximize {
			coef = -1
		}
		o.SetMinimizationCost([]oracle.Term{{Coef: coef, Var: oracle.VarName(2)}})
		status := o.Solve()
		if status != oracle.StatusOptimal {
			t.Fatalf("status = %v, want optimal", status)
		}
		sol, _ := o.ExtractSolution()
		return sol[oracle.VarName(2)]
	}

	trueZ := x0Val * x1Val
	maxZ := build(true)
	minZ := build(false)
	if minZ > trueZ+1e-6 || maxZ < trueZ-1e-6 {
		t.Errorf("McCormick envelope [%g,%g] excludes true product %g", minZ, maxZ, trueZ)
	}
}

func maxGraph(t *testing.T, elimVal float64) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddLayer(0, graph.Input, 2)
	g.AddLayer(1, graph.Max, 1)
	g.AddDependency(0, 1)
	g.AddActivationSource(1, 0, 0, 0)
	g.AddActivationSource(1, 0, 1, 0)

	in := g.GetLayer(0)
	in.Lb[0], in.Ub[0] = -1, 2
	in.Lb[1], in.Ub[1] = 0, 1

	g.SetNeuronVariable(0, 0, 0)
	g.SetNeuronVariable(0, 1, 1)
	g.SetNeuronVariable(1, 0, 2)
	g.EliminateNeuron(1, elimVal)

	eng := deeppoly.NewEngine(g)
	if err := eng.Run(0); err != nil {
		t.Fatalf("deeppoly.Run: %v", err)
	}
	return g
}

func TestBuildMaxDominatingEliminatedSourceFixesOutput(t *testing.T) {
	g := maxGraph(t, 5) // source1 fixed well above source0's range
	h := Forward(g, 1)
	o := oracle.NewGonumOracle()
	if err := Build(g, h, o, nil, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	o.SetMinimizationCost([]oracle.Term{{Coef: 1, Var: oracle.VarName(2)}})
	status := o.Solve()
	if status != oracle.StatusOptimal {
		t.Fatalf("status = %v, want optimal", status)
	}
	sol, _ := o.ExtractSolution()
	if sol[oracle.VarName(2)] != 5 {
		t.Errorf("z = %g, want 5 (fixed by dominating eliminated source)", sol[oracle.VarName(2)])
	}
}

func TestBuildMaxEachLiveSourceIsALowerBound(t *testing.T) {
	g := maxGraph(t, -100) // eliminated source far below, irrelevant
	h := Forward(g, 1)
	o := oracle.NewGonumOracle()
	if err := Build(g, h, o, nil, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Pin x0 to 1.5; z must be forced to at least 1.5 by the y>=source
	// constraint even though the DeepPoly single-envelope heuristic might
	// have picked a different source as its symbolic lower face.
	o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: oracle.VarName(0)}}, 1.5)
	o.SetMinimizationCost([]oracle.Term{{Coef: 1, Var: oracle.VarName(2)}})
	status := o.Solve()
	if status != oracle.StatusOptimal {
		t.Fatalf("status = %v, want optimal", status)
	}
	sol, _ := o.ExtractSolution()
	if sol[oracle.VarName(2)] < 1.5-1e-6 {
		t.Errorf("z = %g, want >= 1.5 (max must dominate every live source)", sol[oracle.VarName(2)])
	}
}
