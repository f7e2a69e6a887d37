package lprelax

import (
	"math"
	"testing"

	"github.com/openverify/nlrcore/deeppoly"
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/oracle"
)

// weightedSumReLU builds Input(2) -> WeightedSum(1, y=x0-x1+1) -> ReLU(1),
// runs DeepPoly to populate interval bounds, and binds every neuron to an
// LP variable id.
func weightedSumReLU(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddLayer(0, graph.Input, 2)
	g.AddLayer(1, graph.WeightedSum, 1)
	g.AddLayer(2, graph.ReLU, 1)

	g.AddDependency(0, 1)
	g.SetWeight(1, 0, 0, 0, 1)
	g.SetWeight(1, 0, 1, 0, -1)
	g.SetBias(1, 0, 1)

	g.AddDependency(1, 2)
	g.AddActivationSource(2, 1, 0, 0)

	in := g.GetLayer(0)
	in.Lb[0], in.Ub[0] = -1, 1
	in.Lb[1], in.Ub[1] = -1, 1

	g.SetNeuronVariable(0, 0, 0)
	g.SetNeuronVariable(0, 1, 1)
	g.SetNeuronVariable(1, 0, 2)
	g.SetNeuronVariable(2, 0, 3)

	eng := deeppoly.NewEngine(g)
	if err := eng.Run(0); err != nil {
		t.Fatalf("deeppoly.Run: %v", err)
	}
	return g
}

func solveDirection(t *testing.T, g *graph.Graph, h Horizon, varID int, maximize bool) float64 {
	t.Helper()
	o := oracle.NewGonumOracle()
	if err := Build(g, h, o, nil, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	name := oracle.VarName(varID)
	coef := 1.0
	if maximize {
		coef = -1
	}
	o.SetMinimizationCost([]oracle.Term{{Coef: coef, Var: name}})
	status := o.Solve()
	if status != oracle.StatusOptimal {
		t.Fatalf("status = %v, want optimal", status)
	}
	sol, _ := o.ExtractSolution()
	return sol[name]
}

func TestBuildForwardHorizonTightensReLUOutput(t *testing.T) {
	g := weightedSumReLU(t)
	h := Forward(g, 2)

	maxZ := solveDirection(t, g, h, 3, true)
	minZ := solveDirection(t, g, h, 3, false)

	if math.Abs(maxZ-3) > 1e-6 {
		t.Errorf("max z = %g, want 3", maxZ)
	}
	if math.Abs(minZ-0) > 1e-6 {
		t.Errorf("min z = %g, want 0", minZ)
	}
}

func TestBuildIsIdempotentOnVariables(t *testing.T) {
	g := weightedSumReLU(t)
	h := Forward(g, 2)
	o := oracle.NewGonumOracle()
	if err := Build(g, h, o, nil, nil); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if err := Build(g, h, o, nil, nil); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	// Variable creation is idempotent (ensureVar checks ContainsVariable),
	// so a duplicate Build pass only adds redundant constraint rows; the
	// feasible region, and therefore the optimum, is unchanged.
	name := oracle.VarName(3)
	o.SetMinimizationCost([]oracle.Term{{Coef: -1, Var: name}})
	status := o.Solve()
	if status != oracle.StatusOptimal {
		t.Fatalf("status = %v, want optimal", status)
	}
	sol, _ := o.ExtractSolution()
	if math.Abs(sol[name]-3) > 1e-6 {
		t.Errorf("z after duplicate Build = %g, want 3", sol[name])
	}
}

func TestBuildWithPolygonalTightening(t *testing.T) {
	g := weightedSumReLU(t)
	h := Forward(g, 2)
	o := oracle.NewGonumOracle()
	tightenings := []Tightening{{Layer: 2, Neuron: 0, Kind: UB, Value: 1.5}}
	if err := Build(g, h, o, nil, tightenings); err != nil {
		t.Fatalf("Build: %v", err)
	}
	name := oracle.VarName(3)
	o.SetMinimizationCost([]oracle.Term{{Coef: -1, Var: name}}) // maximize
	status := o.Solve()
	if status != oracle.StatusOptimal {
		t.Fatalf("status = %v, want optimal", status)
	}
	sol, _ := o.ExtractSolution()
	if math.Abs(sol[name]-1.5) > 1e-6 {
		t.Errorf("z with UB tightening 1.5 = %g, want 1.5", sol[name])
	}
}

func TestBuildOutOfScopeTighteningIgnored(t *testing.T) {
	g := weightedSumReLU(t)
	h := Forward(g, 1) // excludes layer 2
	o := oracle.NewGonumOracle()
	tightenings := []Tightening{{Layer: 2, Neuron: 0, Kind: UB, Value: 0.1}}
	if err := Build(g, h, o, nil, tightenings); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if o.ContainsVariable(oracle.VarName(3)) {
		t.Errorf("layer 2's variable should not exist outside its horizon")
	}
}
