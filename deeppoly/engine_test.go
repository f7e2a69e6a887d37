package deeppoly

import (
	"math"
	"testing"

	"github.com/openverify/nlrcore/graph"
)

// buildDirectReLU builds Input(1) -> ReLU(1), so the ReLU's own expression
// already terminates at the reference layer (no back-substitution needed).
func buildDirectReLU(lo, up float64) *graph.Graph {
	g := graph.New()
	g.AddLayer(0, graph.Input, 1)
	g.AddLayer(1, graph.ReLU, 1)
	g.AddDependency(0, 1)
	g.AddActivationSource(1, 0, 0, 0)
	in := g.GetLayer(0)
	in.Lb[0], in.Ub[0] = lo, up
	return g
}

func TestEngineRunDirectReLUFixedPositive(t *testing.T) {
	g := buildDirectReLU(2, 5)
	eng := NewEngine(g)
	if err := eng.Run(0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := g.GetLayer(1)
	if out.Lb[0] != 2 || out.Ub[0] != 5 {
		t.Errorf("fixed-positive ReLU bounds = [%g,%g], want [2,5]", out.Lb[0], out.Ub[0])
	}
}

func TestEngineRunDirectReLUFixedNegative(t *testing.T) {
	g := buildDirectReLU(-5, -2)
	eng := NewEngine(g)
	if err := eng.Run(0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := g.GetLayer(1)
	if out.Lb[0] != 0 || out.Ub[0] != 0 {
		t.Errorf("fixed-negative ReLU bounds = [%g,%g], want [0,0]", out.Lb[0], out.Ub[0])
	}
}

// buildWeightedSumReLU builds Input(2) -> WeightedSum(1, y=x0-x1+1) -> ReLU(1),
// exercising back-substitution through the WeightedSum layer.
func buildWeightedSumReLU() *graph.Graph {
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
	return g
}

func TestEngineRunBackSubstitutesThroughWeightedSum(t *testing.T) {
	g := buildWeightedSumReLU()
	eng := NewEngine(g)
	if err := eng.Run(0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ws := g.GetLayer(1)
	if ws.Lb[0] != -1 || ws.Ub[0] != 3 {
		t.Errorf("WeightedSum bounds = [%g,%g], want [-1,3]", ws.Lb[0], ws.Ub[0])
	}

	relu := g.GetLayer(2)
	// ReLU(y) is always >= 0 and <= 3 on y in [-1,3]; the DeepPoly envelope
	// is sound but not tight, so we only require soundness here.
	if relu.Lb[0] > 0+1e-9 {
		t.Errorf("ReLU lower bound %g is unsound (true min is 0)", relu.Lb[0])
	}
	if relu.Ub[0] < 3-1e-9 {
		t.Errorf("ReLU upper bound %g is unsound (true max is 3)", relu.Ub[0])
	}
}

func TestEngineRunInfeasiblePropagation(t *testing.T) {
	// A contradictory reference box (lb > ub on the Input layer) propagates
	// straight through a fixed-positive ReLU, whose own expression is the
	// identity y=x: concretizeRow then resolves lb from refLb and ub from
	// refUb, reproducing the contradiction as a genuine lb>ub.
	g := buildDirectReLU(5, 2)
	eng := NewEngine(g)
	err := eng.Run(0)
	if err == nil {
		t.Fatalf("expected infeasibility error")
	}
	if _, ok := err.(*graph.InfeasibleError); !ok {
		t.Errorf("expected *graph.InfeasibleError, got %T: %v", err, err)
	}
}

func TestEngineResidualConcretization(t *testing.T) {
	g := buildWeightedSumReLU()
	eng := NewEngine(g)
	eng.Residual[1] = true // treat the WeightedSum layer as residual
	if err := eng.Run(0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	relu := g.GetLayer(2)
	if relu.Lb[0] > 0+1e-9 || relu.Ub[0] < 3-1e-9 {
		t.Errorf("residual-concretized ReLU bounds [%g,%g] unsound, want to contain [0,3]", relu.Lb[0], relu.Ub[0])
	}
}

func TestEngineStoreExprPopulatesRequestedLayers(t *testing.T) {
	g := buildWeightedSumReLU()
	eng := NewEngine(g)
	eng.StoreExpr = map[int]*Element{2: nil}
	if err := eng.Run(0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	el := eng.StoreExpr[2]
	if el == nil {
		t.Fatalf("expected StoreExpr[2] to be populated")
	}
	if el.Ref != 0 || el.K != 2 {
		t.Errorf("Element.Ref/K = %d/%d, want 0/2", el.Ref, el.K)
	}
}

func TestMaxLayerWidthScratchFootprintNonZero(t *testing.T) {
	g := buildWeightedSumReLU()
	eng := NewEngine(g)
	if eng.mem.footprint() <= 0 {
		t.Errorf("expected positive scratch footprint")
	}
	if math.IsNaN(float64(eng.mem.footprint())) {
		t.Errorf("footprint is NaN")
	}
}
