package verify

import (
	"fmt"

	"github.com/openverify/nlrcore/deeppoly"
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/oracle"
	"github.com/openverify/nlrcore/tighten"
)

// Result is the outcome of a Run: the bounds are already written back
// into the graph passed in, this just reports the tightener's bookkeeping
// counters (completion or failure is reported by Run's error).
type Result struct {
	TighterCount    int64
	SignChangeCount int64
	CutoffCount     int64
}

// Run propagates DeepPoly bounds and then applies the configured LP
// tightening policy. Structural and fatal invariant violations, which the
// owning packages report by panicking with a typed value, are recovered
// here and returned as a plain error (§7): this is the public-API edge,
// the one place those panics are allowed to cross.
func Run(g *graph.Graph, cfg Config) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = asError(r)
		}
	}()

	eng := deeppoly.NewEngine(g)
	eng.Eps1 = cfg.Eps1
	eng.CompareEps = cfg.CompareEps
	eng.SoftmaxFamily = cfg.SoftmaxFamily
	eng.LSE2Threshold = cfg.LSE2Threshold
	if cfg.BoundMode == ParameterisedSBT {
		eng.ParamCoef = cfg.ParamCoef
	}

	if err := eng.Run(cfg.RefLayer); err != nil {
		return res, err
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	solvers := make([]oracle.Oracle, cfg.Workers)
	for i := range solvers {
		solvers[i] = cfg.OracleFactory()
	}
	t := tighten.New(g, solvers)
	t.Eps2 = cfg.Eps2
	t.BackwardDepth = cfg.BackwardDepth
	t.Cutoff = cfg.Cutoff
	t.ParamCoef = cfg.ParamCoef

	var tightenErr error
	switch cfg.LPMode {
	case Forward:
		tightenErr = t.TightenForward()
	case BackwardConverge:
		tightenErr = t.TightenBackwardConverge(cfg.MaxRounds)
	case BackwardPMNR:
		tightenErr = t.TightenPMNR(cfg.PMNRBranches, cfg.MaxRounds)
	default:
		tightenErr = t.TightenBackwardConverge(cfg.MaxRounds)
	}

	res = Result{
		TighterCount:    t.TighterCount,
		SignChangeCount: t.SignChangeCount,
		CutoffCount:     t.CutoffCount,
	}
	return res, tightenErr
}

func asError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("verify: panic: %v", r)
}
