package lprelax

import (
	"math"

	"github.com/openverify/nlrcore/deeppoly"
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/oracle"
	"github.com/openverify/nlrcore/relax"
)

const fixedPhaseEps = 1e-9

// Build emits variables and constraints for every layer in h (in
// topological order) into o, plus any in-scope polygonal tightenings.
// Variable creation is idempotent via ContainsVariable, so calling Build
// repeatedly against the same oracle for an expanding horizon is safe.
func Build(g *graph.Graph, h Horizon, o oracle.Oracle, paramCoef map[int]deeppoly.ParamCoeffs, tightenings []Tightening) error {
	emitted := make(map[int]bool)
	for _, idx := range g.TopologicalOrder() {
		if !h.contains(idx) {
			continue
		}
		l := g.GetLayer(idx)
		if err := buildLayer(g, l, o, paramCoef); err != nil {
			return err
		}
		emitted[idx] = true
	}

	for _, t := range tightenings {
		if !t.inScope(emitted) {
			continue
		}
		l := g.GetLayer(t.Layer)
		if l == nil || l.IsEliminated(t.Neuron) {
			continue
		}
		v, ok := g.NeuronToVar(t.Layer, t.Neuron)
		if !ok {
			continue
		}
		name := oracle.VarName(v)
		ensureVar(o, name, l, t.Neuron)
		switch t.Kind {
		case LB:
			o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: name}}, t.Value)
		case UB:
			o.AddConstraint(oracle.Le, []oracle.Term{{Coef: 1, Var: name}}, t.Value)
		}
	}
	return nil
}

// ensureVar adds neuron's variable on demand, with its current interval
// bounds, if it has not already been added.
func ensureVar(o oracle.Oracle, name string, l *graph.Layer, neuron int) {
	if o.ContainsVariable(name) {
		return
	}
	o.AddVariable(name, l.Lb[neuron], l.Ub[neuron])
}

func ensureSourceVar(g *graph.Graph, o oracle.Oracle, layer, neuron int) (string, bool) {
	sl := g.GetLayer(layer)
	if sl.IsEliminated(neuron) {
		return "", false
	}
	v, ok := g.NeuronToVar(layer, neuron)
	if !ok {
		return "", false
	}
	name := oracle.VarName(v)
	ensureVar(o, name, sl, neuron)
	return name, true
}

func buildLayer(g *graph.Graph, l *graph.Layer, o oracle.Oracle, paramCoef map[int]deeppoly.ParamCoeffs) error {
	switch l.Typ {
	case deeppoly.Input:
		for i := 0; i < l.N; i++ {
			if l.IsEliminated(i) {
				continue
			}
			ensureSourceVar(g, o, l.Idx, i)
		}
		return nil

	case deeppoly.WeightedSum:
		for j := 0; j < l.N; j++ {
			if l.IsEliminated(j) {
				continue
			}
			yName, ok := ensureSourceVar(g, o, l.Idx, j)
			if !ok {
				continue
			}
			terms := []oracle.Term{{Coef: -1, Var: yName}}
			rhs := 0.0
			if l.Bias != nil {
				rhs -= l.Bias[j]
			}
			for _, src := range l.Predecessors {
				sl := g.GetLayer(src)
				w := l.Weights[src]
				for i := 0; i < sl.N; i++ {
					coef := w.At(i, j)
					if coef == 0 {
						continue
					}
					if sl.IsEliminated(i) {
						rhs -= coef * sl.Eliminated[i]
						continue
					}
					name, ok := ensureSourceVar(g, o, src, i)
					if !ok {
						continue
					}
					terms = append(terms, oracle.Term{Coef: coef, Var: name})
				}
			}
			o.AddConstraint(oracle.Eq, terms, rhs)
		}
		return nil

	case deeppoly.ReLU, deeppoly.LeakyReLU, deeppoly.AbsoluteValue, deeppoly.Sign, deeppoly.Round, deeppoly.Sigmoid:
		pc := paramCoef[l.Idx]
		for i := 0; i < l.N; i++ {
			if l.IsEliminated(i) {
				continue
			}
			yName, ok := ensureSourceVar(g, o, l.Idx, i)
			if !ok {
				continue
			}
			src := l.Sources[i][0]
			sl := g.GetLayer(src.Layer)
			if sl.IsEliminated(src.Neuron) {
				continue // constant source: no constraint, y keeps only its own interval bounds
			}
			xName, ok := ensureSourceVar(g, o, src.Layer, src.Neuron)
			if !ok {
				continue
			}
			lo, up := sl.Lb[src.Neuron], sl.Ub[src.Neuron]
			env := singleSourceEnvelope(l.Typ, l.Alpha, lo, up, pc)
			emitAffine1(o, yName, xName, env)
			// An unfixed (Leaky)ReLU keeps both lower faces in the LP, not
			// only the one face the DeepPoly envelope selected.
			if lo < 0 && up > 0 {
				switch l.Typ {
				case deeppoly.ReLU:
					o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}}, 0)
					o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -1, Var: xName}}, 0)
				case deeppoly.LeakyReLU:
					o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -l.Alpha, Var: xName}}, 0)
					o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -1, Var: xName}}, 0)
				}
			}
		}
		return nil

	case deeppoly.Softmax:
		return buildSoftmax(g, l, o, paramCoef)

	case deeppoly.Bilinear:
		return buildBilinear(g, l, o, paramCoef)

	case deeppoly.Max:
		return buildMax(g, l, o)
	}
	return &graph.StructuralError{Layer: l.Idx, Msg: "lprelax: unsupported layer type " + l.Typ.String()}
}

func singleSourceEnvelope(typ graph.LayerType, alpha, lo, up float64, pc deeppoly.ParamCoeffs) relax.Affine1 {
	switch typ {
	case deeppoly.ReLU:
		if pc.Parameterised {
			return relax.ReLUEnvelopeParam(lo, up, pc.ReLULambda)
		}
		return relax.ReLUEnvelope(lo, up)
	case deeppoly.LeakyReLU:
		if pc.Parameterised {
			return relax.LeakyReLUEnvelopeParam(alpha, lo, up, pc.LeakyLambda)
		}
		return relax.LeakyReLUEnvelope(alpha, lo, up)
	case deeppoly.AbsoluteValue:
		return relax.AbsEnvelope(lo, up)
	case deeppoly.Sign:
		if pc.Parameterised {
			return relax.SignEnvelopeParam(lo, up, pc.SignLam1, pc.SignLam2)
		}
		return relax.SignEnvelope(lo, up)
	case deeppoly.Round:
		return relax.RoundEnvelope(lo, up)
	case deeppoly.Sigmoid:
		return relax.SigmoidEnvelope(lo, up)
	}
	return relax.Affine1{}
}

// emitAffine1 adds the constraint(s) for y bounded by lowerSlope*x+lowerBias
// <= y <= upperSlope*x+upperBias, collapsing to a single equality when the
// envelope is degenerate (fixed phase).
func emitAffine1(o oracle.Oracle, yName, xName string, env relax.Affine1) {
	if math.Abs(env.LowerSlope-env.UpperSlope) < fixedPhaseEps && math.Abs(env.LowerBias-env.UpperBias) < fixedPhaseEps {
		o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -env.LowerSlope, Var: xName}}, env.LowerBias)
		return
	}
	o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -env.LowerSlope, Var: xName}}, env.LowerBias)
	o.AddConstraint(oracle.Le, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -env.UpperSlope, Var: xName}}, env.UpperBias)
}

// emitAffineN adds the constraint(s) for a multi-source envelope; coef
// slices/names must be aligned and have had eliminated/zero-coefficient
// entries already filtered out by the caller.
func emitAffineN(o oracle.Oracle, yName string, names []string, lowerCoef, upperCoef []float64, lowerBias, upperBias float64) {
	lowerTerms := []oracle.Term{{Coef: 1, Var: yName}}
	upperTerms := []oracle.Term{{Coef: 1, Var: yName}}
	for i, n := range names {
		if lowerCoef[i] != 0 {
			lowerTerms = append(lowerTerms, oracle.Term{Coef: -lowerCoef[i], Var: n})
		}
		if upperCoef[i] != 0 {
			upperTerms = append(upperTerms, oracle.Term{Coef: -upperCoef[i], Var: n})
		}
	}
	o.AddConstraint(oracle.Ge, lowerTerms, lowerBias)
	o.AddConstraint(oracle.Le, upperTerms, upperBias)
}
