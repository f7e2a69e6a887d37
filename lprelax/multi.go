package lprelax

import (
	"github.com/openverify/nlrcore/deeppoly"
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/oracle"
	"github.com/openverify/nlrcore/relax"
)

func srcState(g *graph.Graph, s graph.ActivationSource) (lo, up float64, eliminated bool, val float64) {
	sl := g.GetLayer(s.Layer)
	if sl.IsEliminated(s.Neuron) {
		v := sl.Eliminated[s.Neuron]
		return v, v, true, v
	}
	return sl.Lb[s.Neuron], sl.Ub[s.Neuron], false, 0
}

func buildSoftmax(g *graph.Graph, l *graph.Layer, o oracle.Oracle, paramCoef map[int]deeppoly.ParamCoeffs) error {
	n := l.N
	m := make([]float64, n)
	lows := make([]float64, n)
	ups := make([]float64, n)
	elim := make([]bool, n)
	val := make([]float64, n)
	for i := 0; i < n; i++ {
		lows[i], ups[i], elim[i], val[i] = srcState(g, l.Sources[i][0])
		m[i] = (lows[i] + ups[i]) / 2
	}

	pc := paramCoef[l.Idx]
	family := relax.LSEDecomposition
	tau := 0.9
	if pc.Parameterised {
		family = pc.SoftmaxFamily
	}

	for k := 0; k < n; k++ {
		if l.IsEliminated(k) {
			continue
		}
		yName, ok := ensureSourceVar(g, o, l.Idx, k)
		if !ok {
			continue
		}
		env := relax.SoftmaxEnvelope(k, m, lows, ups, family, tau)
		var names []string
		var loC, upC []float64
		loBias, upBias := env.LowerBias, env.UpperBias
		for i := 0; i < n; i++ {
			if elim[i] {
				loBias += env.LowerCoef[i] * val[i]
				upBias += env.UpperCoef[i] * val[i]
				continue
			}
			name, ok := ensureSourceVar(g, o, l.Sources[i][0].Layer, l.Sources[i][0].Neuron)
			if !ok {
				continue
			}
			names = append(names, name)
			loC = append(loC, env.LowerCoef[i])
			upC = append(upC, env.UpperCoef[i])
		}
		emitAffineN(o, yName, names, loC, upC, loBias, upBias)
	}
	return nil
}

func buildBilinear(g *graph.Graph, l *graph.Layer, o oracle.Oracle, paramCoef map[int]deeppoly.ParamCoeffs) error {
	pc := paramCoef[l.Idx]
	lambdaLo, lambdaUp := 0.5, 0.5
	if pc.Parameterised {
		lambdaLo, lambdaUp = pc.BilinearLambdaLo, pc.BilinearLambdaUp
	}
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		yName, ok := ensureSourceVar(g, o, l.Idx, i)
		if !ok {
			continue
		}
		xs, ys := l.Sources[i][0], l.Sources[i][1]
		xl, xu, xElim, xVal := srcState(g, xs)
		yl, yu, yElim, yVal := srcState(g, ys)

		if xElim && yElim {
			v := relax.Bilinear(xVal, yVal)
			o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: yName}}, v)
			continue
		}
		if xElim {
			name, ok := ensureSourceVar(g, o, ys.Layer, ys.Neuron)
			if !ok {
				continue
			}
			o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -xVal, Var: name}}, 0)
			continue
		}
		if yElim {
			name, ok := ensureSourceVar(g, o, xs.Layer, xs.Neuron)
			if !ok {
				continue
			}
			o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -yVal, Var: name}}, 0)
			continue
		}

		xName, _ := ensureSourceVar(g, o, xs.Layer, xs.Neuron)
		yName2, _ := ensureSourceVar(g, o, ys.Layer, ys.Neuron)
		env := relax.BilinearEnvelope(xl, xu, yl, yu, lambdaLo, lambdaUp)
		emitAffineN(o, yName, []string{xName, yName2}, env.LowerCoef, env.UpperCoef, env.LowerBias, env.UpperBias)
		lowers, uppers := relax.BilinearMcCormick(xl, xu, yl, yu)
		for _, f := range lowers {
			o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -f.LowerCoef[0], Var: xName}, {Coef: -f.LowerCoef[1], Var: yName2}}, f.LowerBias)
		}
		for _, f := range uppers {
			o.AddConstraint(oracle.Le, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -f.UpperCoef[0], Var: xName}, {Coef: -f.UpperCoef[1], Var: yName2}}, f.UpperBias)
		}
	}
	return nil
}

func buildMax(g *graph.Graph, l *graph.Layer, o oracle.Oracle) error {
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		yName, ok := ensureSourceVar(g, o, l.Idx, i)
		if !ok {
			continue
		}
		srcs := l.Sources[i]
		lows := make([]float64, len(srcs))
		ups := make([]float64, len(srcs))
		elim := make([]bool, len(srcs))
		val := make([]float64, len(srcs))
		for j, s := range srcs {
			lows[j], ups[j], elim[j], val[j] = srcState(g, s)
		}

		bestElimIdx, bestElim := -1, 0.0
		for j := range srcs {
			if !elim[j] {
				continue
			}
			exceedsAll := true
			for k := range srcs {
				if !elim[k] && ups[k] >= val[j] {
					exceedsAll = false
					break
				}
			}
			if exceedsAll && (bestElimIdx == -1 || val[j] > bestElim) {
				bestElimIdx, bestElim = j, val[j]
			}
		}
		if bestElimIdx != -1 {
			o.AddConstraint(oracle.Eq, []oracle.Term{{Coef: 1, Var: yName}}, bestElim)
			continue
		}

		ub := ups[0]
		for j, u := range ups {
			if u > ub {
				ub = u
			}
			if elim[j] && val[j] > ub {
				ub = val[j]
			}
		}
		// y <= max of source uppers
		o.AddConstraint(oracle.Le, []oracle.Term{{Coef: 1, Var: yName}}, ub)
		// y >= each live source individually (tighter than DeepPoly's
		// single-envelope heuristic, and the LP builder is free to add it)
		for j, s := range srcs {
			if elim[j] {
				o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}}, val[j])
				continue
			}
			name, ok := ensureSourceVar(g, o, s.Layer, s.Neuron)
			if !ok {
				continue
			}
			o.AddConstraint(oracle.Ge, []oracle.Term{{Coef: 1, Var: yName}, {Coef: -1, Var: name}}, 0)
		}
	}
	return nil
}
