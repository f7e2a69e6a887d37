package deeppoly

import (
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/relax"
)

// softmaxExpression handles the whole-layer softmax group: neuron i's
// single source is logit i of the group.
func (e *Engine) softmaxExpression(l *graph.Layer, o *ownExpr) {
	g := e.g
	n := l.N
	m := make([]float64, n)
	lows := make([]float64, n)
	ups := make([]float64, n)
	elim := make([]bool, n)
	val := make([]float64, n)
	for i := 0; i < n; i++ {
		src := l.Sources[i][0]
		sl := g.GetLayer(src.Layer)
		if sl.IsEliminated(src.Neuron) {
			elim[i] = true
			val[i] = sl.Eliminated[src.Neuron]
			m[i], lows[i], ups[i] = val[i], val[i], val[i]
			continue
		}
		lows[i], ups[i] = sl.Lb[src.Neuron], sl.Ub[src.Neuron]
		m[i] = (lows[i] + ups[i]) / 2
	}

	pc := e.ParamCoef[l.Idx]
	family := e.SoftmaxFamily
	if pc.Parameterised {
		family = pc.SoftmaxFamily
	}

	for k := 0; k < n; k++ {
		if l.IsEliminated(k) {
			continue
		}
		env := relax.SoftmaxEnvelope(k, m, lows, ups, family, e.LSE2Threshold)
		for i := 0; i < n; i++ {
			src := l.Sources[i][0]
			if elim[i] {
				o.loBias[k] += env.LowerCoef[i] * val[i]
				o.upBias[k] += env.UpperCoef[i] * val[i]
				continue
			}
			sl := g.GetLayer(src.Layer)
			o.ensureBoth(src.Layer, n, sl.N)
			o.addTerm(k, src.Layer, src.Neuron, sl.N, n, env.LowerCoef[i], env.UpperCoef[i])
		}
		o.loBias[k] += env.LowerBias
		o.upBias[k] += env.UpperBias
	}
}

// bilinearExpression handles the two-source product neurons.
func (e *Engine) bilinearExpression(l *graph.Layer, o *ownExpr) {
	g := e.g
	pc := e.ParamCoef[l.Idx]
	lambdaLo, lambdaUp := 0.5, 0.5
	if pc.Parameterised {
		lambdaLo, lambdaUp = pc.BilinearLambdaLo, pc.BilinearLambdaUp
	}
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		xs, ys := l.Sources[i][0], l.Sources[i][1]
		xl, xu, xElim, xVal := srcInterval(g, xs)
		yl, yu, yElim, yVal := srcInterval(g, ys)

		if xElim && yElim {
			v := relax.Bilinear(xVal, yVal)
			o.loBias[i] += v
			o.upBias[i] += v
			continue
		}
		if xElim {
			// degenerate to a single-source affine: y*xVal
			o.ensureBoth(ys.Layer, l.N, g.GetLayer(ys.Layer).N)
			o.addTerm(i, ys.Layer, ys.Neuron, g.GetLayer(ys.Layer).N, l.N, xVal, xVal)
			continue
		}
		if yElim {
			o.ensureBoth(xs.Layer, l.N, g.GetLayer(xs.Layer).N)
			o.addTerm(i, xs.Layer, xs.Neuron, g.GetLayer(xs.Layer).N, l.N, yVal, yVal)
			continue
		}

		env := relax.BilinearEnvelope(xl, xu, yl, yu, lambdaLo, lambdaUp)
		o.ensureBoth(xs.Layer, l.N, g.GetLayer(xs.Layer).N)
		o.ensureBoth(ys.Layer, l.N, g.GetLayer(ys.Layer).N)
		o.addTerm(i, xs.Layer, xs.Neuron, g.GetLayer(xs.Layer).N, l.N, env.LowerCoef[0], env.UpperCoef[0])
		o.addTerm(i, ys.Layer, ys.Neuron, g.GetLayer(ys.Layer).N, l.N, env.LowerCoef[1], env.UpperCoef[1])
		o.loBias[i] += env.LowerBias
		o.upBias[i] += env.UpperBias
	}
}

// maxExpression handles the variable-arity max neurons, §4.1/§4.2 edge case.
func (e *Engine) maxExpression(l *graph.Layer, o *ownExpr) {
	g := e.g
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		srcs := l.Sources[i]
		lows := make([]float64, len(srcs))
		ups := make([]float64, len(srcs))
		elim := make([]bool, len(srcs))
		val := make([]float64, len(srcs))
		for j, s := range srcs {
			lows[j], ups[j], elim[j], val[j] = srcInterval(g, s)
		}

		// Edge case: an eliminated source strictly exceeding every live
		// source's upper bound fixes the neuron to that constant.
		bestElimIdx, bestElim := -1, 0.0
		for j, s := range srcs {
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
			_ = s
		}
		if bestElimIdx != -1 {
			o.loBias[i] += bestElim
			o.upBias[i] += bestElim
			continue
		}

		env := relax.MaxEnvelope(lows, ups)
		ub := env.UpperBias
		for j, v := range val {
			if elim[j] && v > ub {
				ub = v
			}
		}
		o.upBias[i] += ub
		for j, s := range srcs {
			if env.LowerCoef[j] == 0 {
				continue
			}
			if elim[j] {
				o.loBias[i] += env.LowerCoef[j] * val[j]
				continue
			}
			sl := g.GetLayer(s.Layer)
			o.ensureBoth(s.Layer, l.N, sl.N)
			o.addTerm(i, s.Layer, s.Neuron, sl.N, l.N, env.LowerCoef[j], 0)
		}
	}
}

func srcInterval(g *graph.Graph, s graph.ActivationSource) (lo, up float64, eliminated bool, val float64) {
	sl := g.GetLayer(s.Layer)
	if sl.IsEliminated(s.Neuron) {
		v := sl.Eliminated[s.Neuron]
		return v, v, true, v
	}
	return sl.Lb[s.Neuron], sl.Ub[s.Neuron], false, 0
}
