package deeppoly

import (
	"gonum.org/v1/gonum/mat"

	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/relax"
)

// ownExpr is a layer's symbolic expression purely in terms of its
// immediate predecessors (step 1 of the per-layer procedure, §4.2).
type ownExpr struct {
	lo, up         map[int]*mat.Dense // predecessor layer idx -> N x width(pred)
	loBias, upBias []float64          // len N
}

func newOwnExpr(n int) *ownExpr {
	return &ownExpr{
		lo:     make(map[int]*mat.Dense),
		up:     make(map[int]*mat.Dense),
		loBias: make([]float64, n),
		upBias: make([]float64, n),
	}
}

func (o *ownExpr) block(which map[int]*mat.Dense, layer, n, width int) *mat.Dense {
	m, ok := which[layer]
	if !ok {
		m = mat.NewDense(n, width, nil)
		which[layer] = m
	}
	return m
}

// ensureBoth makes sure layer has an entry in both lo and up (defaulting to
// zero), so the two maps always share an identical key set.
func (o *ownExpr) ensureBoth(layer, n, width int) {
	o.block(o.lo, layer, n, width)
	o.block(o.up, layer, n, width)
}

// addTerm sets/accumulates one (targetNeuron, srcLayer, srcNeuron) entry in
// both the lower and upper coefficient blocks.
func (o *ownExpr) addTerm(targetNeuron, srcLayer, srcNeuron int, width int, n int, loCoef, upCoef float64) {
	o.block(o.lo, srcLayer, n, width).Set(targetNeuron, srcNeuron, o.block(o.lo, srcLayer, n, width).At(targetNeuron, srcNeuron)+loCoef)
	o.block(o.up, srcLayer, n, width).Set(targetNeuron, srcNeuron, o.block(o.up, srcLayer, n, width).At(targetNeuron, srcNeuron)+upCoef)
}

// ownExpression builds l's symbolic expression in terms of its immediate
// predecessors, folding any eliminated source neuron's fixed value into
// the bias terms.
func (e *Engine) ownExpression(l *graph.Layer) (*ownExpr, error) {
	o := newOwnExpr(l.N)
	g := e.g

	switch l.Typ {
	case Input:
		// An Input layer never appears as a back-substitution target; its
		// own bounds are the base case. Nothing to build.
		return o, nil

	case WeightedSum:
		for _, src := range l.Predecessors {
			sl := g.GetLayer(src)
			w := l.Weights[src]
			o.ensureBoth(src, l.N, sl.N)
			for j := 0; j < l.N; j++ {
				for i := 0; i < sl.N; i++ {
					coef := w.At(i, j)
					if coef == 0 {
						continue
					}
					if sl.IsEliminated(i) {
						o.loBias[j] += coef * sl.Eliminated[i]
						o.upBias[j] += coef * sl.Eliminated[i]
						continue
					}
					o.addTerm(j, src, i, sl.N, l.N, coef, coef)
				}
			}
		}
		if l.Bias != nil {
			for j := 0; j < l.N; j++ {
				o.loBias[j] += l.Bias[j]
				o.upBias[j] += l.Bias[j]
			}
		}
		return o, nil

	case ReLU, LeakyReLU, AbsoluteValue, Sign, Round, Sigmoid:
		for i := 0; i < l.N; i++ {
			if l.IsEliminated(i) {
				continue
			}
			src := l.Sources[i][0]
			sl := g.GetLayer(src.Layer)
			if sl.IsEliminated(src.Neuron) {
				v := sl.Eliminated[src.Neuron]
				o.loBias[i] += e.evalPointConst(l.Typ, l, v)
				o.upBias[i] += e.evalPointConst(l.Typ, l, v)
				continue
			}
			lo, up := sl.Lb[src.Neuron], sl.Ub[src.Neuron]
			env := e.singleSourceEnvelope(l, i, lo, up)
			o.ensureBoth(src.Layer, l.N, sl.N)
			o.addTerm(i, src.Layer, src.Neuron, sl.N, l.N, env.LowerSlope, env.UpperSlope)
			o.loBias[i] += env.LowerBias
			o.upBias[i] += env.UpperBias
		}
		return o, nil

	case Softmax:
		e.softmaxExpression(l, o)
		return o, nil

	case Bilinear:
		e.bilinearExpression(l, o)
		return o, nil

	case Max:
		e.maxExpression(l, o)
		return o, nil
	}
	return nil, &FatalError{Layer: l.Idx, Msg: "unsupported layer type " + l.Typ.String()}
}

// evalPointConst evaluates the point activation function used when a
// single source has been eliminated to a constant.
func (e *Engine) evalPointConst(typ graph.LayerType, l *graph.Layer, v float64) float64 {
	switch typ {
	case ReLU:
		return relax.ReLU(v)
	case LeakyReLU:
		return relax.LeakyReLU(l.Alpha, v)
	case AbsoluteValue:
		return relax.Abs(v)
	case Sign:
		return relax.Sign(v)
	case Round:
		return relax.Round(v)
	case Sigmoid:
		return relax.Sigmoid(v)
	}
	return v
}

func (e *Engine) singleSourceEnvelope(l *graph.Layer, neuron int, lo, up float64) relax.Affine1 {
	pc := e.ParamCoef[l.Idx]
	switch l.Typ {
	case ReLU:
		if pc.Parameterised {
			return relax.ReLUEnvelopeParam(lo, up, pc.ReLULambda)
		}
		return relax.ReLUEnvelope(lo, up)
	case LeakyReLU:
		if pc.Parameterised {
			return relax.LeakyReLUEnvelopeParam(l.Alpha, lo, up, pc.LeakyLambda)
		}
		return relax.LeakyReLUEnvelope(l.Alpha, lo, up)
	case AbsoluteValue:
		return relax.AbsEnvelope(lo, up)
	case Sign:
		if pc.Parameterised {
			return relax.SignEnvelopeParam(lo, up, pc.SignLam1, pc.SignLam2)
		}
		return relax.SignEnvelope(lo, up)
	case Round:
		return relax.RoundEnvelope(lo, up)
	case Sigmoid:
		return relax.SigmoidEnvelope(lo, up)
	}
	return relax.Affine1{}
}
