package deeppoly

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/relax"
)

// ParamCoeffs holds the per-layer scalar coefficients of the parameterised
// symbolic-bound variant (§4.2 "Parameterised variant"). Parameterised
// must be set to true for the coefficients to take effect; otherwise the
// engine uses its base, unparameterised formulas.
type ParamCoeffs struct {
	Parameterised                    bool
	ReLULambda                       float64
	LeakyLambda                      float64
	SignLam1, SignLam2               float64
	BilinearLambdaLo, BilinearLambdaUp float64
	SoftmaxFamily                     relax.SoftmaxFamily
}

// Engine is the DeepPoly symbolic bound propagator. One Engine is built
// per propagation run; its working memory is reused across every layer
// visited during that run and is not safe for concurrent use.
type Engine struct {
	g *graph.Graph

	// Eps1 is the symbolic rounding slack applied when concretizing a
	// residual predecessor's contribution.
	Eps1 float64
	// CompareEps is the tolerance for detecting an infeasible interval.
	CompareEps float64

	SoftmaxFamily relax.SoftmaxFamily
	LSE2Threshold float64

	// ParamCoef carries per-layer parameterised coefficients; layers
	// absent from the map use the base algorithm.
	ParamCoef map[int]ParamCoeffs

	// Residual marks predecessor layers that must be concretized rather
	// than substituted through during back-substitution.
	Residual map[int]bool

	// StoreExpr, if non-nil, receives the final Element for every layer
	// index already present as a key (nil-valued) before Run is called.
	StoreExpr map[int]*Element

	mem *workMem
}

// NewEngine builds an Engine sized for g's widest layer.
func NewEngine(g *graph.Graph) *Engine {
	mw := maxLayerWidth(g)
	e := &Engine{
		g:             g,
		Eps1:          1e-9,
		CompareEps:    1e-9,
		SoftmaxFamily: relax.LSEDecomposition,
		LSE2Threshold: 0.9,
		ParamCoef:     make(map[int]ParamCoeffs),
		Residual:      make(map[int]bool),
		mem:           newWorkMem(mw),
	}
	log.Printf("deeppoly: engine scratch footprint %s (maxLayerWidth=%d)", e.mem.footprint(), mw)
	return e
}

// Run propagates bounds for every layer in topological order, back-
// substituting to refLayer (conventionally the input layer, whose bounds
// are taken as given and never recomputed).
func (e *Engine) Run(refLayer int) error {
	for _, idx := range e.g.TopologicalOrder() {
		if idx == refLayer {
			continue
		}
		l := e.g.GetLayer(idx)
		el, err := e.computeElement(l, refLayer)
		if err != nil {
			return err
		}
		if err := e.concretize(l, el); err != nil {
			return err
		}
		if e.StoreExpr != nil {
			if _, want := e.StoreExpr[idx]; want {
				e.StoreExpr[idx] = el
			}
		}
	}
	return nil
}

func (e *Engine) concretize(l *graph.Layer, el *Element) error {
	ref := e.g.GetLayer(el.Ref)
	for i := 0; i < l.N; i++ {
		if l.IsEliminated(i) {
			continue
		}
		lb := concretizeRow(mat.Row(nil, i, el.SymLb), el.SymLbBias[i], ref.Lb, ref.Ub, true)
		ub := concretizeRow(mat.Row(nil, i, el.SymUb), el.SymUbBias[i], ref.Lb, ref.Ub, false)
		if l.Typ == Softmax {
			// every softmax output lies in [0,1]
			lb, ub = math.Max(lb, 0), math.Min(ub, 1)
		}
		if lb > ub+e.CompareEps {
			return &graph.InfeasibleError{Layer: l.Idx, Neuron: i, Lb: lb, Ub: ub}
		}
		el.Lb[i], el.Ub[i] = lb, ub
		l.SetLb(i, lb)
		l.SetUb(i, ub)
	}
	return nil
}

func concretizeRow(coefRow []float64, bias float64, refLb, refUb []float64, lower bool) float64 {
	sum := bias
	for k, c := range coefRow {
		if c == 0 {
			continue
		}
		if lower == (c >= 0) {
			sum += c * refLb[k]
		} else {
			sum += c * refUb[k]
		}
	}
	return sum
}

// computeElement runs the full per-layer procedure (steps 1-3 of §4.2) for
// l, back-substituting to refLayer.
func (e *Engine) computeElement(l *graph.Layer, refLayer int) (*Element, error) {
	own, err := e.ownExpression(l)
	if err != nil {
		return nil, err
	}
	frontierLo, frontierUp := own.lo, own.up
	biasLo, biasUp := own.loBias, own.upBias

	for {
		p := nextToSubstitute(frontierLo, refLayer)
		if p < 0 {
			break
		}
		if e.Residual[p] {
			e.concretizeResidual(p, frontierLo, frontierUp, biasLo, biasUp, l.N)
			continue
		}
		pLayer := e.g.GetLayer(p)
		pOwn, err := e.ownExpression(pLayer)
		if err != nil {
			return nil, err
		}
		e.substitute(l.N, p, frontierLo, frontierUp, biasLo, biasUp, pOwn)
	}

	K := e.g.GetLayer(refLayer).N
	symLb := frontierLo[refLayer]
	if symLb == nil {
		symLb = mat.NewDense(l.N, K, nil)
	}
	symUb := frontierUp[refLayer]
	if symUb == nil {
		symUb = mat.NewDense(l.N, K, nil)
	}
	return &Element{
		Layer: l.Idx, Ref: refLayer, K: K,
		SymLb: symLb, SymUb: symUb,
		SymLbBias: biasLo, SymUbBias: biasUp,
		Lb: make([]float64, l.N), Ub: make([]float64, l.N),
	}, nil
}

// nextToSubstitute returns the largest-index key in frontier other than
// refLayer, or -1 if none remains.
func nextToSubstitute(frontier map[int]*mat.Dense, refLayer int) int {
	best := -1
	for k := range frontier {
		if k == refLayer {
			continue
		}
		if k > best {
			best = k
		}
	}
	return best
}

// concretizeResidual folds p's contribution directly using its concrete
// interval bounds plus the symbolic rounding slack eps1, removing it from
// the frontier without recursing into its own predecessors (§4.2 step 3).
func (e *Engine) concretizeResidual(p int, frontierLo, frontierUp map[int]*mat.Dense, biasLo, biasUp []float64, n int) {
	pLayer := e.g.GetLayer(p)
	clo, cup := frontierLo[p], frontierUp[p]
	delete(frontierLo, p)
	delete(frontierUp, p)
	for t := 0; t < n; t++ {
		sumLo, sumUp := 0.0, 0.0
		for j := 0; j < pLayer.N; j++ {
			cl := clo.At(t, j)
			if cl >= 0 {
				sumLo += cl * pLayer.Lb[j]
			} else {
				sumLo += cl * pLayer.Ub[j]
			}
			cu := cup.At(t, j)
			if cu >= 0 {
				sumUp += cu * pLayer.Ub[j]
			} else {
				sumUp += cu * pLayer.Lb[j]
			}
		}
		biasLo[t] += sumLo - e.Eps1
		biasUp[t] += sumUp + e.Eps1
	}
}

// substitute replaces p's coefficient block in the frontier with p's own
// expression in terms of its predecessors, sign-aware per coefficient.
func (e *Engine) substitute(n, p int, frontierLo, frontierUp map[int]*mat.Dense, biasLo, biasUp []float64, pOwn *ownExpr) {
	clo, cup := frontierLo[p], frontierUp[p]
	delete(frontierLo, p)
	delete(frontierUp, p)

	cloPos, cloNeg := reuse(e.mem.work1, n, pOwn.dim()), reuse(e.mem.work2, n, pOwn.dim())
	splitSign(clo, cloPos, cloNeg)
	cupPos, cupNeg := mat.NewDense(n, pOwn.dim(), nil), mat.NewDense(n, pOwn.dim(), nil)
	splitSign(cup, cupPos, cupNeg)

	// bias contributions
	addBiasVia(biasLo, cloPos, pOwn.loBias)
	addBiasVia(biasLo, cloNeg, pOwn.upBias)
	addBiasVia(biasUp, cupPos, pOwn.upBias)
	addBiasVia(biasUp, cupNeg, pOwn.loBias)

	for a := range pOwn.lo {
		width := pOwn.lo[a].RawMatrix().Cols
		loA := pOwn.lo[a]
		upA := pOwn.up[a]

		var termLo1, termLo2, termUp1, termUp2 mat.Dense
		termLo1.Mul(cloPos, loA)
		termLo2.Mul(cloNeg, upA)
		termUp1.Mul(cupPos, upA)
		termUp2.Mul(cupNeg, loA)

		acc := frontierLo[a]
		if acc == nil {
			acc = mat.NewDense(n, width, nil)
			frontierLo[a] = acc
		}
		acc.Add(acc, &termLo1)
		acc.Add(acc, &termLo2)

		accUp := frontierUp[a]
		if accUp == nil {
			accUp = mat.NewDense(n, width, nil)
			frontierUp[a] = accUp
		}
		accUp.Add(accUp, &termUp1)
		accUp.Add(accUp, &termUp2)
	}
}

func splitSign(c, pos, neg *mat.Dense) {
	r, cl := c.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < cl; j++ {
			v := c.At(i, j)
			if v >= 0 {
				pos.Set(i, j, v)
			} else {
				neg.Set(i, j, v)
			}
		}
	}
}

func addBiasVia(bias []float64, c *mat.Dense, childBias []float64) {
	r, cl := c.Dims()
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < cl; j++ {
			v := c.At(i, j)
			if v != 0 {
				sum += v * childBias[j]
			}
		}
		bias[i] += sum
	}
}

// dim returns the width of p used to size the Cpos/Cneg scratch matrices:
// every predecessor-block in lo/up shares the same row count n (the
// target's), the column count here is p's own neuron count, which is the
// number of rows in its own predecessor blocks -- but Cpos/Cneg share p's
// column count (the target's view of p), i.e. len(loBias).
func (o *ownExpr) dim() int {
	return len(o.loBias)
}
