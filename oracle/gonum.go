package oracle

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// SolveError wraps an unexpected gonum simplex failure (anything other
// than a clean infeasible result); the caller's top-level recover
// boundary treats this as the taxonomy's "solver-status unexpected" case
// (§7).
type SolveError struct {
	Err error
}

func (e *SolveError) Error() string { return fmt.Sprintf("oracle: gonum simplex: %v", e.Err) }

const simplexTol = 1e-9

// GonumOracle is the production Oracle backed by gonum's dense-tableau
// simplex solver. One instance is built per worker and reused across
// queries via ResetModel/Reset.
type GonumOracle struct {
	vars      map[string]varBound
	order     []string
	cons      []constraint
	cost      []Term
	cutoffOn  bool
	cutoffVal float64
	timeLimit time.Duration

	lastStatus Status
	lastSol    map[string]float64
	lastObj    float64
}

// NewGonumOracle returns a fresh, empty oracle.
func NewGonumOracle() *GonumOracle {
	return &GonumOracle{vars: make(map[string]varBound)}
}

func (o *GonumOracle) AddVariable(name string, lb, ub float64) {
	if _, ok := o.vars[name]; ok {
		return
	}
	o.vars[name] = varBound{lb, ub}
	o.order = append(o.order, name)
}

func (o *GonumOracle) ContainsVariable(name string) bool {
	_, ok := o.vars[name]
	return ok
}

func (o *GonumOracle) AddConstraint(kind ConstraintKind, terms []Term, rhs float64) {
	cp := make([]Term, len(terms))
	copy(cp, terms)
	o.cons = append(o.cons, constraint{kind, cp, rhs})
}

func (o *GonumOracle) SetMinimizationCost(terms []Term) {
	cp := make([]Term, len(terms))
	copy(cp, terms)
	o.cost = cp
}

func (o *GonumOracle) SetCutoff(value float64, active bool) {
	o.cutoffVal, o.cutoffOn = value, active
}

func (o *GonumOracle) SetTimeLimit(d time.Duration) { o.timeLimit = d }

func (o *GonumOracle) Reset() {
	o.vars = make(map[string]varBound)
	o.order = nil
	o.cons = nil
	o.cost = nil
	o.cutoffOn = false
}

func (o *GonumOracle) ResetModel() {
	o.cost = nil
	o.cutoffOn = false
}

// Solve builds the standard-form system (shift every variable to start at
// zero, add a slack per inequality, plus one extra Le row per finite upper
// bound since lp.Simplex only knows x>=0) and hands it to lp.Simplex, which
// runs its own Phase I to find a basic feasible solution.
func (o *GonumOracle) Solve() Status {
	n := len(o.order)
	idx := make(map[string]int, n)
	for i, name := range o.order {
		idx[name] = i
	}

	nBounded := 0
	for _, name := range o.order {
		if !math.IsInf(o.vars[name].ub, 1) {
			nBounded++
		}
	}

	nSlack := nBounded
	for _, c := range o.cons {
		if c.kind != Eq {
			nSlack++
		}
	}
	width := n + nSlack
	rows := len(o.cons) + nBounded

	A := mat.NewDense(rows, width, nil)
	b := make([]float64, rows)
	slackCol := n
	r := 0
	for _, name := range o.order {
		vb := o.vars[name]
		if math.IsInf(vb.ub, 1) {
			continue
		}
		A.Set(r, idx[name], 1)
		A.Set(r, slackCol, 1)
		slackCol++
		b[r] = vb.ub - vb.lb
		r++
	}
	for _, c := range o.cons {
		rhs := c.rhs
		for _, t := range c.terms {
			j, ok := idx[t.Var]
			if !ok {
				continue
			}
			vb := o.vars[t.Var]
			A.Set(r, j, A.At(r, j)+t.Coef)
			rhs -= t.Coef * vb.lb
		}
		switch c.kind {
		case Le:
			A.Set(r, slackCol, 1)
			slackCol++
		case Ge:
			A.Set(r, slackCol, -1)
			slackCol++
		}
		b[r] = rhs
		r++
	}

	c := make([]float64, width)
	for _, t := range o.cost {
		if j, ok := idx[t.Var]; ok {
			c[j] += t.Coef
		}
	}

	optF, optX, err := lp.Simplex(c, A, b, simplexTol, nil)
	if err != nil {
		if err == lp.ErrInfeasible {
			o.lastStatus = StatusInfeasible
			return StatusInfeasible
		}
		panic(&SolveError{Err: err})
	}

	sol := make(map[string]float64, n)
	for name, j := range idx {
		vb := o.vars[name]
		sol[name] = vb.lb + optX[j]
	}

	// optF is the objective over the shifted (x - lb) variables; add back
	// the constant each cost term picked up from the lb shift.
	shiftConst := 0.0
	for _, t := range o.cost {
		shiftConst += t.Coef * o.vars[t.Var].lb
	}
	o.lastStatus = StatusOptimal
	o.lastSol = sol
	o.lastObj = optF + shiftConst

	if o.cutoffOn && o.lastObj >= o.cutoffVal {
		o.lastStatus = StatusCutoff
	}
	return o.lastStatus
}

func (o *GonumOracle) ExtractSolution() (map[string]float64, float64) {
	return o.lastSol, o.lastObj
}

func (o *GonumOracle) GetObjectiveBound() float64 {
	return o.lastObj
}
