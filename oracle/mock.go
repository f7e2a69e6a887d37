package oracle

import (
	"time"
)

type varBound struct{ lb, ub float64 }

type constraint struct {
	kind  ConstraintKind
	terms []Term
	rhs   float64
}

// ScriptedResult is one pre-programmed Solve response for MockOracle.
type ScriptedResult struct {
	Status     Status
	Solution   map[string]float64
	Objective  float64
	ObjBound   float64
}

// MockOracle is a deterministic, in-memory Oracle used by tests. With no
// Script installed, Solve never reports an improvement over a variable's
// own declared bounds: it picks the feasible point at the target
// variable's current bound on the side the objective's sign favors, so it
// is safe to exercise worker-pool orchestration (queueing, cutoff,
// interruption, counters) without asserting anything about LP-solving
// power. Tests that need to assert a specific tightened value install a
// Script instead; each Solve call consumes the next scripted result.
type MockOracle struct {
	vars      map[string]varBound
	order     []string
	cons      []constraint
	cost      []Term
	cutoffOn  bool
	cutoffVal float64
	timeLimit time.Duration

	Script    []ScriptedResult
	scriptIdx int

	lastStatus Status
	lastSol    map[string]float64
	lastObj    float64
	lastBound  float64
}

// NewMockOracle returns a fresh, empty mock.
func NewMockOracle() *MockOracle {
	return &MockOracle{vars: make(map[string]varBound)}
}

func (m *MockOracle) AddVariable(name string, lb, ub float64) {
	if _, ok := m.vars[name]; ok {
		return
	}
	m.vars[name] = varBound{lb, ub}
	m.order = append(m.order, name)
}

func (m *MockOracle) ContainsVariable(name string) bool {
	_, ok := m.vars[name]
	return ok
}

func (m *MockOracle) AddConstraint(kind ConstraintKind, terms []Term, rhs float64) {
	cp := make([]Term, len(terms))
	copy(cp, terms)
	m.cons = append(m.cons, constraint{kind, cp, rhs})
}

func (m *MockOracle) SetMinimizationCost(terms []Term) {
	cp := make([]Term, len(terms))
	copy(cp, terms)
	m.cost = cp
}

func (m *MockOracle) SetCutoff(value float64, active bool) {
	m.cutoffVal, m.cutoffOn = value, active
}

func (m *MockOracle) SetTimeLimit(d time.Duration) { m.timeLimit = d }

// Reset clears the LP model only. Script/scriptIdx are a test-harness
// concern, not part of the model, and survive Reset so a caller can
// pre-load a Script before handing the oracle to a multi-neuron
// tightening run and have every Solve call consume it in order.
func (m *MockOracle) Reset() {
	m.vars = make(map[string]varBound)
	m.order = nil
	m.cons = nil
	m.cost = nil
	m.cutoffOn = false
}

func (m *MockOracle) ResetModel() {
	m.cost = nil
	m.cutoffOn = false
}

func (m *MockOracle) Solve() Status {
	if m.Script != nil {
		if m.scriptIdx >= len(m.Script) {
			panic("oracle: mock script exhausted")
		}
		r := m.Script[m.scriptIdx]
		m.scriptIdx++
		m.lastStatus, m.lastSol, m.lastObj, m.lastBound = r.Status, r.Solution, r.Objective, r.ObjBound
		return r.Status
	}

	sol := make(map[string]float64, len(m.order))
	obj := 0.0
	for _, t := range m.cost {
		vb := m.vars[t.Var]
		v := vb.ub
		if t.Coef > 0 {
			v = vb.lb
		}
		sol[t.Var] = v
		obj += t.Coef * v
	}
	for _, name := range m.order {
		if _, ok := sol[name]; !ok {
			vb := m.vars[name]
			sol[name] = (vb.lb + vb.ub) / 2
		}
	}
	m.lastStatus, m.lastSol, m.lastObj, m.lastBound = StatusOptimal, sol, obj, obj
	return StatusOptimal
}

func (m *MockOracle) ExtractSolution() (map[string]float64, float64) {
	return m.lastSol, m.lastObj
}

func (m *MockOracle) GetObjectiveBound() float64 {
	return m.lastBound
}
