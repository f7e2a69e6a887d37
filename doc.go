/*
Package nlrcore is the overall repository for the non-linear-relaxation
bound-tightening engine. This top level has no functional code -- it is
organized into the following sub-packages:

* graph: the layer-graph data model a verification problem is built as --
a DAG of fixed-size layers ranging over affine transforms and the
activation families in the per-activation relaxation table.

* relax: the per-activation relaxation table, one file per activation
family, each a point-evaluation function plus its DeepPoly envelope.

* deeppoly: the DeepPoly-style symbolic bound-propagation engine, which
back-substitutes sign-aware through the graph to concretize every
neuron's interval bounds against a reference layer.

* lprelax: the LP-relaxation builder, turning a graph and a bound horizon
into variables and constraints for a black-box LP oracle.

* oracle: the LP solver capability interface, a gonum-backed production
adapter, and a deterministic in-memory mock for tests.

* tighten: the worker-pool LP bound tightener, including forward,
backward-converge and per-multi-neuron-reasoning (PMNR) modes.

* verify: the façade tying the packages above into a single propagate-
and-tighten run.
*/
package nlrcore
