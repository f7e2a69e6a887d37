// Package verify is a thin façade tying graph+deeppoly+lprelax+tighten
// together: the "downstream verification code" stand-in needed to make
// the end-to-end scenarios runnable (§8), not a new subsystem.
package verify

import (
	"github.com/openverify/nlrcore/deeppoly"
	"github.com/openverify/nlrcore/graph"
	"github.com/openverify/nlrcore/lprelax"
	"github.com/openverify/nlrcore/oracle"
	"github.com/openverify/nlrcore/relax"
)

// LPMode selects the LP-tightening orchestration policy (§6).
type LPMode int

const (
	Forward LPMode = iota
	BackwardConverge
	BackwardPMNR
)

// BoundMode selects between the base and parameterised symbolic-bound
// variants (§6).
type BoundMode int

const (
	SBT BoundMode = iota
	ParameterisedSBT
)

// Config enumerates every option named in §6, with documented defaults.
type Config struct {
	// Workers is the LP-tightener worker-pool size, >= 1. Default 1
	// (sequential fallback).
	Workers int
	// OracleFactory builds one fresh Oracle per worker. Required.
	OracleFactory func() oracle.Oracle

	SoftmaxFamily relax.SoftmaxFamily
	BoundMode     BoundMode
	LPMode        LPMode

	// RefLayer is the DeepPoly reference layer, conventionally the input
	// layer (0).
	RefLayer int

	Cutoff        map[graph.NeuronID]float64
	BackwardDepth int
	MaxRounds     int
	PMNRBranches  [][]lprelax.Tightening

	ParamCoef map[int]deeppoly.ParamCoeffs

	// Eps1 is the DeepPoly residual rounding slack, Eps2 the LP rounding
	// slack, LSE2Threshold the softmax LSE2 trigger tau, CompareEps the
	// default epsilon for bound comparisons.
	Eps1, Eps2, LSE2Threshold, CompareEps float64
}

// DefaultConfig returns the documented defaults; callers override only
// the fields their scenario needs.
func DefaultConfig() Config {
	return Config{
		Workers:       1,
		SoftmaxFamily: relax.LSEDecomposition,
		BoundMode:     SBT,
		LPMode:        BackwardConverge,
		RefLayer:      0,
		Cutoff:        make(map[graph.NeuronID]float64),
		BackwardDepth: 4,
		MaxRounds:     10,
		ParamCoef:     make(map[int]deeppoly.ParamCoeffs),
		Eps1:          1e-9,
		Eps2:          1e-7,
		LSE2Threshold: 0.9,
		CompareEps:    1e-9,
	}
}
