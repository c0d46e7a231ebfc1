// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpd computes canonical polyadic (CP) decompositions of dense
// tensors by alternating least squares (ALS).
//
// A CP decomposition of rank R approximates an N-mode tensor T by a sum of R
// rank-one tensors,
//  T ≈ Σ_r λ_r a_0[:,r] ∘ a_1[:,r] ∘ … ∘ a_{N-1}[:,r],
// stored as one factor matrix per mode with unit-norm columns and a weight
// vector λ.
//
// CPALS decomposes a single reference tensor. CPDFALS decomposes a tensor
// given implicitly as the contraction T = BᵀZ of two tensors over their
// first mode. Both implement Decomposer.
package cpd

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/vladimir-ch/cpd/tensor"
)

// UpdateMethod selects how the matrix-times-Khatri-Rao product (MtKRP) of a
// mode update is formed.
type UpdateMethod int

const (
	// Direct contracts the reference tensor with one factor matrix at a
	// time and never forms the Khatri-Rao product.
	Direct UpdateMethod = iota
	// KhatriRao forms the Khatri-Rao product of all other factor matrices
	// and multiplies it with the mode unfolding.
	KhatriRao
)

// PinvPolicy selects how the normal equations
//  A_n V = MtKRP
// of a mode update are solved, where V is the Hadamard product of the Gram
// matrices of all other factor matrices.
type PinvPolicy int

const (
	// PinvSVD multiplies by the SVD-based pseudoinverse of V.
	PinvSVD PinvPolicy = iota
	// PinvCholesky solves with a Cholesky factorization of V. A V that is
	// not positive definite is an error.
	PinvCholesky
	// PinvCholeskyFallback solves with a Cholesky factorization of V and
	// falls back to PinvSVD when the factorization fails.
	PinvCholeskyFallback
	// PinvLU multiplies by the inverse of V computed by LU factorization.
	PinvLU
	// PinvCG solves every row of the system by preconditioned conjugate
	// gradients, starting from the current factor matrix.
	PinvCG
)

func (p PinvPolicy) String() string {
	switch p {
	case PinvSVD:
		return "svd"
	case PinvCholesky:
		return "cholesky"
	case PinvCholeskyFallback:
		return "cholesky-fallback"
	case PinvLU:
		return "lu"
	case PinvCG:
		return "cg"
	}
	return "unknown"
}

// Settings holds settings for computing
// a decomposition.
type Settings struct {
	// MaxIterations is the limit on the
	// number of ALS sweeps of a single
	// optimization at fixed rank.
	// If it is zero, it will be set to
	// 1e4.
	MaxIterations int

	// Update selects the MtKRP method.
	Update UpdateMethod

	// Pinv selects the solver of the
	// normal equations.
	Pinv PinvPolicy

	// CalculateError requests the exact
	// Frobenius norm of the difference
	// between the reference tensor and
	// its reconstruction when the
	// convergence test does not track a
	// fit.
	CalculateError bool

	// Rand is the source of the random
	// initial guesses.
	// If it is nil, a generator seeded
	// from the clock is used.
	Rand *rand.Rand

	// Logger receives debug records
	// about finished optimizations.
	// If it is nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

func defaultSettings(s *Settings) {
	if s.MaxIterations == 0 {
		s.MaxIterations = 1e4
	}
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
}

// BuildOptions controls how the rank of the
// decomposition grows towards the target.
type BuildOptions struct {
	// Step is the rank increment between
	// two optimizations. If it is zero,
	// it will be set to 1.
	Step int

	// SVDGuess seeds an empty
	// decomposition with the leading
	// eigenvectors of the Gram matrix of
	// every mode unfolding.
	SVDGuess bool

	// SVDRank is the rank of the seeded
	// decomposition. It must be positive
	// if SVDGuess is set.
	SVDRank int
}

func defaultBuildOptions(o *BuildOptions) {
	if o.Step <= 0 {
		o.Step = 1
	}
}

// Panel is the outcome of one panel of a PALS build.
type Panel struct {
	Rank  int
	Error float64
}

// Result holds the result of a decomposition.
type Result struct {
	// Error is the final reconstruction
	// error, or -1 if it was not
	// computed.
	Error float64
	// Rank is the final rank.
	Rank int
	// Panels holds the rank and error
	// after every panel of a PALS build.
	Panels []Panel
	// Stats holds the statistics of the
	// decomposition.
	Stats Stats
}

// Stats holds statistics about a decomposition.
type Stats struct {
	// Optimizations is the number of ALS
	// optimizations at fixed rank.
	Optimizations int
	// Sweeps is the total number of ALS
	// sweeps over all modes.
	Sweeps int
	// Converged reports whether the last
	// optimization satisfied its
	// convergence test.
	Converged bool
	// StartTime is an approximate time
	// when the decomposition was started.
	StartTime time.Time
	// Runtime is an approximate duration
	// of the decomposition.
	Runtime time.Duration
}

// Decomposer computes CP decompositions.
type Decomposer interface {
	// ComputeRank grows the decomposition to the given rank.
	ComputeRank(rank int, test ConvergenceTest, opts BuildOptions, settings Settings) (Result, error)
	// ComputeRandom seeds a random decomposition at the given rank and
	// optimizes it.
	ComputeRandom(rank int, test ConvergenceTest, settings Settings) (Result, error)
	// ComputeError grows the rank until the error is at most target or
	// the rank reaches maxRank.
	ComputeError(test ConvergenceTest, target float64, maxRank int, opts BuildOptions, settings Settings) (Result, error)
	// ComputeGeometric grows the rank geometrically by step up to rank.
	ComputeGeometric(rank int, test ConvergenceTest, step int, opts BuildOptions, settings Settings) (Result, error)
	// ComputePALS builds the decomposition in panels.
	ComputePALS(tests []ConvergenceTest, step float64, panels int, settings Settings) (Result, error)

	// Factors returns the current decomposition.
	Factors() *Factors
	// Reconstruct returns the tensor represented by the current
	// decomposition.
	Reconstruct() *tensor.Dense
}

func reuse(v []float64, n int) []float64 {
	if cap(v) < n {
		return make([]float64, n)
	}
	return v[:n]
}
