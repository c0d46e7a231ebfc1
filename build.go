// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"fmt"
	"time"
)

// build grows the factors from their current rank to rank by opts.Step and
// optimizes after every growth. Empty factors are first seeded from the
// mode Gram eigenvectors at opts.SVDRank when opts.SVDGuess is set, or with
// random matrices otherwise. Factors already at rank are optimized once.
func (e *engine) build(rank int, test ConvergenceTest, opts BuildOptions) (float64, error) {
	var (
		eps       = -1.0
		optimized bool
		err       error
	)
	if e.rank() == 0 && opts.SVDGuess {
		if opts.SVDRank <= 0 {
			return -1, fmt.Errorf("svd guess rank %d: %w", opts.SVDRank, ErrSVDRank)
		}
		if err := e.seedSVD(opts.SVDRank); err != nil {
			return -1, err
		}
		eps, err = e.als(test)
		if err != nil {
			return -1, err
		}
		optimized = true
	}
	for cur := e.rank(); cur < rank; cur = e.rank() {
		next := min(cur+opts.Step, rank)
		if cur == 0 {
			e.seedRandom(next)
		} else {
			e.grow(next)
		}
		eps, err = e.als(test)
		if err != nil {
			return -1, err
		}
		optimized = true
	}
	if !optimized {
		return e.als(test)
	}
	return eps, nil
}

func (e *engine) finish(eps float64) Result {
	e.stats.Runtime = time.Since(e.stats.StartTime)
	return Result{
		Error: eps,
		Rank:  e.rank(),
		Stats: *e.stats,
	}
}

func (e *engine) checkSVD(opts BuildOptions, rank int) error {
	if !opts.SVDGuess || e.rank() != 0 {
		return nil
	}
	if opts.SVDRank <= 0 || rank < opts.SVDRank {
		return fmt.Errorf("svd guess rank %d for rank %d: %w", opts.SVDRank, rank, ErrSVDRank)
	}
	return nil
}

// ComputeRank grows the decomposition from its current rank to rank,
// optimizing after every growth step.
func (e *engine) ComputeRank(rank int, test ConvergenceTest, opts BuildOptions, settings Settings) (Result, error) {
	if test == nil {
		panic("cpd: nil convergence test")
	}
	if rank <= 0 || rank < e.rank() {
		return Result{Error: -1}, fmt.Errorf("rank %d from rank %d: %w", rank, e.rank(), ErrRank)
	}
	defaultBuildOptions(&opts)
	if err := e.checkSVD(opts, rank); err != nil {
		return Result{Error: -1}, err
	}

	stats := e.begin(settings)
	stats.StartTime = time.Now()
	eps, err := e.build(rank, test, opts)
	return e.finish(eps), err
}

// ComputeRandom discards the current decomposition, seeds uniform random
// factors of the given rank and optimizes them once.
func (e *engine) ComputeRandom(rank int, test ConvergenceTest, settings Settings) (Result, error) {
	if test == nil {
		panic("cpd: nil convergence test")
	}
	if rank <= 0 {
		return Result{Error: -1}, fmt.Errorf("random rank %d: %w", rank, ErrRank)
	}

	stats := e.begin(settings)
	stats.StartTime = time.Now()
	e.seedRandom(rank)
	eps, err := e.als(test)
	return e.finish(eps), err
}

// ComputeError grows the rank by opts.Step, optimizing at every rank, until
// the error is at most target or the rank reaches maxRank. The error is
// always computed.
func (e *engine) ComputeError(test ConvergenceTest, target float64, maxRank int, opts BuildOptions, settings Settings) (Result, error) {
	if test == nil {
		panic("cpd: nil convergence test")
	}
	if maxRank <= 0 || maxRank < e.rank() {
		return Result{Error: -1}, fmt.Errorf("maximum rank %d from rank %d: %w", maxRank, e.rank(), ErrRank)
	}
	defaultBuildOptions(&opts)
	if err := e.checkSVD(opts, maxRank); err != nil {
		return Result{Error: -1}, err
	}

	settings.CalculateError = true
	stats := e.begin(settings)
	stats.StartTime = time.Now()
	for {
		next := e.rank()
		switch {
		case next == 0 && opts.SVDGuess:
			next = opts.SVDRank
		case next < maxRank:
			next = min(next+opts.Step, maxRank)
		}
		eps, err := e.build(next, test, opts)
		if err != nil {
			return e.finish(-1), err
		}
		if eps <= target || e.rank() >= maxRank {
			return e.finish(eps), nil
		}
	}
}

// ComputeGeometric optimizes at the ranks 1, step, step², … and finally
// rank. With an SVD guess the sequence starts at opts.SVDRank instead of 1.
// Ranks not above the current rank are skipped.
func (e *engine) ComputeGeometric(rank int, test ConvergenceTest, step int, opts BuildOptions, settings Settings) (Result, error) {
	if test == nil {
		panic("cpd: nil convergence test")
	}
	if step < 2 {
		return Result{Error: -1}, fmt.Errorf("geometric step %d: %w", step, ErrGeometricStep)
	}
	if rank <= 0 || rank < e.rank() {
		return Result{Error: -1}, fmt.Errorf("rank %d from rank %d: %w", rank, e.rank(), ErrRank)
	}
	defaultBuildOptions(&opts)
	if err := e.checkSVD(opts, rank); err != nil {
		return Result{Error: -1}, err
	}

	stats := e.begin(settings)
	stats.StartTime = time.Now()
	next := 1
	if e.rank() == 0 && opts.SVDGuess {
		next = opts.SVDRank
	}
	for next <= e.rank() && next < rank {
		next *= step
	}
	for {
		next = min(next, rank)
		opts.Step = next
		eps, err := e.build(next, test, opts)
		if err != nil {
			return e.finish(-1), err
		}
		if next == rank {
			return e.finish(eps), nil
		}
		next *= step
	}
}
