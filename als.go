// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// als optimizes the factors at their current rank. Every sweep updates the
// modes in order, each update seeing the modes already updated in the same
// sweep; dependent modes copy their canonical mode. test is asked after
// every sweep and the optimization ends when it reports convergence or after
// Settings.MaxIterations sweeps. Exhausting the sweeps is not an error.
func (e *engine) als(test ConvergenceTest) (float64, error) {
	e.v.reset()
	rec, _ := test.(MtKRPRecorder)

	var (
		sweeps    int
		converged bool
	)
	for !converged && sweeps < e.settings.MaxIterations {
		sweeps++
		for n, s := range e.symm {
			if s != n {
				e.factors.Modes[n] = mat.DenseCopyOf(e.factors.Modes[s])
				// Contractions cached by the variant may hold the
				// previous copy.
				e.v.reset()
				continue
			}
			m, err := e.update(n)
			if err != nil {
				e.stats.Sweeps += sweeps
				return -1, err
			}
			if rec != nil {
				rec.SetMtKRP(n, m)
			}
		}
		if last := len(e.symm) - 1; rec != nil && e.symm[last] != last {
			// The copies made after the last update changed the
			// factors the recorded MtKRP was formed from.
			rec.SetMtKRP(last, e.mtkrp(last))
		}
		converged = test.Converged(&e.factors)
	}

	e.stats.Optimizations++
	e.stats.Sweeps += sweeps
	e.stats.Converged = converged

	eps := e.reconstructionError(test)
	e.log.Debug("cpd: optimization finished",
		"rank", e.rank(), "sweeps", sweeps, "converged", converged, "error", eps)
	return eps, nil
}

// reconstructionError returns 1 - fit if test tracks the fit, the exact
// reconstruction error if it was requested and -1 otherwise.
func (e *engine) reconstructionError(test ConvergenceTest) float64 {
	if f, ok := test.(Fitter); ok {
		return 1 - f.Fit()
	}
	if !e.settings.CalculateError {
		return -1
	}
	return floats.Distance(e.Reconstruct().Data(), e.v.reference().Data(), 2)
}
