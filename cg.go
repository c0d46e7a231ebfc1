// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"errors"
	"fmt"

	"github.com/vladimir-ch/cpd/internal/iterative"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// cgTolerance is the relative residual tolerance of a row solve.
const cgTolerance = 1e-12

// solveCG solves A V = mtkrp one row at a time with Jacobi-preconditioned
// conjugate gradients. Every row starts from the current factor matrix of
// mode n scaled by the weights, which is close to the solution once ALS
// settles.
func (e *engine) solveCG(n int, v *mat.SymDense, mtkrp *mat.Dense) (*mat.Dense, error) {
	rows, r := mtkrp.Dims()
	diag := make([]float64, r)
	for i := range diag {
		diag[i] = v.At(i, i)
		if diag[i] == 0 {
			diag[i] = 1
		}
	}
	ops := iterative.MatrixOps{
		MatVec: func(dst, x []float64) {
			mat.NewVecDense(r, dst).MulVec(v, mat.NewVecDense(r, x))
		},
	}
	settings := iterative.Settings{
		Tolerance: cgTolerance,
		PSolve: func(dst, rhs []float64) error {
			floats.DivTo(dst, rhs, diag)
			return nil
		},
	}

	prev := e.factors.Modes[n]
	pr, pc := prev.Dims()
	warm := pr == rows && pc == r && len(e.factors.Lambda) == r
	x0 := make([]float64, r)

	out := mat.NewDense(rows, r, nil)
	var limited int
	for i := 0; i < rows; i++ {
		settings.X0 = nil
		if warm {
			floats.MulTo(x0, prev.RawRowView(i), e.factors.Lambda)
			settings.X0 = x0
		}
		res, err := iterative.LinearSolve(ops, mtkrp.RawRowView(i), &iterative.CG{}, settings)
		switch {
		case errors.Is(err, iterative.ErrIterationLimit):
			limited++
		case err != nil:
			return nil, fmt.Errorf("cg solve of mode %d row %d: %w", n, i, err)
		}
		copy(out.RawRowView(i), res.X)
	}
	if limited > 0 {
		e.log.Debug("cpd: cg iteration limit reached", "mode", n, "rows", limited)
	}
	return out, nil
}
