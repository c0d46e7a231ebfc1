// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"fmt"

	"github.com/vladimir-ch/cpd/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// update replaces the factor matrix of mode n by the solution of its normal
// equations with all other factor matrices fixed and returns the MtKRP it
// used.
func (e *engine) update(n int) (*mat.Dense, error) {
	m := e.mtkrp(n)
	a, err := e.solve(n, m)
	if err != nil {
		return nil, err
	}
	e.factors.Modes[n] = a
	e.normalize(n)
	return m, nil
}

// mtkrp returns the MtKRP of mode n for the current factors using the
// configured update method.
func (e *engine) mtkrp(n int) *mat.Dense {
	switch e.settings.Update {
	case Direct:
		return e.v.direct(&e.factors, n)
	case KhatriRao:
		return e.mtkrpKRP(n)
	}
	panic("cpd: unknown update method")
}

// mtkrpKRP returns X_(n) KRP(A_k, k≠n) with the Khatri-Rao product formed
// explicitly. The first remaining mode varies slowest, matching the column
// order of the unfolding.
func (e *engine) mtkrpKRP(n int) *mat.Dense {
	var krp *mat.Dense
	for k, a := range e.factors.Modes {
		if k == n {
			continue
		}
		if krp == nil {
			krp = a
			continue
		}
		var err error
		krp, err = linalg.KhatriRao(krp, a)
		if err != nil {
			panic(err)
		}
	}
	var m mat.Dense
	m.Mul(e.v.reference().Unfold(n), krp)
	return &m
}

// solve returns the solution A of A V = mtkrp, where V is the Hadamard
// product of the Gram matrices of all factor matrices except mode n.
func (e *engine) solve(n int, mtkrp *mat.Dense) (*mat.Dense, error) {
	v := linalg.HadamardGram(e.factors.Modes, n)
	switch e.settings.Pinv {
	case PinvSVD:
	case PinvCholesky, PinvCholeskyFallback:
		if a, ok := linalg.CholeskySolve(v, mtkrp); ok {
			return a, nil
		}
		if e.settings.Pinv == PinvCholesky {
			return nil, fmt.Errorf("cholesky solve of mode %d: %w", n, linalg.ErrSingular)
		}
		e.log.Debug("cpd: cholesky failed, using pseudoinverse", "mode", n, "rank", e.rank())
	case PinvLU:
		inv, err := linalg.Inverse(v)
		if err != nil {
			return nil, fmt.Errorf("inverse of mode %d: %w", n, err)
		}
		var a mat.Dense
		a.Mul(mtkrp, inv)
		return &a, nil
	case PinvCG:
		return e.solveCG(n, v, mtkrp)
	default:
		panic("cpd: unknown pseudoinverse policy")
	}

	pinv, err := linalg.PseudoInverse(v)
	if err != nil {
		return nil, fmt.Errorf("pseudoinverse of mode %d: %w", n, err)
	}
	var a mat.Dense
	a.Mul(mtkrp, pinv)
	return &a, nil
}
