// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iterative

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

type spdCase struct {
	n    int
	a    []float64
	b    []float64
	want []float64
}

func randomSPD(n int, rnd *rand.Rand) spdCase {
	// Generate a symmetric positive-definite matrix A.
	a := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a[i*n+j] = rnd.Float64()
		}
	}
	for i := 0; i < n; i++ {
		a[i*n+i] += float64(n)
	}
	// Compute the right-hand side b so that the vector [1,1,...,1]
	// is the solution.
	want := make([]float64, n)
	for i := range want {
		want[i] = 1
	}
	b := make([]float64, n)
	blas64.Implementation().Dsymv(blas.Upper, n, 1, a, n, want, 1, 0, b, 1)
	return spdCase{n: n, a: a, b: b, want: want}
}

func (c spdCase) ops() MatrixOps {
	bi := blas64.Implementation()
	return MatrixOps{
		MatVec: func(dst, x []float64) {
			bi.Dsymv(blas.Upper, c.n, 1, c.a, c.n, x, 1, 0, dst, 1)
		},
	}
}

func TestCG(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 3, 4, 5, 10, 20, 50, 100} {
		tc := randomSPD(n, rnd)
		r, err := LinearSolve(tc.ops(), tc.b, &CG{}, Settings{Tolerance: 1e-14})
		if err != nil {
			t.Errorf("Case n=%v: unexpected error %v", n, err)
		}
		dist := floats.Distance(r.X, tc.want, math.Inf(1))
		if dist > 1e-10 {
			t.Errorf("Case n=%v: unexpected solution, |want-got|=%v", n, dist)
		}
	}
}

func TestCGJacobi(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	tc := randomSPD(30, rnd)
	diag := make([]float64, tc.n)
	for i := range diag {
		diag[i] = tc.a[i*tc.n+i]
	}
	settings := Settings{
		Tolerance: 1e-13,
		PSolve: func(dst, rhs []float64) error {
			floats.DivTo(dst, rhs, diag)
			return nil
		},
	}
	r, err := LinearSolve(tc.ops(), tc.b, &CG{}, settings)
	require.NoError(t, err)
	assert.Greater(t, r.Stats.PSolve, 0)
	assert.Less(t, floats.Distance(r.X, tc.want, math.Inf(1)), 1e-10)
}

func TestCGInitialGuess(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	tc := randomSPD(10, rnd)

	// An exact initial guess needs no iterations.
	r, err := LinearSolve(tc.ops(), tc.b, &CG{}, Settings{X0: tc.want})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Stats.Iterations)
	assert.Equal(t, tc.want, r.X)

	assert.Panics(t, func() {
		_, _ = LinearSolve(tc.ops(), tc.b, &CG{}, Settings{X0: make([]float64, 3)})
	})
}

func TestCGIterationLimit(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	tc := randomSPD(20, rnd)
	r, err := LinearSolve(tc.ops(), tc.b, &CG{}, Settings{MaxIterations: 1, Tolerance: 1e-14})
	assert.True(t, errors.Is(err, ErrIterationLimit))
	assert.Equal(t, 1, r.Stats.Iterations)
}

func TestCGBreakdown(t *testing.T) {
	// An indefinite matrix.
	a := MatrixOps{
		MatVec: func(dst, x []float64) {
			dst[0] = x[0]
			dst[1] = -x[1]
		},
	}
	_, err := LinearSolve(a, []float64{0, 1}, &CG{}, Settings{})
	assert.True(t, errors.Is(err, ErrBreakdown))
}
