// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sweepRecorder never converges and records the exact reconstruction error
// after every sweep.
type sweepRecorder struct {
	ref  *tensor.Dense
	errs []float64
}

func (r *sweepRecorder) Converged(f *Factors) bool {
	r.errs = append(r.errs, floats.Distance(f.Reconstruct().Data(), r.ref.Data(), 2))
	return false
}

func TestErrorMonotone(t *testing.T) {
	for _, update := range []UpdateMethod{Direct, KhatriRao} {
		rnd := rand.New(rand.NewSource(1))
		x := randomTensor(rnd, 4, 5, 3)
		c, err := NewCPALS(x, nil)
		require.NoError(t, err)
		rec := &sweepRecorder{ref: x}
		settings := testSettings(1)
		settings.MaxIterations = 30
		settings.Update = update
		res, err := c.ComputeRandom(3, rec, settings)
		require.NoError(t, err)
		assert.False(t, res.Stats.Converged)
		assert.Equal(t, 30, res.Stats.Sweeps)
		assert.Equal(t, -1.0, res.Error)
		require.Len(t, rec.errs, 30)
		for i := 1; i < len(rec.errs); i++ {
			if rec.errs[i] > rec.errs[i-1]+1e-10 {
				t.Errorf("update %v: error increased in sweep %d: %v > %v", update, i, rec.errs[i], rec.errs[i-1])
			}
		}
	}
}

func TestSymmetricModesEqual(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	c, err := NewCPALS(randomTensor(rnd, 4, 4, 3, 4), []int{0, 0, 2, 1})
	require.NoError(t, err)
	settings := testSettings(1)
	settings.MaxIterations = 5
	_, err = c.ComputeRandom(3, &NormCheck{Tolerance: 1e-10}, settings)
	require.NoError(t, err)
	f := c.Factors()
	assert.True(t, mat.Equal(f.Modes[1], f.Modes[0]))
	assert.True(t, mat.Equal(f.Modes[3], f.Modes[1]))
	checkUnitColumns(t, f)
}

func TestExactRank(t *testing.T) {
	for _, test := range []struct {
		name     string
		settings func(*Settings)
		opts     BuildOptions
		random   bool
	}{
		{name: "random", random: true},
		{name: "random/khatri-rao", random: true, settings: func(s *Settings) { s.Update = KhatriRao }},
		{name: "random/cholesky", random: true, settings: func(s *Settings) { s.Pinv = PinvCholeskyFallback }},
		{name: "random/cg", random: true, settings: func(s *Settings) { s.Pinv = PinvCG }},
		{name: "svd", opts: BuildOptions{SVDGuess: true, SVDRank: 3}},
	} {
		t.Run(test.name, func(t *testing.T) {
			rnd := rand.New(rand.NewSource(1))
			x := lowRank(rnd, 3, 5, 6, 7)
			c, err := NewCPALS(x, nil)
			require.NoError(t, err)
			settings := testSettings(2)
			settings.CalculateError = true
			if test.settings != nil {
				test.settings(&settings)
			}
			var res Result
			if test.random {
				res, err = c.ComputeRandom(3, &NormCheck{Tolerance: 1e-13}, settings)
			} else {
				res, err = c.ComputeRank(3, &NormCheck{Tolerance: 1e-13}, test.opts, settings)
			}
			require.NoError(t, err)
			assert.Equal(t, 3, res.Rank)
			assert.Less(t, res.Error, 1e-8)
			checkUnitColumns(t, c.Factors())
		})
	}
}

func TestDualTensorExactRank(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	// B and Z built from shared rank-one terms give T = BᵀZ of rank 2.
	f := randomFactors(rnd, 2, 6, 4, 5, 3)
	left := (&Factors{Modes: f.Modes[:3], Lambda: f.Lambda}).Reconstruct()
	right := (&Factors{Modes: []*mat.Dense{f.Modes[0], f.Modes[3]}, Lambda: f.Lambda}).Reconstruct()

	df, err := NewCPDFALS(left, right, nil)
	require.NoError(t, err)
	settings := testSettings(3)
	settings.CalculateError = true
	res, err := df.ComputeRank(2, &NormCheck{Tolerance: 1e-13}, BuildOptions{SVDGuess: true, SVDRank: 2}, settings)
	require.NoError(t, err)
	assert.Less(t, res.Error/df.reference().Norm(), 1e-8)
	assert.Equal(t, []int{4, 5, 3}, df.Reconstruct().Shape())
}

func TestBuildSteps(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	c, err := NewCPALS(randomTensor(rnd, 4, 4, 4), nil)
	require.NoError(t, err)
	settings := testSettings(1)
	settings.MaxIterations = 20
	res, err := c.ComputeRank(5, &NormCheck{Tolerance: 1e-8}, BuildOptions{Step: 2}, settings)
	require.NoError(t, err)
	// Ranks 2, 4 and 5.
	assert.Equal(t, 3, res.Stats.Optimizations)
	assert.Equal(t, 5, res.Rank)

	// Continuing at the same rank optimizes once more.
	res, err = c.ComputeRank(5, &NormCheck{Tolerance: 1e-8}, BuildOptions{}, settings)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Optimizations)

	_, err = c.ComputeRank(4, &NormCheck{Tolerance: 1e-8}, BuildOptions{}, settings)
	assert.True(t, errors.Is(err, ErrRank))
}

func TestConfigurationErrors(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	c, err := NewCPALS(randomTensor(rnd, 3, 3, 3), nil)
	require.NoError(t, err)
	test := &NormCheck{Tolerance: 1e-6}
	settings := testSettings(1)

	_, err = c.ComputeRank(3, test, BuildOptions{SVDGuess: true}, settings)
	assert.True(t, errors.Is(err, ErrSVDRank))
	_, err = c.ComputeRank(3, test, BuildOptions{SVDGuess: true, SVDRank: 4}, settings)
	assert.True(t, errors.Is(err, ErrSVDRank))
	_, err = c.ComputeRank(0, test, BuildOptions{}, settings)
	assert.True(t, errors.Is(err, ErrRank))
	_, err = c.ComputeRandom(-1, test, settings)
	assert.True(t, errors.Is(err, ErrRank))
	_, err = c.ComputeGeometric(4, test, 1, BuildOptions{}, settings)
	assert.True(t, errors.Is(err, ErrGeometricStep))
	_, err = c.ComputeError(test, 0.1, 0, BuildOptions{}, settings)
	assert.True(t, errors.Is(err, ErrRank))

	tests := []ConvergenceTest{test, test, test}
	_, err = c.ComputePALS(tests, 0, 3, settings)
	assert.True(t, errors.Is(err, ErrPanelStep))
	_, err = c.ComputePALS(tests, 0.5, 4, settings)
	assert.True(t, errors.Is(err, ErrConvergenceTests))

	// Nothing was computed.
	assert.Equal(t, 0, c.Factors().Rank())
	assert.Panics(t, func() { _, _ = c.ComputeRandom(2, nil, settings) })
}

func TestPALS(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	x := randomTensor(rnd, 5, 5, 5)
	c, err := NewCPALS(x, nil)
	require.NoError(t, err)

	tests := make([]ConvergenceTest, 4)
	for i := range tests {
		tests[i] = &NormCheck{Tolerance: 1e-8}
	}
	settings := testSettings(1)
	settings.CalculateError = true
	settings.MaxIterations = 500
	res, err := c.ComputePALS(tests, 0.5, 4, settings)
	require.NoError(t, err)
	require.Len(t, res.Panels, 4)

	ranks := make([]int, len(res.Panels))
	for i, p := range res.Panels {
		ranks[i] = p.Rank
	}
	assert.Equal(t, []int{5, 7, 9, 11}, ranks)
	for i := 1; i < len(res.Panels); i++ {
		prev, cur := res.Panels[i-1].Error, res.Panels[i].Error
		if cur > prev+1e-2*res.Panels[0].Error {
			t.Errorf("panel %d: error increased from %v to %v", i, prev, cur)
		}
	}
	assert.Equal(t, 11, res.Rank)
	assert.Equal(t, res.Panels[3].Error, res.Error)
	checkUnitColumns(t, c.Factors())
}

func TestComputeError(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	x := lowRank(rnd, 2, 5, 4, 6)
	c, err := NewCPALS(x, nil)
	require.NoError(t, err)
	res, err := c.ComputeError(&NormCheck{Tolerance: 1e-13}, 1e-6, 5, BuildOptions{}, testSettings(1))
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Error, 1e-6)
	assert.GreaterOrEqual(t, res.Rank, 2)
	assert.Equal(t, res.Rank, res.Stats.Optimizations)
}

func TestComputeGeometric(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	c, err := NewCPALS(randomTensor(rnd, 4, 4, 4), nil)
	require.NoError(t, err)
	settings := testSettings(1)
	settings.MaxIterations = 50
	res, err := c.ComputeGeometric(5, &NormCheck{Tolerance: 1e-8}, 2, BuildOptions{}, settings)
	require.NoError(t, err)
	// Ranks 1, 2, 4 and 5.
	assert.Equal(t, 4, res.Stats.Optimizations)
	assert.Equal(t, 5, res.Rank)
	assert.Equal(t, -1.0, res.Error)
}

func TestCompress(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	x := lowRank(rnd, 2, 6, 7, 5)
	norm := x.Norm()

	c, err := NewCPALS(x, nil)
	require.NoError(t, err)
	settings := testSettings(1)
	settings.CalculateError = true

	res, err := c.CompressTucker(1e-10, &NormCheck{Tolerance: 1e-13}, 2, settings)
	require.NoError(t, err)
	assert.Less(t, res.Error/norm, 1e-7)
	r, k := c.Factors().Modes[1].Dims()
	assert.Equal(t, 7, r)
	assert.Equal(t, 2, k)
	checkUnitColumns(t, c.Factors())
	assert.Equal(t, []int{6, 7, 5}, c.Reconstruct().Shape())

	res, err = c.CompressRandom(3, &NormCheck{Tolerance: 1e-13}, 2, 2, 2, settings)
	require.NoError(t, err)
	assert.Less(t, res.Error/norm, 1e-7)
	assert.Equal(t, []int{6, 7, 5}, c.Reconstruct().Shape())

	_, err = c.CompressTucker(1e-10, &NormCheck{Tolerance: 1e-13}, 0, settings)
	assert.True(t, errors.Is(err, ErrRank))
	_, err = c.CompressRandom(0, &NormCheck{Tolerance: 1e-13}, 2, 2, 2, settings)
	assert.True(t, errors.Is(err, ErrRank))
}

func TestDualTensorSymmetricExactRank(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	// With orthonormal connecting columns, B = Z gives
	// T = Σ_r a_r ∘ b_r ∘ a_r ∘ b_r of rank 2.
	f := randomFactors(rnd, 2, 3, 4, 5)
	f.Modes[0] = mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		0, 0,
	})
	b := f.Reconstruct()

	df, err := NewCPDFALS(b, b.Clone(), []int{0, 1, 0, 1})
	require.NoError(t, err)
	settings := testSettings(3)
	settings.CalculateError = true
	res, err := df.ComputeRank(2, &NormCheck{Tolerance: 1e-13}, BuildOptions{SVDGuess: true, SVDRank: 2}, settings)
	require.NoError(t, err)
	assert.Less(t, res.Error/df.reference().Norm(), 1e-6)

	g := df.Factors()
	assert.True(t, mat.Equal(g.Modes[2], g.Modes[0]))
	assert.True(t, mat.Equal(g.Modes[3], g.Modes[1]))
}
