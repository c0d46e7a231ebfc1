// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"math"

	"github.com/vladimir-ch/cpd/internal/linalg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ConvergenceTest decides after every ALS sweep whether an optimization at
// fixed rank has converged. A ConvergenceTest is stateful and must not be
// shared between concurrent decompositions.
type ConvergenceTest interface {
	Converged(f *Factors) bool
}

// MtKRPRecorder is implemented by convergence tests that want to see the
// matrix-times-Khatri-Rao product of every mode update. SetMtKRP is called
// after the factor matrix of mode has been replaced; m must not be retained
// past the next call.
type MtKRPRecorder interface {
	SetMtKRP(mode int, m *mat.Dense)
}

// Fitter is implemented by convergence tests that track the fit
//  1 - ‖T - T̃‖_F / ‖T‖_F
// of the decomposition. The error of an optimization finished with a Fitter
// is 1 - Fit().
type Fitter interface {
	Fit() float64
}

// NormCheck converges when the factor matrices stop changing: the sum over
// modes of the root mean square change of the entries since the previous
// sweep falls below Tolerance. The state is reset whenever the rank changes.
type NormCheck struct {
	// Tolerance must be positive.
	Tolerance float64

	prev []*mat.Dense
}

// Converged implements the ConvergenceTest interface.
func (c *NormCheck) Converged(f *Factors) bool {
	if c.Tolerance <= 0 {
		panic("cpd: non-positive tolerance")
	}
	if !c.comparable(f) {
		c.store(f)
		return false
	}
	var diff float64
	var d mat.Dense
	for i, a := range f.Modes {
		r, k := a.Dims()
		d.Reset()
		d.Sub(a, c.prev[i])
		nrm := mat.Norm(&d, 2)
		diff += math.Sqrt(nrm * nrm / float64(r*k))
	}
	c.store(f)
	return diff < c.Tolerance
}

func (c *NormCheck) comparable(f *Factors) bool {
	if len(c.prev) != len(f.Modes) {
		return false
	}
	for i, a := range f.Modes {
		r, k := a.Dims()
		pr, pk := c.prev[i].Dims()
		if r != pr || k != pk {
			return false
		}
	}
	return true
}

func (c *NormCheck) store(f *Factors) {
	c.prev = c.prev[:0]
	for _, a := range f.Modes {
		c.prev = append(c.prev, mat.DenseCopyOf(a))
	}
}

// FitCheck converges when the fit of the decomposition changes by less than
// Tolerance in two consecutive sweeps. The fit is computed in O(R²) work from
// the MtKRP of the last updated mode, without reconstructing the tensor. The
// state is reset whenever the rank changes.
type FitCheck struct {
	// Tolerance must be positive.
	Tolerance float64
	// Norm is the Frobenius norm of the
	// reference tensor. It must be
	// positive.
	Norm float64

	mode  int
	mtkrp *mat.Dense

	rank    int
	started bool
	prev    float64
	small   int
	fit     float64
}

// SetMtKRP implements the MtKRPRecorder interface.
func (c *FitCheck) SetMtKRP(mode int, m *mat.Dense) {
	c.mode = mode
	if c.mtkrp == nil {
		c.mtkrp = &mat.Dense{}
	}
	c.mtkrp.Reset()
	c.mtkrp.CloneFrom(m)
}

// Converged implements the ConvergenceTest interface.
func (c *FitCheck) Converged(f *Factors) bool {
	if c.Tolerance <= 0 || c.Norm <= 0 {
		panic("cpd: non-positive tolerance or norm")
	}
	if c.mtkrp == nil {
		return false
	}
	if r := f.Rank(); r != c.rank {
		c.rank = r
		c.started = false
		c.small = 0
	}

	// ⟨T, T̃⟩ = Σ_ir MtKRP[i,r] A_n[i,r] λ_r
	a := f.Modes[c.mode]
	rows, _ := a.Dims()
	var iprod float64
	for i := 0; i < rows; i++ {
		m := c.mtkrp.RawRowView(i)
		ar := a.RawRowView(i)
		for r, v := range m {
			iprod += v * ar[r] * f.Lambda[r]
		}
	}
	// ‖T̃‖² = λᵀ (⊙_k A_kᵀA_k) λ
	v := linalg.HadamardGram(f.Modes, -1)
	lam := mat.NewVecDense(len(f.Lambda), f.Lambda)
	normF := mat.Inner(lam, v, lam)

	resid := math.Sqrt(math.Abs(c.Norm*c.Norm + normF - 2*iprod))
	fit := 1 - resid/c.Norm
	c.fit = fit

	if !c.started {
		c.started = true
		c.prev = fit
		return false
	}
	change := math.Abs(fit - c.prev)
	c.prev = fit
	if change >= c.Tolerance {
		c.small = 0
		return false
	}
	c.small++
	if c.small < 2 {
		return false
	}
	c.started = false
	c.small = 0
	return true
}

// Fit implements the Fitter interface. It returns the fit computed by the
// last call to Converged.
func (c *FitCheck) Fit() float64 { return c.fit }

// StepCheck converges when the relative change of every factor matrix since
// the previous sweep, as measured by StepSize, falls below Tolerance.
type StepCheck struct {
	// Tolerance must be positive.
	Tolerance float64

	steps StepSize
	last  []float64
}

// Converged implements the ConvergenceTest interface.
func (c *StepCheck) Converged(f *Factors) bool {
	if c.Tolerance <= 0 {
		panic("cpd: non-positive tolerance")
	}
	c.last = reuse(c.last, len(f.Modes))
	for n, a := range f.Modes {
		c.last[n] = c.steps.Step(n, a)
	}
	return floats.Max(c.last) < c.Tolerance
}

// Steps returns the step sizes of the last sweep, one per mode.
func (c *StepCheck) Steps() []float64 {
	return append([]float64(nil), c.last...)
}
