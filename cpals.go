// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"fmt"
	"time"

	"github.com/vladimir-ch/cpd/internal/compress"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ Decomposer = (*CPALS)(nil)
	_ Decomposer = (*CPDFALS)(nil)
)

// CPALS computes CP decompositions of a dense reference tensor.
//
// The reference tensor is reshaped in place for the duration of every mode
// update and restored afterwards. It must not be accessed concurrently with
// a compute call.
type CPALS struct {
	engine

	t   *tensor.Dense
	ref *tensor.Dense
}

// NewCPALS returns a CPALS for t. symm maps every mode to itself or to an
// earlier mode of equal extent whose factor matrix it shares; nil means that
// all modes are independent. The symmetry map is checked before t is
// accessed.
func NewCPALS(t *tensor.Dense, symm []int) (*CPALS, error) {
	if err := checkSymmetry(symm); err != nil {
		return nil, err
	}
	if t == nil {
		panic("cpd: nil tensor")
	}
	if t.Order() < 2 {
		return nil, fmt.Errorf("order %d: %w", t.Order(), ErrShape)
	}
	symm, err := resolveSymmetry(symm, t.Shape())
	if err != nil {
		return nil, err
	}
	c := &CPALS{t: t, ref: t}
	c.engine = engine{v: c, symm: symm}
	return c, nil
}

func (c *CPALS) extents() []int { return c.ref.Shape() }

func (c *CPALS) reference() *tensor.Dense { return c.ref }

func (c *CPALS) gram(mode int) *mat.SymDense { return c.ref.Gram(mode) }

func (c *CPALS) reset() {}

// direct contracts the reference tensor with an anchor factor matrix, the
// first one when n is the last mode and the last one otherwise, and walks
// the remaining modes.
func (c *CPALS) direct(f *Factors, n int) *mat.Dense {
	t := c.ref
	ext := t.Shape()
	last := len(ext) - 1

	var (
		temp   mat.Dense
		dims   []int
		target int
		factor func(p int) *mat.Dense
	)
	if n == last {
		err := t.WithShape([]int{ext[0], t.Size() / ext[0]}, func(v *tensor.Dense) error {
			m, err := v.Matrix()
			if err != nil {
				return err
			}
			temp.Mul(m.T(), f.Modes[0])
			return nil
		})
		if err != nil {
			panic(err)
		}
		dims, target = ext[1:], n-1
		factor = func(p int) *mat.Dense { return f.Modes[p+1] }
	} else {
		err := t.WithShape([]int{t.Size() / ext[last], ext[last]}, func(v *tensor.Dense) error {
			m, err := v.Matrix()
			if err != nil {
				return err
			}
			temp.Mul(m, f.Modes[last])
			return nil
		})
		if err != nil {
			panic(err)
		}
		dims, target = ext[:last], n
		factor = func(p int) *mat.Dense { return f.Modes[p] }
	}
	return hadamardWalk(temp.RawMatrix().Data, dims, target, f.Rank(), factor)
}

// CompressTucker decomposes the core of a truncated higher-order SVD of the
// reference tensor at the given rank from a random guess and maps the
// factors back by the Tucker transforms. Mode n of the core keeps the
// eigenvectors of the mode Gram matrix whose eigenvalue relative to the
// largest one exceeds tcut.
//
// When settings.CalculateError is set, the error is measured against the
// uncompressed tensor.
func (c *CPALS) CompressTucker(tcut float64, test ConvergenceTest, rank int, settings Settings) (Result, error) {
	if rank <= 0 {
		return Result{Error: -1}, fmt.Errorf("rank %d: %w", rank, ErrRank)
	}
	comp, err := compress.Tucker(c.t, tcut, c.symm)
	if err != nil {
		return Result{Error: -1}, err
	}
	return c.computeCompressed(comp, test, rank, settings)
}

// CompressRandom is like CompressTucker but compresses every mode to at most
// compRank by a randomized range finder with the given oversampling and
// number of power iterations.
func (c *CPALS) CompressRandom(compRank int, test ConvergenceTest, oversample, powerIt, rank int, settings Settings) (Result, error) {
	if rank <= 0 {
		return Result{Error: -1}, fmt.Errorf("rank %d: %w", rank, ErrRank)
	}
	defaultSettings(&settings)
	comp, err := compress.Randomized(c.t, compRank, oversample, powerIt, c.symm, settings.Rand)
	if err != nil {
		return Result{Error: -1}, fmt.Errorf("%w: %w", ErrRank, err)
	}
	return c.computeCompressed(comp, test, rank, settings)
}

func (c *CPALS) computeCompressed(comp compress.Result, test ConvergenceTest, rank int, settings Settings) (Result, error) {
	exact := settings.CalculateError
	settings.CalculateError = false

	c.ref = comp.Core
	res, err := c.ComputeRandom(rank, test, settings)
	c.ref = c.t
	if err != nil {
		return res, err
	}

	for i, u := range comp.Transforms {
		var a mat.Dense
		a.Mul(u, c.factors.Modes[i])
		c.factors.Modes[i] = &a
	}
	if exact {
		res.Error = floats.Distance(c.Reconstruct().Data(), c.t.Data(), 2)
	}
	res.Stats.Runtime = time.Since(res.Stats.StartTime)
	return res, nil
}
