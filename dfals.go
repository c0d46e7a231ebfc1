// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"fmt"

	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/mat"
)

// CPDFALS computes CP decompositions of a tensor given as the contraction
//  T[i_1, …, i_{L-1}, j_1, …, j_{M-1}] = Σ_x B[x, i_1, …] Z[x, j_1, …]
// of an order-L tensor B and an order-M tensor Z over their first mode, such
// as a density-fitted two-electron integral tensor. T has L+M-2 modes: first
// the remaining modes of B, then those of Z. The direct update never forms T.
type CPDFALS struct {
	engine

	left, right *tensor.Dense
	nl          int
	ext         []int

	full *tensor.Dense

	// side is the contraction of the side not holding the last updated
	// mode with its factors, multiplied into the other side. It stays
	// valid while updates stay on the same side.
	side      *mat.Dense
	sideValid bool
	sideLeft  bool
}

// NewCPDFALS returns a CPDFALS for the contraction of left and right over
// their first mode. Both must have order at least 2 and equal first extent.
// symm has the same meaning as in NewCPALS and is checked before the
// tensors are accessed.
func NewCPDFALS(left, right *tensor.Dense, symm []int) (*CPDFALS, error) {
	if err := checkSymmetry(symm); err != nil {
		return nil, err
	}
	if left == nil || right == nil {
		panic("cpd: nil tensor")
	}
	if left.Order() < 2 || right.Order() < 2 {
		return nil, fmt.Errorf("orders %d and %d: %w", left.Order(), right.Order(), ErrShape)
	}
	if left.Extent(0) != right.Extent(0) {
		return nil, fmt.Errorf("connecting extents %d and %d: %w", left.Extent(0), right.Extent(0), ErrShape)
	}
	ext := append(left.Shape()[1:], right.Shape()[1:]...)
	symm, err := resolveSymmetry(symm, ext)
	if err != nil {
		return nil, err
	}
	c := &CPDFALS{
		left:  left,
		right: right,
		nl:    left.Order() - 1,
		ext:   ext,
	}
	c.engine = engine{v: c, symm: symm}
	return c, nil
}

func (c *CPDFALS) extents() []int { return append([]int(nil), c.ext...) }

// reference forms T once and keeps it for the Khatri-Rao update, the SVD
// guess and the exact error.
func (c *CPDFALS) reference() *tensor.Dense {
	if c.full != nil {
		return c.full
	}
	var m mat.Dense
	err := c.left.WithShape(flat(c.left), func(l *tensor.Dense) error {
		return c.right.WithShape(flat(c.right), func(r *tensor.Dense) error {
			ml, err := l.Matrix()
			if err != nil {
				return err
			}
			mr, err := r.Matrix()
			if err != nil {
				return err
			}
			m.Mul(ml.T(), mr)
			return nil
		})
	})
	if err != nil {
		panic(err)
	}
	c.full = tensor.NewFromData(m.RawMatrix().Data, c.ext...)
	return c.full
}

func (c *CPDFALS) gram(mode int) *mat.SymDense { return c.reference().Gram(mode) }

func (c *CPDFALS) reset() { c.sideValid = false }

// direct contracts the side not holding mode n down to the connecting
// dimension, multiplies the result into the side holding n and walks that
// side's modes.
func (c *CPDFALS) direct(f *Factors, n int) *mat.Dense {
	isLeft := n < c.nl
	if !c.sideValid || c.sideLeft != isLeft {
		if isLeft {
			c.side = c.fuse(f, c.right, c.nl, c.left)
		} else {
			c.side = c.fuse(f, c.left, 0, c.right)
		}
		c.sideValid, c.sideLeft = true, isLeft
	}

	rank := f.Rank()
	data := c.side.RawMatrix().Data
	if isLeft {
		return hadamardWalk(data, c.left.Shape()[1:], n, rank, func(p int) *mat.Dense {
			return f.Modes[p]
		})
	}
	return hadamardWalk(data, c.right.Shape()[1:], n-c.nl, rank, func(p int) *mat.Dense {
		return f.Modes[c.nl+p]
	})
}

// fuse returns S_(0)ᵀ K where S_(0) is the connecting-mode unfolding of
// this and K is the contraction of other, whose modes start at base, with
// its factor matrices.
func (c *CPDFALS) fuse(f *Factors, other *tensor.Dense, base int, this *tensor.Dense) *mat.Dense {
	ext := other.Shape()
	last := len(ext) - 1
	var temp mat.Dense
	err := other.WithShape([]int{other.Size() / ext[last], ext[last]}, func(v *tensor.Dense) error {
		m, err := v.Matrix()
		if err != nil {
			return err
		}
		temp.Mul(m, f.Modes[base+last-1])
		return nil
	})
	if err != nil {
		panic(err)
	}
	k := hadamardWalk(temp.RawMatrix().Data, ext[:last], 0, f.Rank(), func(p int) *mat.Dense {
		return f.Modes[base+p-1]
	})

	var w mat.Dense
	err = this.WithShape(flat(this), func(v *tensor.Dense) error {
		m, err := v.Matrix()
		if err != nil {
			return err
		}
		w.Mul(m.T(), k)
		return nil
	})
	if err != nil {
		panic(err)
	}
	return &w
}

// flat returns the shape of the connecting-mode unfolding of t.
func flat(t *tensor.Dense) []int {
	return []int{t.Extent(0), t.Size() / t.Extent(0)}
}
