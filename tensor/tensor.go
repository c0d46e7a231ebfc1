// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tensor provides a dense, row-major, N-mode array of float64 values.
package tensor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when a requested shape is incompatible with
	// the tensor.
	ErrShape = errors.New("tensor: invalid shape")

	// ErrNotMatrix is returned when a matrix view is requested from a
	// tensor whose order is not 2.
	ErrNotMatrix = errors.New("tensor: not a matrix")
)

// Dense is a dense tensor stored contiguously in row-major order: the last
// mode varies fastest.
type Dense struct {
	shape []int
	data  []float64
}

// New returns a zero tensor with the given extents. It panics if any extent
// is not positive.
func New(shape ...int) *Dense {
	n := size(shape)
	return &Dense{
		shape: append([]int(nil), shape...),
		data:  make([]float64, n),
	}
}

// NewFromData returns a tensor with the given extents backed by data. The
// tensor does not copy data. It panics if len(data) does not match the
// product of the extents.
func NewFromData(data []float64, shape ...int) *Dense {
	if size(shape) != len(data) {
		panic("tensor: data length mismatch")
	}
	return &Dense{
		shape: append([]int(nil), shape...),
		data:  data,
	}
}

func size(shape []int) int {
	if len(shape) == 0 {
		panic("tensor: zero order")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic("tensor: extent not positive")
		}
		n *= d
	}
	return n
}

// Order returns the number of modes.
func (t *Dense) Order() int { return len(t.shape) }

// Shape returns a copy of the extents.
func (t *Dense) Shape() []int { return append([]int(nil), t.shape...) }

// Extent returns the extent of the given mode.
func (t *Dense) Extent(mode int) int { return t.shape[mode] }

// Size returns the number of elements.
func (t *Dense) Size() int { return len(t.data) }

// Data returns the backing storage in row-major order. Changes to the
// returned slice are reflected in the tensor.
func (t *Dense) Data() []float64 { return t.data }

func (t *Dense) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic("tensor: index order mismatch")
	}
	var off int
	for i, v := range idx {
		if v < 0 || t.shape[i] <= v {
			panic("tensor: index out of range")
		}
		off = off*t.shape[i] + v
	}
	return off
}

// At returns the element at the given index.
func (t *Dense) At(idx ...int) float64 { return t.data[t.offset(idx)] }

// Set sets the element at the given index to v.
func (t *Dense) Set(v float64, idx ...int) { t.data[t.offset(idx)] = v }

// Fill sets every element to v.
func (t *Dense) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Clone returns a deep copy of t.
func (t *Dense) Clone() *Dense {
	return &Dense{
		shape: t.Shape(),
		data:  append([]float64(nil), t.data...),
	}
}

// Norm returns the Frobenius norm of t.
func (t *Dense) Norm() float64 { return floats.Norm(t.data, 2) }

// Reshape reinterprets the storage under new extents with the same number
// of elements.
func (t *Dense) Reshape(shape ...int) error {
	if len(shape) == 0 {
		return fmt.Errorf("reshape to zero order: %w", ErrShape)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return fmt.Errorf("reshape to %v: %w", shape, ErrShape)
		}
		n *= d
	}
	if n != len(t.data) {
		return fmt.Errorf("reshape %v to %v: %w", t.shape, shape, ErrShape)
	}
	t.shape = append(t.shape[:0], shape...)
	return nil
}

// Resize changes the extents of t. The storage is reused when its capacity
// suffices and reallocated otherwise; element values are unspecified after
// the call.
func (t *Dense) Resize(shape ...int) {
	n := size(shape)
	if cap(t.data) < n {
		t.data = make([]float64, n)
	} else {
		t.data = t.data[:n]
	}
	t.shape = append(t.shape[:0], shape...)
}

// WithShape reshapes t, calls fn with it and restores the original shape
// before returning, whatever the outcome of fn.
func (t *Dense) WithShape(shape []int, fn func(*Dense) error) error {
	orig := t.Shape()
	if err := t.Reshape(shape...); err != nil {
		return err
	}
	defer func() {
		t.shape = append(t.shape[:0], orig...)
	}()
	return fn(t)
}

// Matrix returns a matrix view of an order-2 tensor. The view shares the
// storage of t.
func (t *Dense) Matrix() (*mat.Dense, error) {
	if len(t.shape) != 2 {
		return nil, fmt.Errorf("order %d: %w", len(t.shape), ErrNotMatrix)
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.data), nil
}

// split returns the product of the extents before mode, the extent of mode
// and the product of the extents after it.
func (t *Dense) split(mode int) (left, mid, right int) {
	left, right = 1, 1
	for i, d := range t.shape {
		switch {
		case i < mode:
			left *= d
		case i > mode:
			right *= d
		}
	}
	return left, t.shape[mode], right
}

// Unfold returns the mode-n unfolding of t, an I_n×(Size/I_n) matrix whose
// columns enumerate the remaining modes in row-major order.
func (t *Dense) Unfold(mode int) *mat.Dense {
	left, mid, right := t.split(mode)
	m := mat.NewDense(mid, left*right, nil)
	for l := 0; l < left; l++ {
		for i := 0; i < mid; i++ {
			src := t.data[(l*mid+i)*right : (l*mid+i+1)*right]
			copy(m.RawRowView(i)[l*right:(l+1)*right], src)
		}
	}
	return m
}

// Gram returns X_(n) X_(n)ᵀ where X_(n) is the mode-n unfolding of t. The
// unfolding is not formed.
func (t *Dense) Gram(mode int) *mat.SymDense {
	left, mid, right := t.split(mode)
	g := mat.NewSymDense(mid, nil)
	for l := 0; l < left; l++ {
		blk := mat.NewDense(mid, right, t.data[l*mid*right:(l+1)*mid*right])
		g.SymRankK(g, 1, blk)
	}
	return g
}

// ModeProduct returns the mode-n product of t with the J×I_n matrix m: the
// result has extent J in the given mode and
//  out[…, j, …] = Σ_i m[j, i] t[…, i, …].
func (t *Dense) ModeProduct(mode int, m mat.Matrix) *Dense {
	left, mid, right := t.split(mode)
	r, c := m.Dims()
	if c != mid {
		panic("tensor: mode product dimension mismatch")
	}
	shape := t.Shape()
	shape[mode] = r
	out := New(shape...)

	mm := mat.DenseCopyOf(m).RawMatrix()
	bi := blas64.Implementation()
	for l := 0; l < left; l++ {
		src := t.data[l*mid*right : (l+1)*mid*right]
		dst := out.data[l*r*right : (l+1)*r*right]
		bi.Dgemm(blas.NoTrans, blas.NoTrans, r, right, mid,
			1, mm.Data, mm.Stride, src, right, 0, dst, right)
	}
	return out
}
