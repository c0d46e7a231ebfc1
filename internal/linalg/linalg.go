// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linalg provides the dense linear algebra kernels used by the CP-ALS
// solvers.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

// PinvThreshold is the singular value below which PseudoInverse does not
// invert.
const PinvThreshold = 1e-13

var (
	ErrColumnMismatch = errors.New("linalg: column count mismatch")
	ErrSingular       = errors.New("linalg: singular matrix")
	ErrEigen          = errors.New("linalg: eigendecomposition failed")
	ErrSVD            = errors.New("linalg: SVD failed")
)

// KhatriRao returns the column-wise Kronecker product of the N×M matrix a
// and the K×M matrix b, an (N·K)×M matrix whose row i·K+j is the elementwise
// product of row i of a and row j of b.
func KhatriRao(a, b mat.Matrix) (*mat.Dense, error) {
	n, m := a.Dims()
	k, mb := b.Dims()
	if m != mb {
		return nil, fmt.Errorf("khatri-rao of %d and %d columns: %w", m, mb, ErrColumnMismatch)
	}
	ra := mat.DenseCopyOf(a)
	rb := mat.DenseCopyOf(b)
	ab := mat.NewDense(n*k, m, nil)
	for i := 0; i < n; i++ {
		arow := ra.RawRowView(i)
		for j := 0; j < k; j++ {
			brow := rb.RawRowView(j)
			dst := ab.RawRowView(i*k + j)
			for c, v := range arow {
				dst[c] = v * brow[c]
			}
		}
	}
	return ab, nil
}

// HadamardGram returns the elementwise product of AᵀA over all factors
// except the one at index skip.
func HadamardGram(factors []*mat.Dense, skip int) *mat.SymDense {
	_, r := factors[0].Dims()
	v := mat.NewDense(r, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			v.Set(i, j, 1)
		}
	}
	var g mat.Dense
	for k, a := range factors {
		if k == skip {
			continue
		}
		g.Mul(a.T(), a)
		v.MulElem(v, &g)
	}
	return mat.NewSymDense(r, v.RawMatrix().Data)
}

// PseudoInverse returns the pseudoinverse of a computed from its full SVD.
// Singular values above PinvThreshold are inverted; smaller ones are kept
// unchanged.
func PseudoInverse(a mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, ErrSVD
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	for i, sv := range s {
		if sv > PinvThreshold {
			s[i] = 1 / sv
		}
	}
	// pinv = V Σ⁺ Uᵀ
	r, c := a.Dims()
	vs := mat.NewDense(c, len(s), nil)
	vs.Copy(v.Slice(0, c, 0, len(s)))
	for j, sv := range s {
		for i := 0; i < c; i++ {
			vs.Set(i, j, vs.At(i, j)*sv)
		}
	}
	pinv := mat.NewDense(c, r, nil)
	pinv.Mul(vs, u.Slice(0, r, 0, len(s)).T())
	return pinv, nil
}

// CholeskySolve returns b·v⁻¹ for the symmetric positive definite v. The
// boolean result is false when v is not positive definite.
func CholeskySolve(v mat.Symmetric, b mat.Matrix) (*mat.Dense, bool) {
	var chol mat.Cholesky
	if ok := chol.Factorize(v); !ok {
		return nil, false
	}
	var xt mat.Dense
	if err := chol.SolveTo(&xt, b.T()); err != nil {
		return nil, false
	}
	return mat.DenseCopyOf(xt.T()), true
}

// Inverse returns the inverse of the square matrix a computed by LU
// factorization with partial pivoting.
func Inverse(a mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%v: %w", err, ErrSingular)
		}
	}
	return &inv, nil
}

// EigenSymDesc returns the eigenvalues of s in descending order together
// with the matching eigenvectors stored in the columns of the returned
// matrix.
func EigenSymDesc(s mat.Symmetric) ([]float64, *mat.Dense, error) {
	var es mat.EigenSym
	if ok := es.Factorize(s, true); !ok {
		return nil, nil, ErrEigen
	}
	asc := es.Values(nil)
	var ev mat.Dense
	es.VectorsTo(&ev)

	n := len(asc)
	vals := make([]float64, n)
	vecs := mat.NewDense(n, n, nil)
	col := make([]float64, n)
	for j := 0; j < n; j++ {
		vals[j] = asc[n-1-j]
		mat.Col(col, n-1-j, &ev)
		vecs.SetCol(j, col)
	}
	return vals, vecs, nil
}

// PivotedLower returns P·L from the LU factorization a = P·L·U of the m×n
// matrix a. The result is m×min(m,n) and spans the column space of a when a
// has full column rank.
func PivotedLower(a mat.Matrix) *mat.Dense {
	work := mat.DenseCopyOf(a)
	raw := work.RawMatrix()
	m, n := raw.Rows, raw.Cols
	k := min(m, n)
	ipiv := make([]int, k)
	lapack64.Getrf(raw, ipiv)

	l := mat.NewDense(m, k, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < k && j <= i; j++ {
			if i == j {
				l.Set(i, j, 1)
				continue
			}
			l.Set(i, j, raw.Data[i*raw.Stride+j])
		}
	}
	lr := l.RawMatrix()
	for i := k - 1; i >= 0; i-- {
		if p := ipiv[i]; p != i {
			blas64.Swap(blas64.Vector{N: k, Data: lr.Data[i*lr.Stride:], Inc: 1},
				blas64.Vector{N: k, Data: lr.Data[p*lr.Stride:], Inc: 1})
		}
	}
	return l
}

// Orthonormalize returns the first k columns of the orthogonal factor of
// the QR factorization of a. Columns beyond the row count of a are dropped
// before factorizing.
func Orthonormalize(a mat.Matrix, k int) *mat.Dense {
	m, n := a.Dims()
	if n > m {
		a = mat.DenseCopyOf(a).Slice(0, m, 0, m)
		n = m
	}
	k = min(k, n)
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	return mat.DenseCopyOf(q.Slice(0, m, 0, k))
}
