// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"github.com/vladimir-ch/cpd/internal/linalg"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Factors is a CP decomposition: one I_n×R factor matrix per mode and the
// weights of the R rank-one components.
type Factors struct {
	Modes  []*mat.Dense
	Lambda []float64
}

// Rank returns the number of rank-one components, or zero if f holds no
// factor matrices.
func (f *Factors) Rank() int {
	if f == nil || len(f.Modes) == 0 {
		return 0
	}
	_, r := f.Modes[0].Dims()
	return r
}

// Clone returns a deep copy of f.
func (f *Factors) Clone() *Factors {
	c := &Factors{
		Modes:  make([]*mat.Dense, len(f.Modes)),
		Lambda: append([]float64(nil), f.Lambda...),
	}
	for i, a := range f.Modes {
		c.Modes[i] = mat.DenseCopyOf(a)
	}
	return c
}

// Reconstruct returns the tensor
//  Σ_r λ_r a_0[:,r] ∘ … ∘ a_{N-1}[:,r].
// It panics if f holds no factor matrices.
func (f *Factors) Reconstruct() *tensor.Dense {
	if len(f.Modes) == 0 {
		panic("cpd: reconstruct empty decomposition")
	}
	shape := make([]int, len(f.Modes))
	for i, a := range f.Modes {
		shape[i], _ = a.Dims()
	}
	if len(f.Modes) == 1 {
		out := tensor.New(shape...)
		mat.NewVecDense(shape[0], out.Data()).MulVec(f.Modes[0], mat.NewVecDense(len(f.Lambda), f.Lambda))
		return out
	}

	// The mode-0 unfolding of the result is A_0 diag(λ) KRP(A_1, …)ᵀ and
	// is stored exactly like the tensor.
	krp := f.Modes[1]
	for _, a := range f.Modes[2:] {
		var err error
		krp, err = linalg.KhatriRao(krp, a)
		if err != nil {
			panic(err)
		}
	}
	scaled := mat.DenseCopyOf(f.Modes[0])
	r, _ := scaled.Dims()
	for i := 0; i < r; i++ {
		floats.Mul(scaled.RawRowView(i), f.Lambda)
	}
	out := tensor.New(shape...)
	rows, _ := krp.Dims()
	mat.NewDense(shape[0], rows, out.Data()).Mul(scaled, krp.T())
	return out
}

// normalizeColumns scales every column of a in [from, to) to unit 2-norm and
// returns the original norms. Zero columns are left unchanged.
func normalizeColumns(a *mat.Dense, from, to int) []float64 {
	r, _ := a.Dims()
	norms := make([]float64, to-from)
	col := make([]float64, r)
	for j := from; j < to; j++ {
		mat.Col(col, j, a)
		nrm := floats.Norm(col, 2)
		norms[j-from] = nrm
		if nrm == 0 {
			continue
		}
		floats.Scale(1/nrm, col)
		a.SetCol(j, col)
	}
	return norms
}
