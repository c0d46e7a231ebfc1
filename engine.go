// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/vladimir-ch/cpd/internal/linalg"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/mat"
)

// variant supplies the parts of ALS that depend on how the decomposed
// tensor is stored.
type variant interface {
	// extents returns the extents of the decomposed tensor.
	extents() []int
	// reference returns the decomposed tensor in dense form.
	reference() *tensor.Dense
	// gram returns X_(n) X_(n)ᵀ of the decomposed tensor.
	gram(mode int) *mat.SymDense
	// direct returns the MtKRP of mode n for the current factors
	// without forming the Khatri-Rao product.
	direct(f *Factors, n int) *mat.Dense
	// reset drops any state cached between mode updates.
	reset()
}

// engine holds the state shared by all decomposition variants: the factor
// matrices and the symmetry map.
type engine struct {
	v       variant
	symm    []int
	factors Factors

	settings Settings
	stats    *Stats
	log      *slog.Logger
	rnd      *rand.Rand
}

// checkSymmetry checks that symm maps every mode to itself or to an earlier
// mode. It does not look at any tensor.
func checkSymmetry(symm []int) error {
	for i, s := range symm {
		if s < 0 || s > i {
			return fmt.Errorf("mode %d maps to mode %d: %w", i, s, ErrSymmetry)
		}
	}
	return nil
}

// resolveSymmetry returns a copy of symm checked against the extents of the
// decomposed tensor. A nil symm means that all modes are independent.
func resolveSymmetry(symm, ext []int) ([]int, error) {
	if symm == nil {
		symm = make([]int, len(ext))
		for i := range symm {
			symm[i] = i
		}
		return symm, nil
	}
	if len(symm) != len(ext) {
		return nil, fmt.Errorf("%d entries for %d modes: %w", len(symm), len(ext), ErrSymmetry)
	}
	for i, s := range symm {
		if ext[i] != ext[s] {
			return nil, fmt.Errorf("mode %d of extent %d maps to mode %d of extent %d: %w",
				i, ext[i], s, ext[s], ErrSymmetry)
		}
	}
	return append([]int(nil), symm...), nil
}

// begin prepares the engine for one public compute call.
func (e *engine) begin(settings Settings) *Stats {
	defaultSettings(&settings)
	e.settings = settings
	e.log = settings.Logger
	e.rnd = settings.Rand
	e.stats = &Stats{}
	return e.stats
}

// Factors returns the current decomposition. The returned value shares
// storage with the engine.
func (e *engine) Factors() *Factors {
	return &e.factors
}

// Reconstruct returns the tensor represented by the current decomposition.
func (e *engine) Reconstruct() *tensor.Dense {
	return e.factors.Reconstruct()
}

func (e *engine) rank() int { return e.factors.Rank() }

func (e *engine) randomMatrix(r, c int) *mat.Dense {
	a := mat.NewDense(r, c, nil)
	raw := a.RawMatrix().Data
	for i := range raw {
		raw[i] = 2*e.rnd.Float64() - 1
	}
	return a
}

// copySymmetric sets every dependent mode to a copy of its canonical mode.
func (e *engine) copySymmetric() {
	for i, s := range e.symm {
		if s != i {
			e.factors.Modes[i] = mat.DenseCopyOf(e.factors.Modes[s])
		}
	}
}

// seedRandom replaces the factors with uniform random matrices of the given
// rank with unit-norm columns and unit weights.
func (e *engine) seedRandom(rank int) {
	ext := e.v.extents()
	e.factors.Modes = make([]*mat.Dense, len(ext))
	for i, s := range e.symm {
		if s != i {
			continue
		}
		a := e.randomMatrix(ext[i], rank)
		normalizeColumns(a, 0, rank)
		e.factors.Modes[i] = a
	}
	e.copySymmetric()
	e.factors.Lambda = make([]float64, rank)
	for i := range e.factors.Lambda {
		e.factors.Lambda[i] = 1
	}
}

// seedSVD replaces the factors with the leading eigenvectors of the Gram
// matrix of every independent mode unfolding. Columns beyond the extent of a
// mode are uniform random.
func (e *engine) seedSVD(rank int) error {
	ext := e.v.extents()
	e.factors.Modes = make([]*mat.Dense, len(ext))
	for i, s := range e.symm {
		if s != i {
			continue
		}
		_, vecs, err := linalg.EigenSymDesc(e.v.gram(i))
		if err != nil {
			return fmt.Errorf("svd guess of mode %d: %w", i, err)
		}
		a := e.randomMatrix(ext[i], rank)
		k := min(ext[i], rank)
		a.Slice(0, ext[i], 0, k).(*mat.Dense).Copy(vecs.Slice(0, ext[i], 0, k))
		normalizeColumns(a, 0, rank)
		e.factors.Modes[i] = a
	}
	e.copySymmetric()
	e.factors.Lambda = make([]float64, rank)
	for i := range e.factors.Lambda {
		e.factors.Lambda[i] = 1
	}
	return nil
}

// grow appends rank-cur uniform random columns to every independent factor
// matrix. The existing columns are copied once and left unchanged with their
// weights; the new columns are normalized and get unit weight.
func (e *engine) grow(rank int) {
	cur := e.rank()
	if rank <= cur {
		return
	}
	lambda := make([]float64, rank)
	copy(lambda, e.factors.Lambda)
	for j := cur; j < rank; j++ {
		lambda[j] = 1
	}
	for i, s := range e.symm {
		if s != i {
			continue
		}
		old := e.factors.Modes[i]
		r, _ := old.Dims()
		a := mat.NewDense(r, rank, nil)
		a.Slice(0, r, 0, cur).(*mat.Dense).Copy(old)
		fresh := e.randomMatrix(r, rank-cur)
		a.Slice(0, r, cur, rank).(*mat.Dense).Copy(fresh)
		normalizeColumns(a, cur, rank)
		e.factors.Modes[i] = a
	}
	e.copySymmetric()
	e.factors.Lambda = lambda
}

// normalize scales the columns of mode n to unit norm and stores the norms
// as the weights.
func (e *engine) normalize(n int) {
	a := e.factors.Modes[n]
	_, r := a.Dims()
	e.factors.Lambda = normalizeColumns(a, 0, r)
}
