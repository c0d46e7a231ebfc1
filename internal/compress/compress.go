// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress reduces a dense tensor to a smaller core tensor and one
// transform per mode such that
//  t ≈ core ×_0 U_0 ×_1 U_1 … ×_{N-1} U_{N-1},
// with every U_n having orthonormal columns.
package compress

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/vladimir-ch/cpd/internal/linalg"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/mat"
)

// ErrRank is returned when a compression rank is not positive.
var ErrRank = errors.New("compress: rank not positive")

// Result holds a compressed tensor.
type Result struct {
	// Core is the compressed tensor. Its extent in mode n is the
	// number of columns of Transforms[n].
	Core *tensor.Dense
	// Transforms[n] is I_n×r_n with orthonormal columns.
	Transforms []*mat.Dense
}

// Tucker computes a sequentially truncated higher-order SVD of t. Mode n keeps
// the leading eigenvectors of the Gram matrix of the current core whose
// eigenvalue relative to the largest one exceeds tcut; at least one vector is
// always kept.
//
// symm maps every mode to the mode it shares factors with, or is nil. A mode n
// with symm[n] != n reuses the transform of symm[n].
func Tucker(t *tensor.Dense, tcut float64, symm []int) (Result, error) {
	n := t.Order()
	res := Result{Core: t.Clone(), Transforms: make([]*mat.Dense, n)}
	for mode := 0; mode < n; mode++ {
		if s := canonical(symm, mode); s != mode {
			res.Transforms[mode] = res.Transforms[s]
		} else {
			vals, vecs, err := linalg.EigenSymDesc(res.Core.Gram(mode))
			if err != nil {
				return Result{}, fmt.Errorf("tucker mode %d: %w", mode, err)
			}
			keep := 1
			for keep < len(vals) && vals[0] > 0 && vals[keep]/vals[0] > tcut {
				keep++
			}
			r, _ := vecs.Dims()
			res.Transforms[mode] = mat.DenseCopyOf(vecs.Slice(0, r, 0, keep))
		}
		res.Core = res.Core.ModeProduct(mode, res.Transforms[mode].T())
	}
	return res, nil
}

// Randomized compresses t with a randomized range finder applied to every
// mode in turn. The mode-n unfolding of the current core is multiplied by a
// Gaussian sketch with rank+oversample columns, refined by powerIt
// LU-stabilized power iterations and orthonormalized; the first min(rank, I_n)
// columns are kept.
//
// symm has the same meaning as in Tucker.
func Randomized(t *tensor.Dense, rank, oversample, powerIt int, symm []int, rnd *rand.Rand) (Result, error) {
	if rank <= 0 {
		return Result{}, fmt.Errorf("randomized compression to rank %d: %w", rank, ErrRank)
	}
	if oversample < 0 || powerIt < 0 {
		panic("compress: negative oversampling or power iteration count")
	}
	n := t.Order()
	res := Result{Core: t.Clone(), Transforms: make([]*mat.Dense, n)}
	for mode := 0; mode < n; mode++ {
		if s := canonical(symm, mode); s != mode {
			res.Transforms[mode] = res.Transforms[s]
		} else {
			res.Transforms[mode] = rangeFinder(res.Core.Unfold(mode), rank, oversample, powerIt, rnd)
		}
		res.Core = res.Core.ModeProduct(mode, res.Transforms[mode].T())
	}
	return res, nil
}

func rangeFinder(x *mat.Dense, rank, oversample, powerIt int, rnd *rand.Rand) *mat.Dense {
	rows, cols := x.Dims()
	k := rank + oversample
	omega := mat.NewDense(cols, k, nil)
	raw := omega.RawMatrix().Data
	for i := range raw {
		raw[i] = rnd.NormFloat64()
	}

	var y, z mat.Dense
	y.Mul(x, omega)
	for it := 0; it < powerIt; it++ {
		l := linalg.PivotedLower(&y)
		z.Reset()
		z.Mul(x.T(), l)
		l = linalg.PivotedLower(&z)
		y.Reset()
		y.Mul(x, l)
	}
	return linalg.Orthonormalize(&y, min(rank, rows))
}

func canonical(symm []int, mode int) int {
	if symm == nil {
		return mode
	}
	return symm[mode]
}
