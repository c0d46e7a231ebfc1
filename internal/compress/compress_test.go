// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// lowRank returns a tensor with the given extents and multilinear rank r in
// every mode.
func lowRank(rnd *rand.Rand, r int, shape ...int) *tensor.Dense {
	core := make([]int, len(shape))
	for i := range core {
		core[i] = r
	}
	t := tensor.New(core...)
	for i := range t.Data() {
		t.Data()[i] = rnd.NormFloat64()
	}
	for mode, d := range shape {
		u := mat.NewDense(d, r, nil)
		for i := 0; i < d; i++ {
			for j := 0; j < r; j++ {
				u.Set(i, j, rnd.NormFloat64())
			}
		}
		t = t.ModeProduct(mode, u)
	}
	return t
}

func expand(res Result) *tensor.Dense {
	t := res.Core
	for mode, u := range res.Transforms {
		t = t.ModeProduct(mode, u)
	}
	return t
}

func checkOrthonormal(t *testing.T, us []*mat.Dense) {
	t.Helper()
	for mode, u := range us {
		_, c := u.Dims()
		var utu mat.Dense
		utu.Mul(u.T(), u)
		for i := 0; i < c; i++ {
			for j := 0; j < c; j++ {
				want := 0.0
				if i == j {
					want = 1
				}
				if math.Abs(utu.At(i, j)-want) > 1e-10 {
					t.Fatalf("mode %d: transform columns not orthonormal", mode)
				}
			}
		}
	}
}

func TestTucker(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	x := lowRank(rnd, 2, 5, 6, 4)

	res, err := Tucker(x, 1e-10, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, res.Core.Shape())
	checkOrthonormal(t, res.Transforms)

	dist := floats.Distance(expand(res).Data(), x.Data(), math.Inf(1))
	if dist > 1e-10 {
		t.Errorf("unexpected reconstruction, |want-got|=%v", dist)
	}

	// A cut above every relative eigenvalue keeps a single vector.
	res, err = Tucker(x, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1}, res.Core.Shape())
}

func TestRandomized(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	x := lowRank(rnd, 2, 7, 6, 8)

	res, err := Randomized(x, 3, 2, 2, nil, rnd)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3}, res.Core.Shape())
	checkOrthonormal(t, res.Transforms)

	dist := floats.Distance(expand(res).Data(), x.Data(), math.Inf(1))
	if dist > 1e-9 {
		t.Errorf("unexpected reconstruction, |want-got|=%v", dist)
	}

	_, err = Randomized(x, 0, 2, 2, nil, rnd)
	assert.True(t, errors.Is(err, ErrRank))
}

func TestSymmetricTransforms(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	x := lowRank(rnd, 2, 5, 5, 3)
	symm := []int{0, 0, 2}

	res, err := Tucker(x, 1e-12, symm)
	require.NoError(t, err)
	assert.Same(t, res.Transforms[0], res.Transforms[1])

	res, err = Randomized(x, 4, 1, 1, symm, rnd)
	require.NoError(t, err)
	assert.Same(t, res.Transforms[0], res.Transforms[1])
	assert.Equal(t, []int{4, 4, 3}, res.Core.Shape())
}
