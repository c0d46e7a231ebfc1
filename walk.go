// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import "gonum.org/v1/gonum/mat"

// hadamardWalk contracts data, a row-major tensor with extents dims followed
// by a trailing axis of length rank, with the factor matrix factor(p) of
// every position p except target:
//  out[i,r] = Σ data[j_0, …, i, …, j_{m-1}, r] Π_{p≠target} factor(p)[j_p, r].
// The result is dims[target]×rank.
//
// Positions are eliminated from the last one backward. When the walk reaches
// target its extent is folded into the trailing axis, and a final contraction
// with factor(0) exposes it again.
func hadamardWalk(data []float64, dims []int, target, rank int, factor func(p int) *mat.Dense) *mat.Dense {
	var work [2][]float64
	cur := data
	left := 1
	for _, d := range dims {
		left *= d
	}
	prank := rank
	w := 0
	for p := len(dims) - 1; p > 0; p-- {
		d := dims[p]
		left /= d
		if p == target {
			prank *= d
			continue
		}
		a := factor(p).RawMatrix()
		out := reuse(work[w], left*prank)
		for i := range out {
			out[i] = 0
		}
		for l := 0; l < left; l++ {
			dst := out[l*prank : (l+1)*prank]
			for j := 0; j < d; j++ {
				src := cur[(l*d+j)*prank : (l*d+j+1)*prank]
				arow := a.Data[j*a.Stride : j*a.Stride+rank]
				for k := 0; k < prank; k += rank {
					s, t := src[k:k+rank], dst[k:k+rank]
					for r, v := range arow {
						t[r] += s[r] * v
					}
				}
			}
		}
		work[w] = out
		cur = out
		w = 1 - w
	}

	d0 := dims[0]
	if target == 0 {
		res := mat.NewDense(d0, rank, nil)
		copy(res.RawMatrix().Data, cur[:d0*rank])
		return res
	}
	dn := prank / rank
	a := factor(0).RawMatrix()
	res := mat.NewDense(dn, rank, nil)
	rd := res.RawMatrix().Data
	for i := 0; i < d0; i++ {
		arow := a.Data[i*a.Stride : i*a.Stride+rank]
		src := cur[i*prank : (i+1)*prank]
		for k := 0; k < dn; k++ {
			s, t := src[k*rank:(k+1)*rank], rd[k*rank:(k+1)*rank]
			for r, v := range arow {
				t[r] += v * s[r]
			}
		}
	}
	return res
}
