// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import "gonum.org/v1/gonum/mat"

// StepSize tracks the previous iterate of every factor matrix and measures
// the relative step
//  ‖A_new - A_prev‖_F / ‖A_new‖_F
// taken by an update. It is the step-size estimate of regularized ALS
// (RALS). The zero value is ready to use and treats missing previous
// iterates as zero.
type StepSize struct {
	prev []*mat.Dense
}

// NewStepSize returns a StepSize whose previous iterates are copies of
// modes.
func NewStepSize(modes []*mat.Dense) *StepSize {
	s := &StepSize{prev: make([]*mat.Dense, len(modes))}
	for i, a := range modes {
		s.prev[i] = mat.DenseCopyOf(a)
	}
	return s
}

// Step returns the relative step from the stored iterate of mode to a and
// stores a copy of a as the new previous iterate. A stored iterate of
// different dimensions is treated as zero. Step returns 0 if a is zero.
func (s *StepSize) Step(mode int, a *mat.Dense) float64 {
	if mode >= len(s.prev) {
		s.prev = append(s.prev, make([]*mat.Dense, mode+1-len(s.prev))...)
	}
	den := mat.Norm(a, 2)
	num := den
	if p := s.prev[mode]; p != nil {
		r, c := a.Dims()
		pr, pc := p.Dims()
		if r == pr && c == pc {
			var d mat.Dense
			d.Sub(a, p)
			num = mat.Norm(&d, 2)
		}
	}
	s.prev[mode] = mat.DenseCopyOf(a)
	if den == 0 {
		return 0
	}
	return num / den
}
