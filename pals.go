// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"fmt"
	"time"
)

// ComputePALS builds the decomposition in panels. The first panel optimizes
// an SVD guess at a rank equal to the largest extent M. Every following panel
// appends max(1, ⌊step·M⌋) random columns to the factors and optimizes them
// with its own convergence test, so the panel ranks strictly increase.
//
// tests[p] is used for panel p and must not be shared with another panel.
func (e *engine) ComputePALS(tests []ConvergenceTest, step float64, panels int, settings Settings) (Result, error) {
	if step <= 0 {
		return Result{Error: -1}, fmt.Errorf("panel step %v: %w", step, ErrPanelStep)
	}
	if len(tests) < panels {
		return Result{Error: -1}, fmt.Errorf("%d tests for %d panels: %w", len(tests), panels, ErrConvergenceTests)
	}
	if panels <= 0 {
		panic("cpd: non-positive panel count")
	}

	var maxDim int
	for _, d := range e.v.extents() {
		maxDim = max(maxDim, d)
	}
	inc := max(1, int(step*float64(maxDim)))

	stats := e.begin(settings)
	stats.StartTime = time.Now()
	var (
		eps    float64
		err    error
		record []Panel
	)
	for p := 0; p < panels; p++ {
		if tests[p] == nil {
			panic("cpd: nil convergence test")
		}
		if p == 0 {
			eps, err = e.build(max(maxDim, e.rank()), tests[0], BuildOptions{Step: 1, SVDGuess: true, SVDRank: maxDim})
		} else {
			e.grow(e.rank() + inc)
			eps, err = e.als(tests[p])
		}
		if err != nil {
			res := e.finish(-1)
			res.Panels = record
			return res, err
		}
		record = append(record, Panel{Rank: e.rank(), Error: eps})
		e.log.Debug("cpd: panel finished", "panel", p, "rank", e.rank(), "error", eps)
	}
	res := e.finish(eps)
	res.Panels = record
	return res, nil
}
