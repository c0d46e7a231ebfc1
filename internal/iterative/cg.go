// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iterative

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// CG implements the preconditioned conjugate gradient method for symmetric
// positive definite systems.
type CG struct {
	first        bool
	rho, rhoPrev float64
	resume       int
}

// Init implements the Method interface.
func (cg *CG) Init(dim int) int {
	cg.first = true
	cg.resume = 1
	return 4
}

// Iterate implements the Method interface.
func (cg *CG) Iterate(ctx *Context) (Operation, error) {
	const (
		ri = iota
		zi
		pi
		api
	)
	r := ctx.Vectors[ri]
	switch cg.resume {
	case 1:
		if cg.first {
			copy(r, ctx.Residual)
		}
		// Solve M z = r_{i-1}
		ctx.Src = ri
		ctx.Dst = zi
		cg.resume = 2
		return PSolve, nil
	case 2:
		z, p := ctx.Vectors[zi], ctx.Vectors[pi]
		cg.rho = floats.Dot(r, z) // ρ_i = r_{i-1} · z
		if !cg.first {
			beta := cg.rho / cg.rhoPrev  // β = ρ_i / ρ_{i-1}
			floats.AddScaled(z, beta, p) // z = z + β p_{i-1}
		}
		copy(p, z) // p_i = z

		ctx.Src = pi
		ctx.Dst = api
		cg.resume = 3
		return MatVec, nil
	case 3:
		p, ap := ctx.Vectors[pi], ctx.Vectors[api]
		pap := floats.Dot(p, ap)
		if pap <= 0 {
			cg.resume = 0
			return NoOperation, fmt.Errorf("cg: pᵀAp = %v: %w", pap, ErrBreakdown)
		}
		alpha := cg.rho / pap             // α = ρ_i / (p_i · Ap_i)
		floats.AddScaled(r, -alpha, ap)   // r_i = r_{i-1} - α Ap_i
		floats.AddScaled(ctx.X, alpha, p) // x_i = x_{i-1} + α p_i

		copy(ctx.Residual, r)
		ctx.ResidualNorm = floats.Norm(r, 2)
		ctx.Converged = false
		cg.resume = 4
		return CheckResidualNorm, nil
	case 4:
		if ctx.Converged {
			cg.resume = 0
			return EndIteration, nil
		}
		cg.rhoPrev = cg.rho
		cg.first = false
		cg.resume = 1
		return EndIteration, nil

	default:
		panic("iterative: CG.Init not called")
	}
}
