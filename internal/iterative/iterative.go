// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package iterative provides iterative methods for the symmetric linear
// systems that arise in the normal equations of an ALS mode update.
package iterative

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrIterationLimit is returned when the method did not converge in
	// Settings.MaxIterations iterations. The last iterate is still
	// returned in Result.X.
	ErrIterationLimit = errors.New("iterative: iteration limit reached")

	// ErrBreakdown is returned when the method cannot continue, for example
	// when the matrix is not positive definite in the search direction.
	ErrBreakdown = errors.New("iterative: breakdown")
)

// MatrixOps describes the matrix of the
// linear system.
type MatrixOps struct {
	// Compute A*x and store the result
	// into dst.
	// It must be non-nil.
	MatVec func(dst, x []float64)
}

// Settings holds various settings for
// solving a linear system.
type Settings struct {
	// X0 is an initial guess.
	// If it is nil, the zero vector will
	// be used.
	// If it is not nil, the length of X0
	// must be equal to the dimension of
	// the system.
	X0 []float64

	// Tolerance specifies the relative
	// residual tolerance
	//  |r_i| < Tolerance * |b|
	// for the final approximate solution.
	// Tolerance must be smaller than one
	// and greater than the machine
	// epsilon.
	Tolerance float64

	// MaxIterations is the limit on the
	// number of iterations.
	// If it is zero, it will be set to
	// twice the dimension of the system.
	MaxIterations int

	// PSolve stores into dst the
	// solution of the preconditioner
	// system
	//  M z = rhs.
	// If it is nil, M is the identity.
	PSolve func(dst, rhs []float64) error
}

func defaultSettings(s *Settings, dim int) {
	if s.Tolerance == 0 {
		s.Tolerance = 1e-10
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = 2 * dim
	}
}

// Operation specifies the type of operation.
type Operation uint64

// Operations commanded by Method.Iterate.
const (
	NoOperation Operation = 0

	// Multiply A*x where x is stored in
	// Context.Vectors[Context.Src] and
	// store the result in
	// Context.Vectors[Context.Dst].
	MatVec Operation = 1 << (iota - 1)

	// Do the preconditioner solve
	//  M z = r,
	// where r is Context.Vectors[Context.Src]
	// and z is Context.Vectors[Context.Dst].
	PSolve

	// Compute b - A*x where x is stored
	// in Context.X and store the result
	// into Context.Residual.
	ComputeResidual

	// Check convergence using
	// Context.ResidualNorm and set
	// Context.Converged accordingly.
	CheckResidualNorm

	// EndIteration indicates that Method
	// has finished one iteration. If
	// Context.Converged is true, the
	// process must be terminated.
	EndIteration
)

// Method is an iterative method that produces a sequence of vectors converging
// to the vector x satisfying a system of linear equations
//  A x = b,
// where A is a non-singular dim×dim matrix.
//
// Method uses a reverse-communication interface: it commands the caller to
// perform the operations it needs via the Operation returned from Iterate.
type Method interface {
	// Init initializes the method for solving a dim×dim linear system
	// and returns the number of work vectors it needs in
	// Context.Vectors.
	Init(dim int) int

	// Iterate retrieves data from Context, updates it, and returns the next
	// operation.
	Iterate(*Context) (Operation, error)
}

// Context mediates the communication between a Method and the caller.
type Context struct {
	// X is the current approximate solution.
	X []float64
	// Residual is the current residual b-A*x.
	Residual []float64
	// ResidualNorm is the norm of the current residual. Method must
	// update it before it commands CheckResidualNorm.
	ResidualNorm float64
	// Converged is set by the caller as the result of
	// CheckResidualNorm.
	Converged bool

	// Vectors are the work vectors of the method.
	Vectors [][]float64
	// Src and Dst index Vectors for MatVec and PSolve.
	Src, Dst int
}

// Result holds the result of an iterative solve.
type Result struct {
	// X is the approximate solution.
	X []float64
	// Stats holds the statistics of the
	// solve.
	Stats Stats
}

// Stats holds statistics about an iterative solve.
type Stats struct {
	// Iterations is the number of
	// iterations done by Method.
	Iterations int
	// MatVec is the number of MatVec
	// operations.
	MatVec int
	// PSolve is the number of PSolve
	// operations.
	PSolve int
	// ResidualNorm is the final norm of
	// the residual.
	ResidualNorm float64
	// StartTime is an approximate time
	// when the solve was started.
	StartTime time.Time
	// Runtime is an approximate duration
	// of the solve.
	Runtime time.Duration
}

// LinearSolve solves the system of n linear equations
//  A*x = b,
// where the n×n matrix A is represented by the matrix-vector product in a.
// The dimension n is determined by the length of b.
//
// settings provide means for adjusting the iterative process. Zero values of
// the fields mean default values.
func LinearSolve(a MatrixOps, b []float64, method Method, settings Settings) (Result, error) {
	stats := Stats{StartTime: time.Now()}

	dim := len(b)
	if a.MatVec == nil {
		panic("iterative: nil matrix-vector multiplication")
	}
	if settings.X0 != nil && len(settings.X0) != dim {
		panic("iterative: mismatched length of initial guess")
	}
	if dim == 0 {
		return Result{Stats: stats}, nil
	}

	defaultSettings(&settings, dim)
	if settings.Tolerance < dlamchE || 1 <= settings.Tolerance {
		panic("iterative: invalid tolerance")
	}

	ctx := &Context{
		X:        make([]float64, dim),
		Residual: make([]float64, dim),
	}
	if settings.X0 != nil {
		copy(ctx.X, settings.X0)
		a.MatVec(ctx.Residual, ctx.X)
		stats.MatVec++
		floats.AddScaledTo(ctx.Residual, b, -1, ctx.Residual) // r = b - Ax
	} else {
		copy(ctx.Residual, b)
	}

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}
	ctx.ResidualNorm = floats.Norm(ctx.Residual, 2)
	stats.ResidualNorm = ctx.ResidualNorm
	var err error
	if ctx.ResidualNorm >= settings.Tolerance*bnorm {
		err = iterate(a, b, bnorm, ctx, settings, method, &stats)
	}

	stats.Runtime = time.Since(stats.StartTime)
	return Result{
		X:     ctx.X,
		Stats: stats,
	}, err
}

func iterate(a MatrixOps, b []float64, bnorm float64, ctx *Context, settings Settings, method Method, stats *Stats) error {
	dim := len(ctx.X)
	nvec := method.Init(dim)
	ctx.Vectors = make([][]float64, nvec)
	for i := range ctx.Vectors {
		ctx.Vectors[i] = make([]float64, dim)
	}

	for {
		op, err := method.Iterate(ctx)
		if err != nil {
			return err
		}

		switch op {
		case NoOperation:

		case ComputeResidual:
			a.MatVec(ctx.Residual, ctx.X)
			stats.MatVec++
			floats.AddScaledTo(ctx.Residual, b, -1, ctx.Residual)

		case MatVec:
			a.MatVec(ctx.Vectors[ctx.Dst], ctx.Vectors[ctx.Src])
			stats.MatVec++

		case PSolve:
			if settings.PSolve == nil {
				copy(ctx.Vectors[ctx.Dst], ctx.Vectors[ctx.Src])
				continue
			}
			if err := settings.PSolve(ctx.Vectors[ctx.Dst], ctx.Vectors[ctx.Src]); err != nil {
				return err
			}
			stats.PSolve++

		case CheckResidualNorm:
			ctx.Converged = ctx.ResidualNorm/bnorm < settings.Tolerance

		case EndIteration:
			stats.Iterations++
			stats.ResidualNorm = ctx.ResidualNorm
			if ctx.Converged {
				return nil
			}
			if stats.Iterations == settings.MaxIterations {
				return ErrIterationLimit
			}

		default:
			panic("iterative: invalid operation")
		}
	}
}

const dlamchE = 1.0 / (1 << 53)
