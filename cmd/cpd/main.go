// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cpd decomposes a synthetic low-rank tensor and reports how well
// each rank-building strategy recovers it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/vladimir-ch/cpd"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/mat"
)

var (
	dims      = flag.String("dims", "10,12,8", "Comma separated tensor extents")
	rank      = flag.Int("rank", 4, "Target rank of the decomposition")
	trueRank  = flag.Int("true-rank", 4, "Rank of the generated tensor")
	seed      = flag.Int64("seed", 1, "Random seed")
	noise     = flag.Float64("noise", 0, "Standard deviation of added Gaussian noise")
	strategy  = flag.String("strategy", "rank", "Strategy: rank, random, error, geometric, pals, tucker, randomized")
	tol       = flag.Float64("tol", 1e-10, "Tolerance of the convergence test")
	maxIter   = flag.Int("max-iter", 1000, "Maximum number of ALS sweeps per optimization")
	update    = flag.String("update", "direct", "MtKRP method: direct, khatri-rao")
	pinv      = flag.String("pinv", "svd", "Normal equation solver: svd, cholesky, cholesky-fallback, lu, cg")
	verbose   = flag.Bool("verbose", false, "Log every finished optimization")
	svdGuess  = flag.Bool("svd", false, "Seed from the leading eigenvectors of the mode Gram matrices")
	targetErr = flag.Float64("target", 1e-6, "Target error of the error strategy")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	shape, err := parseDims(*dims)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cpd: %v\n", err)
		os.Exit(2)
	}
	rnd := rand.New(rand.NewSource(*seed))
	x := generate(rnd, *trueRank, *noise, shape)

	settings := cpd.Settings{
		MaxIterations:  *maxIter,
		CalculateError: true,
		Rand:           rnd,
		Logger:         logger,
	}
	if settings.Update, err = parseUpdate(*update); err != nil {
		fmt.Fprintf(os.Stderr, "cpd: %v\n", err)
		os.Exit(2)
	}
	if settings.Pinv, err = parsePinv(*pinv); err != nil {
		fmt.Fprintf(os.Stderr, "cpd: %v\n", err)
		os.Exit(2)
	}

	c, err := cpd.NewCPALS(x, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cpd: %v\n", err)
		os.Exit(1)
	}
	test := &cpd.NormCheck{Tolerance: *tol}
	opts := cpd.BuildOptions{}
	if *svdGuess {
		opts.SVDGuess = true
		opts.SVDRank = min(*rank, *trueRank)
	}

	var res cpd.Result
	switch *strategy {
	case "rank":
		res, err = c.ComputeRank(*rank, test, opts, settings)
	case "random":
		res, err = c.ComputeRandom(*rank, test, settings)
	case "error":
		res, err = c.ComputeError(test, *targetErr*x.Norm(), *rank, opts, settings)
	case "geometric":
		res, err = c.ComputeGeometric(*rank, test, 2, opts, settings)
	case "pals":
		tests := make([]cpd.ConvergenceTest, 4)
		for i := range tests {
			tests[i] = &cpd.NormCheck{Tolerance: *tol}
		}
		res, err = c.ComputePALS(tests, 0.2, len(tests), settings)
	case "tucker":
		res, err = c.CompressTucker(1e-10, test, *rank, settings)
	case "randomized":
		res, err = c.CompressRandom(*trueRank, test, 2, 2, *rank, settings)
	default:
		fmt.Fprintf(os.Stderr, "cpd: unknown strategy %q\n", *strategy)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cpd: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Strategy: %s\n", *strategy)
	fmt.Printf("Shape: %v\n", shape)
	fmt.Printf("Rank: %d\n", res.Rank)
	fmt.Printf("Optimizations: %d\n", res.Stats.Optimizations)
	fmt.Printf("Sweeps: %d\n", res.Stats.Sweeps)
	fmt.Printf("Converged: %t\n", res.Stats.Converged)
	for i, p := range res.Panels {
		fmt.Printf("Panel %d: rank %d, error %.6e\n", i, p.Rank, p.Error)
	}
	fmt.Printf("Error: %.6e\n", res.Error)
	fmt.Printf("Relative error: %.6e\n", res.Error/x.Norm())
	fmt.Printf("Runtime: %v\n", res.Stats.Runtime)
}

func parseDims(s string) ([]int, error) {
	var shape []int
	for _, f := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("extent %q: %w", f, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("extent %d not positive", d)
		}
		shape = append(shape, d)
	}
	if len(shape) < 2 {
		return nil, fmt.Errorf("need at least two extents, got %d", len(shape))
	}
	return shape, nil
}

func parseUpdate(s string) (cpd.UpdateMethod, error) {
	switch s {
	case "direct":
		return cpd.Direct, nil
	case "khatri-rao":
		return cpd.KhatriRao, nil
	}
	return 0, fmt.Errorf("unknown update method %q", s)
}

func parsePinv(s string) (cpd.PinvPolicy, error) {
	for p := cpd.PinvSVD; p <= cpd.PinvCG; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown solver %q", s)
}

// generate returns a tensor of CP rank r with normally distributed factors
// plus Gaussian noise of the given deviation.
func generate(rnd *rand.Rand, r int, noise float64, shape []int) *tensor.Dense {
	f := &cpd.Factors{Lambda: make([]float64, r)}
	for i := range f.Lambda {
		f.Lambda[i] = 1
	}
	for _, d := range shape {
		a := mat.NewDense(d, r, nil)
		raw := a.RawMatrix().Data
		for i := range raw {
			raw[i] = rnd.NormFloat64()
		}
		f.Modes = append(f.Modes, a)
	}
	x := f.Reconstruct()
	if noise > 0 {
		data := x.Data()
		for i := range data {
			data[i] += noise * rnd.NormFloat64()
		}
	}
	return x
}
