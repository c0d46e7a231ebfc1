// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import "errors"

var (
	// ErrSymmetry is returned when a symmetry map has the wrong length,
	// maps a mode to a later one, or pairs modes of different extents.
	ErrSymmetry = errors.New("cpd: invalid symmetry map")

	// ErrShape is returned when the tensors of a decomposition have
	// incompatible shapes.
	ErrShape = errors.New("cpd: incompatible tensor shape")

	// ErrRank is returned when a requested rank is not positive or is
	// smaller than the current rank.
	ErrRank = errors.New("cpd: invalid rank")

	// ErrSVDRank is returned when an SVD seeded build is requested
	// without a valid seed rank.
	ErrSVDRank = errors.New("cpd: invalid SVD guess rank")

	// ErrPanelStep is returned when the PALS panel step is not positive.
	ErrPanelStep = errors.New("cpd: panel step not positive")

	// ErrConvergenceTests is returned when fewer convergence tests than
	// panels are supplied.
	ErrConvergenceTests = errors.New("cpd: too few convergence tests")

	// ErrGeometricStep is returned when the geometric rank step is
	// smaller than two.
	ErrGeometricStep = errors.New("cpd: geometric step smaller than two")
)
