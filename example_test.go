// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd_test

import (
	"fmt"
	"math/rand"

	"github.com/vladimir-ch/cpd"
	"github.com/vladimir-ch/cpd/tensor"
	"gonum.org/v1/gonum/mat"
)

func ExampleCPALS() {
	// x[i,j,k] = (i+1)(j+1)(k+1) + (-1)^(i+j+k) has CP rank 2.
	x := tensor.New(3, 4, 5)
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 5; k++ {
				sign := 1.0
				if (i+j+k)%2 == 1 {
					sign = -1
				}
				x.Set(float64((i+1)*(j+1)*(k+1))+sign, i, j, k)
			}
		}
	}

	c, err := cpd.NewCPALS(x, nil)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	res, err := c.ComputeRank(2, &cpd.NormCheck{Tolerance: 1e-12}, cpd.BuildOptions{SVDGuess: true, SVDRank: 2}, cpd.Settings{
		CalculateError: true,
		Rand:           rand.New(rand.NewSource(1)),
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("rank: %d\n", res.Rank)
	fmt.Printf("error below 1e-8: %t\n", res.Error < 1e-8)

	// Output:
	// rank: 2
	// error below 1e-8: true
}

func ExampleStepSize() {
	s := cpd.NewStepSize([]*mat.Dense{mat.NewDense(2, 1, []float64{1, 0})})
	fmt.Printf("%.4f\n", s.Step(0, mat.NewDense(2, 1, []float64{0, 1})))
	fmt.Printf("%.4f\n", s.Step(0, mat.NewDense(2, 1, []float64{0, 2})))

	// Output:
	// 1.4142
	// 0.5000
}
