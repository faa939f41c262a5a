// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/curioloop/certifier/quatmat"
)

// With a zero residual the two regimes share their leading corner and
// differ only in how the truncation threshold loads the last diagonal
// entry: ¼c̄² when the residual constraint is tight, ¾c̄² when the
// truncation constraint is.
func TestSlackRegimeFormulas(t *testing.T) {
	const cbar2 = 0.8
	src := r3.Vec{X: 1}

	active := slackActiveBlock(src, r3.Vec{}, cbar2)
	inactive := slackInactiveBlock(src, r3.Vec{}, cbar2)

	wantCorner := mat.NewDense(3, 3, []float64{
		-0.2, 0, 0,
		0, -1.2, 0,
		0, 0, -1.2,
	})
	require.True(t, mat.EqualApprox(wantCorner, active.Slice(0, 3, 0, 3), 1e-14))
	require.True(t, mat.EqualApprox(wantCorner, inactive.Slice(0, 3, 0, 3), 1e-14))

	require.InDelta(t, -0.25*cbar2, active.At(3, 3), 1e-14)
	require.InDelta(t, -0.75*cbar2, inactive.At(3, 3), 1e-14)

	require.Equal(t, slackActive, regimeFor(1))
	require.Equal(t, slackInactive, regimeFor(-1))
}

func TestSlackBlocksSymmetric(t *testing.T) {
	src := r3.Vec{X: 0.7, Y: -1.2, Z: 0.4}
	xi := r3.Vec{X: -0.3, Y: 0.5, Z: 0.9}

	for _, b := range []*mat.Dense{
		slackActiveBlock(src, xi, 1.3),
		slackInactiveBlock(src, xi, 1.3),
	} {
		require.True(t, mat.EqualApprox(b, b.T(), 1e-13))
	}
}

// The global block accumulates the unnegated per-correspondence blocks
// while each correspondence carries the negated one, so the diagonal
// blocks sum to zero at initialization.
func TestLambdaGuessZeroSum(t *testing.T) {
	const cbar2 = 1.0

	q := quatmat.Normalize(quat.Number{Real: 0.7, Imag: -0.1, Jmag: 0.4, Kmag: 0.2})
	rot := rotFromQuat(q)

	src := []r3.Vec{
		{X: 1, Y: 0.2, Z: -0.3},
		{X: -0.5, Y: 1.1, Z: 0.7},
		{X: 0.4, Y: -0.8, Z: 0.9},
	}
	dst := []r3.Vec{
		{X: 0.6, Y: 0.4, Z: -0.5},
		{X: -1.3, Y: 0.8, Z: 0.1},
		{X: 2.0, Y: -0.2, Z: 0.3}, // grossly off, labeled outlier
	}
	theta := []float64{1, 1, 1, -1}

	guess := lambdaGuess(rot, theta, src, dst, cbar2)
	require.True(t, mat.EqualApprox(guess, guess.T(), 1e-12))

	sum := mat.NewDense(4, 4, nil)
	for b := 0; b <= len(src); b++ {
		sum.Add(sum, guess.Slice(4*b, 4*b+4, 4*b, 4*b+4))
	}
	require.True(t, mat.EqualApprox(mat.NewDense(4, 4, nil), sum, 1e-12))

	// off-diagonal blocks stay empty in the guess
	for r := 0; r < 4; r++ {
		for c := 4; c < 16; c++ {
			require.Zero(t, guess.At(r, c))
		}
	}
}
