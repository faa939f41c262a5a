// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drs

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/curioloop/certifier/quatmat"
)

// slackRegime tags which complementary-slackness formula builds a
// correspondence's dual block.
type slackRegime int

const (
	// slackActive - labeled inlier, the residual term of the robust cost is tight.
	slackActive slackRegime = iota
	// slackInactive - labeled outlier, the truncation term is tight.
	slackInactive
)

func regimeFor(theta float64) slackRegime {
	if theta > 0 {
		return slackActive
	}
	return slackInactive
}

// slackActiveBlock builds the symmetric 4×4 dual block of an inlier
// correspondence from the body-frame residual ξ = Rᵀ(dst − R·src):
//
//	corner = ŝ² − ½(s·ξ)I + ½ξ̂ŝ + ½ξsᵀ − ¾‖ξ‖²I − ¼c̄²I
//	cross  = −3/2·ξ̂·s
//	last   = −¾‖ξ‖² − ¼c̄²
func slackActiveBlock(src, xi r3.Vec, cbar2 float64) *mat.Dense {
	return slackBlock(src, xi, 0.75, 0.25*cbar2, cbar2)
}

// slackInactiveBlock is the outlier counterpart of slackActiveBlock:
//
//	corner = ŝ² − ½(s·ξ)I + ½ξ̂ŝ + ½ξsᵀ − ¼‖ξ‖²I − ¼c̄²I
//	cross  = −½·ξ̂·s
//	last   = −¼‖ξ‖² − ¾c̄²
func slackInactiveBlock(src, xi r3.Vec, cbar2 float64) *mat.Dense {
	return slackBlock(src, xi, 0.25, 0.75*cbar2, cbar2)
}

func slackBlock(src, xi r3.Vec, resWeight, lastShift, cbar2 float64) *mat.Dense {
	srcHat := quatmat.Hat(src)
	xiHat := quatmat.Hat(xi)

	b := mat.NewDense(4, 4, nil)
	b.Set(3, 3, -resWeight*r3.Norm2(xi)-lastShift)

	// leading 3×3 correction
	var corner, cross mat.Dense
	corner.Mul(srcHat, srcHat)
	cross.Mul(xiHat, srcHat)
	diag := -0.5*r3.Dot(src, xi) - resWeight*r3.Norm2(xi) - 0.25*cbar2
	xiv := [3]float64{xi.X, xi.Y, xi.Z}
	srcv := [3]float64{src.X, src.Y, src.Z}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := corner.At(r, c) + 0.5*cross.At(r, c) + 0.5*xiv[r]*srcv[c]
			if r == c {
				v += diag
			}
			b.Set(r, c, v)
		}
	}

	// cross term on the last row and column keeps the block symmetric
	cs := mulVec3(xiHat, src)
	scale := 2 * resWeight
	b.Set(0, 3, -scale*cs.X)
	b.Set(1, 3, -scale*cs.Y)
	b.Set(2, 3, -scale*cs.Z)
	b.Set(3, 0, -scale*cs.X)
	b.Set(3, 1, -scale*cs.Y)
	b.Set(3, 2, -scale*cs.Z)
	return b
}

// lambdaGuess builds the initial dual iterate inside the affine subspace.
// Correspondence i contributes its negated regime block on diagonal block
// i+1 and its unnegated block to the global block, so the global block is
// the negative sum of all per-correspondence blocks.
func lambdaGuess(rot *mat.Dense, theta []float64, src, dst []r3.Vec, cbar2 float64) *mat.Dense {
	n := len(src)
	npm := 4 + 4*n
	guess := mat.NewDense(npm, npm, nil)

	global := mat.NewDense(4, 4, nil)
	for i := 0; i < n; i++ {
		// body-frame residual ξᵢ = Rᵀ(dstᵢ − R·srcᵢ)
		xi := mulVec3T(rot, r3.Sub(dst[i], mulVec3(rot, src[i])))

		var block *mat.Dense
		switch regimeFor(theta[i+1]) {
		case slackActive:
			block = slackActiveBlock(src[i], xi, cbar2)
		case slackInactive:
			block = slackInactiveBlock(src[i], xi, cbar2)
		}

		at := 4 * (i + 1)
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				guess.Set(at+r, at+c, -block.At(r, c))
			}
		}
		global.Add(global, block)
	}
	guess.Slice(0, 4, 0, 4).(*mat.Dense).Copy(global)
	return guess
}

// mulVec3 computes m·v for a 3×3 matrix.
func mulVec3(m *mat.Dense, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// mulVec3T computes mᵀ·v for a 3×3 matrix.
func mulVec3T(m *mat.Dense, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(1, 0)*v.Y + m.At(2, 0)*v.Z,
		Y: m.At(0, 1)*v.X + m.At(1, 1)*v.Y + m.At(2, 1)*v.Z,
		Z: m.At(0, 2)*v.X + m.At(1, 2)*v.Y + m.At(2, 2)*v.Z,
	}
}
