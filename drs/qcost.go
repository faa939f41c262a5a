// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drs

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// pMap is the 9×16 coefficient matrix mapping the column-major flattening
// of qqᵀ, with quaternion components ordered (x,y,z,w), to the column-major
// flattening of the rotation matrix R(q).
var pMap = [9][16]float64{
	{1, 0, 0, 0, 0, -1, 0, 0, 0, 0, -1, 0, 0, 0, 0, 1},
	{0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0},
	{0, 0, 1, 0, 0, 0, 0, -1, 1, 0, 0, 0, 0, -1, 0, 0},
	{0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0, -1, 0, 0, -1, 0},
	{-1, 0, 0, 0, 0, 1, 0, 0, 0, 0, -1, 0, 0, 0, 0, 1},
	{0, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 0},
	{0, 0, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 0, 0},
	{0, 0, 0, -1, 0, 0, 1, 0, 0, 1, 0, 0, -1, 0, 0, 0},
	{-1, 0, 0, 0, 0, -1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
}

// quadBlock builds Pₖ = reshape(Pᵀ·vec(dst·srcᵀ), 4, 4), the quaternion
// quadratic form of one correspondence: qᵀ·Pₖ·q = dstᵀ·R(q)·src.
// The block is symmetric by construction of pMap.
func quadBlock(src, dst r3.Vec) *mat.Dense {
	s := [3]float64{src.X, src.Y, src.Z}
	d := [3]float64{dst.X, dst.Y, dst.Z}
	pk := mat.NewDense(4, 4, nil)
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float64
			for m := 0; m < 9; m++ {
				// vec(dst·srcᵀ)[m] = dst[m mod 3]·src[m div 3]
				sum += pMap[m][4*c+r] * d[m%3] * s[m/3]
			}
			pk.Set(r, c, sum)
		}
	}
	return pk
}

// qCost assembles the symmetric 4(N+1)-sized cost matrix Q = Q1 + Q2 of the
// relaxed truncated-least-squares registration objective. Q1 couples the
// global block to every correspondence block, Q2 is block-diagonal; the
// same per-pair quadratic form enters Q1 at half weight and Q2 at full
// weight, offset by cₖ = ½(‖srcₖ‖²+‖dstₖ‖²∓cbar2).
func qCost(src, dst []r3.Vec, cbar2 float64) *mat.Dense {
	n := len(src)
	npm := 4 + 4*n
	q := mat.NewDense(npm, npm, nil)
	for k := 0; k < n; k++ {
		at := 4 + 4*k
		pk := quadBlock(src[k], dst[k])
		norms := r3.Norm2(src[k]) + r3.Norm2(dst[k])

		// Q1 coupling blocks (0,k) and (k,0)
		ck := 0.5 * (norms - cbar2)
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				v := -0.5 * pk.At(r, c)
				if r == c {
					v += ck / 2
				}
				q.Set(r, at+c, v)
				q.Set(at+r, c, v)
			}
		}

		// Q2 diagonal block (k,k)
		ck = 0.5 * (norms + cbar2)
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				v := -pk.At(r, c)
				if r == c {
					v += ck
				}
				q.Set(at+r, at+c, v)
			}
		}
	}
	return q
}
