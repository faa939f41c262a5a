// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package quatmat provides the small quaternion/matrix operators shared by
// the rotation-certification code: the hat map, the quaternion
// left-multiplication block and its block-diagonal replication, and the
// rotation-matrix to quaternion conversion.
package quatmat

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hat returns the skew-symmetric cross-product matrix H of v,
// satisfying H·𝐱 = v×𝐱 for any 3-vector 𝐱.
func Hat(v r3.Vec) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// Omega returns the 4×4 left-multiplication block Ω(q) of the quaternion
// algebra acting on quaternions stored as (x,y,z,w): Ω(q)·p = q⊗p.
// For unit q the block is orthogonal.
func Omega(q quat.Number) *mat.Dense {
	x, y, z, w := q.Imag, q.Jmag, q.Kmag, q.Real
	return mat.NewDense(4, 4, []float64{
		w, -z, y, x,
		z, w, -x, y,
		-y, x, w, z,
		-x, -y, -z, w,
	})
}

// BlockDiagOmega replicates Ω(q) along the diagonal of an otherwise zero
// size×size matrix. The size must be a positive multiple of 4.
func BlockDiagOmega(size int, q quat.Number) *mat.Dense {
	if size <= 0 || size%4 != 0 {
		panic("quatmat: size must be a positive multiple of 4")
	}
	omega := Omega(q)
	d := mat.NewDense(size, size, nil)
	for b := 0; b < size/4; b++ {
		d.Slice(4*b, 4*b+4, 4*b, 4*b+4).(*mat.Dense).Copy(omega)
	}
	return d
}

// Normalize scales q to unit norm.
func Normalize(q quat.Number) quat.Number {
	return quat.Scale(1/quat.Abs(q), q)
}

// FromRotation converts a 3×3 rotation matrix into the unit quaternion of
// the same rotation, using Shepperd's method: the numerically largest of
// the four pivots keeps every division well conditioned.
func FromRotation(r *mat.Dense) quat.Number {
	m00, m01, m02 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	m10, m11, m12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	m20, m21, m22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	var q quat.Number
	switch tr := m00 + m11 + m22; {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quat.Number{Real: s / 4, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1 + m00 - m11 - m22)
		q = quat.Number{Real: (m21 - m12) / s, Imag: s / 4, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1 + m11 - m00 - m22)
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: s / 4, Kmag: (m12 + m21) / s}
	default:
		s := 2 * math.Sqrt(1 + m22 - m00 - m11)
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: s / 4}
	}
	return Normalize(q)
}
