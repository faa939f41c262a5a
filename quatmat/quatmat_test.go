// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quatmat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestHatCrossProduct(t *testing.T) {
	vs := []r3.Vec{
		{X: 1, Y: 2, Z: 3},
		{X: -0.5, Y: 0, Z: 4},
		{X: 0.3, Y: -1.7, Z: 0.9},
	}
	xs := []r3.Vec{
		{X: 2, Y: -1, Z: 0.5},
		{X: 1, Y: 1, Z: 1},
		{X: -3, Y: 0.2, Z: 0},
	}
	for _, v := range vs {
		h := Hat(v)
		for _, x := range xs {
			want := r3.Cross(v, x)
			got := r3.Vec{
				X: h.At(0, 0)*x.X + h.At(0, 1)*x.Y + h.At(0, 2)*x.Z,
				Y: h.At(1, 0)*x.X + h.At(1, 1)*x.Y + h.At(1, 2)*x.Z,
				Z: h.At(2, 0)*x.X + h.At(2, 1)*x.Y + h.At(2, 2)*x.Z,
			}
			require.InDelta(t, want.X, got.X, 1e-14)
			require.InDelta(t, want.Y, got.Y, 1e-14)
			require.InDelta(t, want.Z, got.Z, 1e-14)
		}
	}
}

func TestOmegaLeftMultiplication(t *testing.T) {
	q := Normalize(quat.Number{Real: 0.9, Imag: -0.2, Jmag: 0.3, Kmag: 0.1})
	p := quat.Number{Real: -1.5, Imag: 0.4, Jmag: 2.0, Kmag: -0.7}

	want := quat.Mul(q, p)

	o := Omega(q)
	pv := mat.NewVecDense(4, []float64{p.Imag, p.Jmag, p.Kmag, p.Real})
	var got mat.VecDense
	got.MulVec(o, pv)

	require.InDelta(t, want.Imag, got.AtVec(0), 1e-14)
	require.InDelta(t, want.Jmag, got.AtVec(1), 1e-14)
	require.InDelta(t, want.Kmag, got.AtVec(2), 1e-14)
	require.InDelta(t, want.Real, got.AtVec(3), 1e-14)
}

func TestOmegaOrthogonal(t *testing.T) {
	qs := []quat.Number{
		{Real: 1},
		Normalize(quat.Number{Real: 0.5, Imag: 0.5, Jmag: -0.5, Kmag: 0.5}),
		Normalize(quat.Number{Real: -0.1, Imag: 0.9, Jmag: 0.3, Kmag: -0.2}),
	}
	eye4 := identity(4)
	for _, q := range qs {
		o := Omega(q)
		var oto mat.Dense
		oto.Mul(o.T(), o)
		require.True(t, mat.EqualApprox(eye4, &oto, 1e-12))
	}

	d := BlockDiagOmega(12, qs[1])
	var dtd mat.Dense
	dtd.Mul(d.T(), d)
	require.True(t, mat.EqualApprox(identity(12), &dtd, 1e-12))
}

func TestBlockDiagOmegaBadSize(t *testing.T) {
	q := quat.Number{Real: 1}
	require.Panics(t, func() { BlockDiagOmega(0, q) })
	require.Panics(t, func() { BlockDiagOmega(6, q) })
	require.NotPanics(t, func() { BlockDiagOmega(4, q) })
}

func TestFromRotation(t *testing.T) {
	half := math.Sqrt2 / 2

	// identity rotation
	q := FromRotation(identity(3))
	requireQuatEqual(t, quat.Number{Real: 1}, q)

	// 90° about z
	rz := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})
	requireQuatEqual(t, quat.Number{Real: half, Kmag: half}, FromRotation(rz))

	// 180° about x exercises the negative-trace pivots
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, -1, 0,
		0, 0, -1,
	})
	requireQuatEqual(t, quat.Number{Imag: 1}, FromRotation(rx))
}

// requireQuatEqual compares quaternions up to the q ~ -q double cover.
func requireQuatEqual(t *testing.T, want, got quat.Number) {
	t.Helper()
	if want.Real*got.Real+want.Imag*got.Imag+want.Jmag*got.Jmag+want.Kmag*got.Kmag < 0 {
		got = quat.Scale(-1, got)
	}
	require.InDelta(t, want.Real, got.Real, 1e-12)
	require.InDelta(t, want.Imag, got.Imag, 1e-12)
	require.InDelta(t, want.Jmag, got.Jmag, 1e-12)
	require.InDelta(t, want.Kmag, got.Kmag, 1e-12)
}

func identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
