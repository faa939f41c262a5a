// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drs

import "gonum.org/v1/gonum/mat"

// toSym folds a square matrix to its symmetric part ½(M+Mᵀ).
func toSym(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

// nearestPSD projects the symmetric part of m onto the positive
// semidefinite cone by clamping its negative eigenvalues at zero.
func nearestPSD(m *mat.Dense) *mat.Dense {
	n, _ := m.Dims()

	var es mat.EigenSym
	if !es.Factorize(toSym(m), true) {
		panic("drs: symmetric eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		l := vals[j]
		if l < 0 {
			l = 0
		}
		for i := 0; i < n; i++ {
			scaled.Set(i, j, l*vecs.At(i, j))
		}
	}
	out := mat.NewDense(n, n, nil)
	out.Mul(scaled, vecs.T())
	return out
}

// minEigenvalue returns the smallest eigenvalue of the symmetric part of m.
func minEigenvalue(m *mat.Dense) float64 {
	var es mat.EigenSym
	if !es.Factorize(toSym(m), false) {
		panic("drs: symmetric eigendecomposition failed")
	}
	return es.Values(nil)[0]
}
