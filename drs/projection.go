// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drs

import "gonum.org/v1/gonum/mat"

// pairOperator is a linear map over the N(N+1)/2-dimensional space of
// upper-triangular block-pair indices. Implementations may be sparse or
// dense; callers only rely on the shared pair enumeration of pairIndex.
type pairOperator interface {
	dim() int
	// apply computes dst = Op·src for a dim()×3 right-hand side.
	apply(dst, src *mat.Dense)
}

// pairIndex maps the pairs (i,j), i<j, over blocks 0..blocks-1 to their
// row-major upper-triangular enumeration 0..blocks(blocks-1)/2-1.
// Every consumer of a pairOperator must walk pairs in this order.
func pairIndex(blocks int) [][]int {
	idx := make([][]int, blocks)
	for i := range idx {
		idx[i] = make([]int, blocks)
	}
	count := 0
	for i := 0; i < blocks-1; i++ {
		for j := i + 1; j < blocks; j++ {
			idx[i][j] = count
			count++
		}
	}
	return idx
}

type pairEntry struct {
	col int
	val float64
}

// sparsePairs is a symmetric pairOperator stored by rows. Each row holds
// only the 2(N-1) couplings of the pairs sharing one index, so apply runs
// in O(N³) instead of the O(N⁴) of a dense product.
type sparsePairs struct {
	n    int
	diag float64
	rows [][]pairEntry
}

func (s *sparsePairs) dim() int { return s.n }

func (s *sparsePairs) apply(dst, src *mat.Dense) {
	for r := 0; r < s.n; r++ {
		for c := 0; c < 3; c++ {
			dst.Set(r, c, s.diag*src.At(r, c))
		}
		for _, e := range s.rows[r] {
			for c := 0; c < 3; c++ {
				dst.Set(r, c, dst.At(r, c)+e.val*src.At(e.col, c))
			}
		}
	}
}

// linearProjection builds the closed-form inverse of the affine
// off-diagonal constraint operator for a prepended labeling of length N+1.
// Two scalars fully determine it: the off-diagonal coupling y = 1/(2N+6)
// and the diagonal x = (N+1)y. Both must stay in real arithmetic: the
// truncating-integer form collapses them to zero for every N and silently
// invalidates each projection.
func linearProjection(theta []float64) *sparsePairs {
	blocks := len(theta)
	n0 := blocks - 1

	y := 1 / float64(2*n0+6)
	x := float64(n0+1) * y

	idx := pairIndex(blocks)
	nrVals := blocks * (blocks - 1) / 2

	inv := &sparsePairs{n: nrVals, diag: x, rows: make([][]pairEntry, nrVals)}
	for i := 0; i < blocks-1; i++ {
		for j := i + 1; j < blocks; j++ {
			col := idx[i][j]
			// pairs sharing index i
			for p := 0; p < blocks; p++ {
				if p == i || p == j {
					continue
				}
				var row int
				var val float64
				if p < i {
					// (p,i) lower-triangular pair flipped to upper
					row = idx[p][i]
					val = y * theta[j] * theta[p]
				} else {
					row = idx[i][p]
					val = -y * theta[j] * theta[p]
				}
				inv.rows[row] = append(inv.rows[row], pairEntry{col: col, val: val})
			}
			// pairs sharing index j
			for p := 0; p < blocks; p++ {
				if p == i || p == j {
					continue
				}
				var row int
				var val float64
				if p < j {
					row = idx[p][j]
					val = -y * theta[i] * theta[p]
				} else {
					row = idx[j][p]
					val = y * theta[i] * theta[p]
				}
				inv.rows[row] = append(inv.rows[row], pairEntry{col: col, val: val})
			}
		}
	}
	return inv
}

// dualProjection projects the symmetric matrix w onto the dual-feasible
// affine manifold. The off-diagonal pass solves all pairwise last-column
// constraints in one shot through inv, the diagonal pass enforces the
// complementary-slackness last rows/columns and centers the leading 3×3
// corners so their mean over all blocks is zero.
func dualProjection(w *mat.Dense, theta []float64, inv pairOperator) *mat.Dense {
	npm, cols := w.Dims()
	blocks := npm / 4
	if npm != cols || blocks != len(theta) || blocks*(blocks-1)/2 != inv.dim() {
		panic("bound check error")
	}

	// stack the off-diagonal right-hand side: for each pair (i,j) combine
	// the two blocks' last rows with weights [-θᵢⱼ 1] and [-1 θᵢⱼ]
	nr := inv.dim()
	bw := mat.NewDense(nr, 3, nil)
	count := 0
	for i := 0; i < blocks-1; i++ {
		ri := 4 * i
		for j := i + 1; j < blocks; j++ {
			cj := 4 * j
			tij := theta[i] * theta[j]
			for c := 0; c < 3; c++ {
				v := -tij*w.At(ri+3, ri+c) + w.At(cj+3, ri+c) -
					w.At(ri+3, cj+c) + tij*w.At(cj+3, cj+c)
				bw.Set(count, c, v)
			}
			count++
		}
	}
	sol := mat.NewDense(nr, 3, nil)
	inv.apply(sol, bw)

	// rebuild the off-diagonal blocks: antisymmetrize, then overwrite the
	// last column with the solved 3-vector (negated on the mirrored row)
	dual := mat.NewDense(npm, npm, nil)
	count = 0
	for i := 0; i < blocks-1; i++ {
		ri := 4 * i
		for j := i + 1; j < blocks; j++ {
			cj := 4 * j
			for r := 0; r < 4; r++ {
				for c := 0; c < 4; c++ {
					dual.Set(ri+r, cj+c, 0.5*(w.At(ri+r, cj+c)-w.At(ri+c, cj+r)))
				}
			}
			for c := 0; c < 3; c++ {
				v := sol.At(count, c)
				dual.Set(ri+c, cj+3, v)
				dual.Set(ri+3, cj+c, -v)
			}
			count++
		}
	}
	// restore full symmetry: dual += dualᵀ
	for r := 0; r < npm; r++ {
		for c := r + 1; c < npm; c++ {
			v := dual.At(r, c) + dual.At(c, r)
			dual.Set(r, c, v)
			dual.Set(c, r, v)
		}
	}

	// diagonal pass: labeling-weighted row sums fix the last rows/columns,
	// corner centering enforces the zero-mean trace condition
	cornerSum := [3][3]float64{}
	for i := 0; i < blocks; i++ {
		di := 4 * i
		var sum [4]float64
		for r := 0; r < 4; r++ {
			for j := 0; j < blocks; j++ {
				sum[r] += theta[j] * dual.At(di+r, 4*j+3)
			}
		}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				dual.Set(di+r, di+c, w.At(di+r, di+c))
			}
		}
		for r := 0; r < 4; r++ {
			dual.Set(di+r, di+3, -theta[i]*sum[r])
			dual.Set(di+3, di+r, -theta[i]*sum[r])
		}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				cornerSum[r][c] += dual.At(di+r, di+c)
			}
		}
	}
	for i := 0; i < blocks; i++ {
		di := 4 * i
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				dual.Set(di+r, di+c, dual.At(di+r, di+c)-cornerSum[r][c]/float64(blocks))
			}
		}
	}
	return dual
}
