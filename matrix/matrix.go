// Package matrix provides the dense-matrix block helpers statemanager
// builds every algebraic primitive out of: block extraction/write-back,
// upper-triangle symmetrization, and the Givens-rotation nullspace
// projection used by delayed initialization.
package matrix

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Format returns a matrix formatter for printing matrices, e.g. in error
// messages.
func Format(m mat.Matrix) fmt.Formatter {
	return mat.Formatted(m, mat.Prefix(""), mat.Squeeze())
}

// Block copies the rectangular region src[rowLo:rowHi, colLo:colHi] into a
// freshly allocated Dense. It is the primitive get_marginal_covariance and
// every other statemanager primitive build block copies out of.
func Block(src mat.Matrix, rowLo, rowHi, colLo, colHi int) *mat.Dense {
	rows, cols := rowHi-rowLo, colHi-colLo
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, src.At(rowLo+i, colLo+j))
		}
	}
	return out
}

// SetBlock writes src into dst starting at (rowOff, colOff).
func SetBlock(dst *mat.Dense, rowOff, colOff int, src mat.Matrix) {
	rows, cols := src.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.Set(rowOff+i, colOff+j, src.At(i, j))
		}
	}
}

// ReflectUpper returns a SymDense built by reading only m's upper triangle
// (j >= i) and reflecting it, rather than symmetrizing by averaging
// 0.5*(A+A^T).
func ReflectUpper(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, m.At(i, j))
		}
	}
	return out
}

// MinDiag returns the smallest diagonal entry of a symmetric matrix. Every
// statemanager mutation calls this as its postcondition check: a result
// below statemanager's small negative tolerance is a NumericalViolation.
func MinDiag(m mat.Symmetric) float64 {
	n := m.SymmetricDim()
	if n == 0 {
		return 0
	}
	min := m.At(0, 0)
	for i := 1; i < n; i++ {
		if d := m.At(i, i); d < min {
			min = d
		}
	}
	return min
}

// MaxAsymmetry returns max|m - m^T|, used by tests to check a result's
// symmetry invariant.
func MaxAsymmetry(m mat.Matrix) float64 {
	r, c := m.Dims()
	max := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d := math.Abs(m.At(i, j) - m.At(j, i)); d > max {
				max = d
			}
		}
	}
	return max
}

// GivensEliminateUpperTriangular performs a bottom-up Givens QR sweep: for
// each column of hl, rotations zero every entry below the diagonal by
// combining it with the row immediately above,
// walking from the bottom of the column upward. Each rotation is applied
// to the full row pair across hl (columns n..end), hr (all columns), and
// r.
//
// On return hl is upper-triangular in its first hl.Cols() rows.
func GivensEliminateUpperTriangular(hl, hr *mat.Dense, r *mat.VecDense) {
	rows, cols := hl.Dims()
	for n := 0; n < cols; n++ {
		for m := rows - 1; m > n; m-- {
			a := hl.At(m-1, n)
			b := hl.At(m, n)
			if b == 0 {
				continue
			}
			c, s := givensCoeffs(a, b)
			applyGivensRow(hl, m-1, m, n, cols, c, s)
			_, hrCols := hr.Dims()
			applyGivensRow(hr, m-1, m, 0, hrCols, c, s)
			applyGivensVec(r, m-1, m, c, s)
		}
	}
}

// givensCoeffs returns (c, s) such that the rotation
// [[c, s], [-s, c]] * [a, b]^T = [hypot(a,b), 0]^T.
func givensCoeffs(a, b float64) (c, s float64) {
	h := math.Hypot(a, b)
	if h == 0 {
		return 1, 0
	}
	return a / h, b / h
}

// applyGivensRow rotates rows i and j of m across columns [colLo, colHi)
// using the rotation built by givensCoeffs.
func applyGivensRow(m *mat.Dense, i, j, colLo, colHi int, c, s float64) {
	for k := colLo; k < colHi; k++ {
		vi := m.At(i, k)
		vj := m.At(j, k)
		m.Set(i, k, c*vi+s*vj)
		m.Set(j, k, -s*vi+c*vj)
	}
}

func applyGivensVec(v *mat.VecDense, i, j int, c, s float64) {
	vi := v.AtVec(i)
	vj := v.AtVec(j)
	v.SetVec(i, c*vi+s*vj)
	v.SetVec(j, -s*vi+c*vj)
}

// RowsMean returns the mean of m's rows: one value per column, each the
// average of that column over all rows. Used by simscenario to summarize
// Monte Carlo noise samples stored one per row.
func RowsMean(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	mean := make([]float64, cols)
	for c := 0; c < cols; c++ {
		mean[c] = mat.Sum(m.ColView(c)) / float64(rows)
	}
	return mean
}

// SampleCov calculates the sample covariance matrix of data stored across
// dimension dim: with "rows" each row of m is one observation and the
// result is cols x cols; otherwise each column is one observation and the
// result is rows x rows.
func SampleCov(m *mat.Dense, dim string) (*mat.SymDense, error) {
	rows, cols := m.Dims()

	var mean []float64
	var count float64
	if strings.EqualFold(dim, "rows") {
		mean = RowsMean(m)
		count = float64(rows)
	} else {
		mt := &mat.Dense{}
		mt.CloneFrom(m.T())
		mean = RowsMean(mt)
		count = float64(cols)
	}

	x := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if strings.EqualFold(dim, "rows") {
				x.Set(r, c, m.At(r, c)-mean[c])
			} else {
				x.Set(r, c, m.At(r, c)-mean[r])
			}
		}
	}

	cov := new(mat.Dense)
	if strings.EqualFold(dim, "rows") {
		cov.Mul(x.T(), x)
	} else {
		cov.Mul(x, x.T())
	}
	cov.Scale(1/(count-1.0), cov)

	return ToSymDense(cov)
}

// ToSymDense converts m to a SymDense if it is numerically symmetric
// within tolerance.
func ToSymDense(m *mat.Dense) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.New("matrix: ToSymDense: matrix must be square")
	}

	vals := make([]float64, r*c)
	idx := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i != j && !floats.EqualWithinAbsOrRel(m.At(j, i), m.At(i, j), 1e-6, 1e-2) {
				return nil, fmt.Errorf("matrix: ToSymDense: not symmetric at (%d, %d): %v != %v\n%v",
					i, j, m.At(j, i), m.At(i, j), Format(m))
			}
			vals[idx] = m.At(i, j)
			idx++
		}
	}

	return mat.NewSymDense(r, vals), nil
}
