// Crescendo - Contextual-Bandit Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crescendo

package bandit

import (
	"fmt"
	"math"
)

// Matrices are dense, row-major []float64 of length d*d.

// identity returns the d×d identity matrix.
func identity(d int) []float64 {
	m := make([]float64, d*d)
	for i := 0; i < d; i++ {
		m[i*d+i] = 1
	}
	return m
}

// addOuter adds x·xᵀ to the d×d matrix a in place.
func addOuter(a, x []float64, d int) {
	for i := 0; i < d; i++ {
		if x[i] == 0 {
			continue
		}
		row := a[i*d : (i+1)*d]
		for j := 0; j < d; j++ {
			row[j] += x[i] * x[j]
		}
	}
}

// axpy computes y += alpha*x in place.
func axpy(alpha float64, x, y []float64) {
	for i := range y {
		y[i] += alpha * x[i]
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// cholesky factors the symmetric positive-definite matrix a as L·Lᵀ and
// returns the lower-triangular L. Only the lower triangle of a is read.
//
//nolint:gocritic // a follows standard linear algebra notation
func cholesky(a []float64, d int) ([]float64, error) {
	l := make([]float64, d*d)
	for j := 0; j < d; j++ {
		s := a[j*d+j]
		for k := 0; k < j; k++ {
			s -= l[j*d+k] * l[j*d+k]
		}
		// Also rejects NaN.
		if !(s > 0) {
			return nil, fmt.Errorf("%w: non-positive pivot %g at column %d", ErrSingularMatrix, s, j)
		}
		ljj := math.Sqrt(s)
		l[j*d+j] = ljj

		for i := j + 1; i < d; i++ {
			s := a[i*d+j]
			for k := 0; k < j; k++ {
				s -= l[i*d+k] * l[j*d+k]
			}
			l[i*d+j] = s / ljj
		}
	}
	return l, nil
}

// choleskySolve solves (L·Lᵀ)·y = v for y given the factor from cholesky.
func choleskySolve(l []float64, d int, v []float64) []float64 {
	// Forward substitution: L·z = v.
	z := make([]float64, d)
	for i := 0; i < d; i++ {
		s := v[i]
		for k := 0; k < i; k++ {
			s -= l[i*d+k] * z[k]
		}
		z[i] = s / l[i*d+i]
	}

	// Back substitution: Lᵀ·y = z.
	y := make([]float64, d)
	for i := d - 1; i >= 0; i-- {
		s := z[i]
		for k := i + 1; k < d; k++ {
			s -= l[k*d+i] * y[k]
		}
		y[i] = s / l[i*d+i]
	}
	return y
}

// invert returns A⁻¹ for an SPD matrix by solving against each basis vector.
func invert(a []float64, d int) ([]float64, error) {
	l, err := cholesky(a, d)
	if err != nil {
		return nil, err
	}

	inv := make([]float64, d*d)
	e := make([]float64, d)
	for j := 0; j < d; j++ {
		for i := range e {
			e[i] = 0
		}
		e[j] = 1
		col := choleskySolve(l, d, e)
		for i := 0; i < d; i++ {
			inv[i*d+j] = col[i]
		}
	}
	return inv, nil
}

// isSymmetric reports whether a equals its transpose within tol.
func isSymmetric(a []float64, d int, tol float64) bool {
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			if math.Abs(a[i*d+j]-a[j*d+i]) > tol {
				return false
			}
		}
	}
	return true
}

// ucbTerms returns the two halves of an arm's score: mean = x·θ with
// θ = A⁻¹b, and uncertainty = sqrt(xᵀA⁻¹x). The caller weights uncertainty.
func ucbTerms(a, b, x []float64, d int) (mean, uncertainty float64, err error) {
	l, err := cholesky(a, d)
	if err != nil {
		return 0, 0, err
	}

	theta := choleskySolve(l, d, b)
	mean = dot(x, theta)

	ax := choleskySolve(l, d, x)
	uncertainty = math.Sqrt(math.Max(dot(x, ax), 0))
	return mean, uncertainty, nil
}
