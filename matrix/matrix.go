// Package matrix provides the dense column-point matrix used as the point
// set representation throughout the library. Column i holds point i, stored
// contiguously so that a single point can be handed out as a slice view
// without copying.
package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrEmpty is returned when a matrix with zero rows or columns is
	// constructed where data is required.
	ErrEmpty = errors.New("matrix: empty matrix")

	// ErrShape is returned when the provided data does not match the
	// declared dimensions.
	ErrShape = errors.New("matrix: data does not match declared shape")
)

// Matrix is a dense set of points stored column-contiguously. The slice
// returned by Col aliases the backing array; treat it as read-only unless
// you own the matrix exclusively.
type Matrix struct {
	rows int
	cols int
	data []float64
}

// New returns a zero-valued matrix with the given dimensions.
func New(rows, cols int) *Matrix {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Matrix{
		rows: rows,
		cols: cols,
		data: make([]float64, rows*cols),
	}
}

// NewFromData wraps an existing column-major backing slice. The matrix takes
// ownership of data.
func NewFromData(rows, cols int, data []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrEmpty
	}

	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: have %d values, want %d", ErrShape, len(data), rows*cols)
	}

	return &Matrix{rows: rows, cols: cols, data: data}, nil
}

// FromPoints builds a matrix from a slice of points. Every point must have
// the same dimension.
func FromPoints(points [][]float64) (*Matrix, error) {
	if len(points) == 0 || len(points[0]) == 0 {
		return nil, ErrEmpty
	}

	rows := len(points[0])

	m := New(rows, len(points))
	for i, p := range points {
		if len(p) != rows {
			return nil, fmt.Errorf("%w: point %d has dimension %d, want %d", ErrShape, i, len(p), rows)
		}

		copy(m.Col(i), p)
	}

	return m, nil
}

// Rows returns the dimension of each point.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of points.
func (m *Matrix) Cols() int { return m.cols }

// Col returns a view of point i. The view aliases the backing array.
func (m *Matrix) Col(i int) []float64 {
	return m.data[i*m.rows : (i+1)*m.rows : (i+1)*m.rows]
}

// At returns the value at row r of point c.
func (m *Matrix) At(r, c int) float64 { return m.data[c*m.rows+r] }

// Set writes the value at row r of point c.
func (m *Matrix) Set(r, c int, v float64) { m.data[c*m.rows+r] = v }

// Data exposes the column-major backing slice.
func (m *Matrix) Data() []float64 { return m.data }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	copy(c.data, m.data)

	return c
}

// PermuteCols returns a new matrix whose column j is the receiver's column
// perm[j]. The permutation must cover every column exactly once; only the
// length is validated here.
func (m *Matrix) PermuteCols(perm []int) (*Matrix, error) {
	if len(perm) != m.cols {
		return nil, fmt.Errorf("%w: permutation has length %d, want %d", ErrShape, len(perm), m.cols)
	}

	p := New(m.rows, m.cols)
	for j, src := range perm {
		copy(p.Col(j), m.Col(src))
	}

	return p, nil
}
