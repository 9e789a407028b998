package tensor

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// Add returns t + other as a new tensor. Shapes must match exactly.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	if err := CheckShape("Add", "operand", other.shape, t.shape); err != nil {
		return nil, err
	}
	out := t.Clone()
	floats.Add(out.data, other.data)
	return out, nil
}

// Sub returns t - other as a new tensor. Shapes must match exactly.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	if err := CheckShape("Sub", "operand", other.shape, t.shape); err != nil {
		return nil, err
	}
	out := t.Clone()
	floats.Sub(out.data, other.data)
	return out, nil
}

// Mul returns the elementwise product t ⊙ other as a new tensor.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	if err := CheckShape("Mul", "operand", other.shape, t.shape); err != nil {
		return nil, err
	}
	out := t.Clone()
	floats.Mul(out.data, other.data)
	return out, nil
}

// Div returns the elementwise quotient t / other as a new tensor. A zero
// divisor is a numeric error.
func (t *Tensor) Div(other *Tensor) (*Tensor, error) {
	if err := CheckShape("Div", "operand", other.shape, t.shape); err != nil {
		return nil, err
	}
	for i, v := range other.data {
		if v == 0 {
			return nil, NumericErrorf("Div: zero divisor at flat index %d", i)
		}
	}
	out := t.Clone()
	floats.Div(out.data, other.data)
	return out, nil
}

// MatMul returns the matrix product t·other of two rank-2 tensors
// [m, k] and [k, n].
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		return nil, ShapeErrorf("MatMul: expected rank-2 operands, got %v and %v", t.shape, other.shape)
	}
	m, k, n := t.shape[0], t.shape[1], other.shape[1]
	if other.shape[0] != k {
		return nil, ShapeErrorf("MatMul: inner dimensions differ, %v · %v", t.shape, other.shape)
	}
	out := New(m, n)
	if m == 0 || n == 0 || k == 0 {
		return out, nil
	}
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas64.General{Rows: m, Cols: k, Stride: k, Data: t.data},
		blas64.General{Rows: k, Cols: n, Stride: n, Data: other.data},
		0, blas64.General{Rows: m, Cols: n, Stride: n, Data: out.data})
	return out, nil
}

// Transpose returns the transpose of a rank-2 tensor as a new tensor.
func (t *Tensor) Transpose() (*Tensor, error) {
	if len(t.shape) != 2 {
		return nil, ShapeErrorf("Transpose: expected a rank-2 tensor, got %v", t.shape)
	}
	rows, cols := t.shape[0], t.shape[1]
	out := New(cols, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.data[j*rows+i] = t.data[i*cols+j]
		}
	}
	return out, nil
}

// Scale returns t * s as a new tensor.
func (t *Tensor) Scale(s float64) *Tensor {
	out := t.Clone()
	floats.Scale(s, out.data)
	return out
}

// AddInPlace accumulates other into t. This is the gradient accumulation
// primitive: t += other.
func (t *Tensor) AddInPlace(other *Tensor) error {
	if err := CheckShape("AddInPlace", "operand", other.shape, t.shape); err != nil {
		return err
	}
	floats.Add(t.data, other.data)
	return nil
}

// AddScaledInPlace computes t += alpha * other.
func (t *Tensor) AddScaledInPlace(alpha float64, other *Tensor) error {
	if err := CheckShape("AddScaledInPlace", "operand", other.shape, t.shape); err != nil {
		return err
	}
	floats.AddScaled(t.data, alpha, other.data)
	return nil
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Norm returns the L2 norm of all elements.
func (t *Tensor) Norm() float64 {
	return floats.Norm(t.data, 2)
}

// ArgMax returns the flat index of the largest element. Ties resolve to the
// first occurrence.
func (t *Tensor) ArgMax() int {
	if len(t.data) == 0 {
		return -1
	}
	return floats.MaxIdx(t.data)
}

// Equal reports whether shapes match and every element differs by at most
// tol (absolute).
func (t *Tensor) Equal(other *Tensor, tol float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Abs(v-other.data[i]) > tol {
			return false
		}
	}
	return true
}
