// Package tensor implements the dense float64 tensor used throughout NAPCAS.
//
// A Tensor is a shape plus a contiguous row-major buffer. The buffer length
// always equals the product of the shape; Reshape changes the shape only.
package tensor

import (
	"fmt"
	"math"
)

// Tensor is an N-dimensional array of float64 values in row-major order.
//
// Example:
//
//	t, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	if err != nil {
//	    return err
//	}
//	v, _ := t.At(1, 0) // 3
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
}

// New creates a zero-filled tensor with the given shape.
//
// Panics if a dimension is negative.
func New(shape ...int) *Tensor {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.New: %v", err))
	}
	return &Tensor{
		shape:   s.Clone(),
		strides: s.ComputeStrides(),
		data:    make([]float64, s.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
//
// Returns a shape error when len(data) != product(shape).
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, ShapeErrorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape...)
	copy(t.data, data)
	return t, nil
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of axis i. Negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Strides returns the row-major strides of the tensor.
func (t *Tensor) Strides() []int {
	out := make([]int, len(t.strides))
	copy(out, t.strides)
	return out
}

// Data returns the underlying buffer. Writes through the returned slice
// modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Get returns the element at flat offset i.
func (t *Tensor) Get(i int) (float64, error) {
	if i < 0 || i >= len(t.data) {
		return 0, IndexErrorf("flat index %d out of range [0, %d)", i, len(t.data))
	}
	return t.data[i], nil
}

// Set writes v at flat offset i.
func (t *Tensor) Set(i int, v float64) error {
	if i < 0 || i >= len(t.data) {
		return IndexErrorf("flat index %d out of range [0, %d)", i, len(t.data))
	}
	t.data[i] = v
	return nil
}

// Offset converts a multi-index into a flat offset.
func (t *Tensor) Offset(idx ...int) (int, error) {
	if len(idx) != len(t.shape) {
		return 0, ShapeErrorf("got %d indices for tensor of rank %d", len(idx), len(t.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			return 0, IndexErrorf("index %d out of range [0, %d) on axis %d", v, t.shape[i], i)
		}
		off += v * t.strides[i]
	}
	return off, nil
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) (float64, error) {
	off, err := t.Offset(idx...)
	if err != nil {
		return 0, err
	}
	return t.data[off], nil
}

// SetAt writes v at the given multi-index.
func (t *Tensor) SetAt(v float64, idx ...int) error {
	off, err := t.Offset(idx...)
	if err != nil {
		return err
	}
	t.data[off] = v
	return nil
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Zero sets every element to 0.
func (t *Tensor) Zero() {
	clear(t.data)
}

// Reshape changes the shape in place. The element order is unchanged.
func (t *Tensor) Reshape(shape ...int) error {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		return err
	}
	if s.NumElements() != len(t.data) {
		return ShapeErrorf("cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, len(t.data), s, s.NumElements())
	}
	t.shape = s.Clone()
	t.strides = s.ComputeStrides()
	return nil
}

// View returns a tensor with a different shape sharing this tensor's buffer.
func (t *Tensor) View(shape ...int) (*Tensor, error) {
	v := &Tensor{shape: t.shape, strides: t.strides, data: t.data}
	if err := v.Reshape(shape...); err != nil {
		return nil, err
	}
	return v, nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), strides: t.Strides(), data: data}
}

// CopyFrom copies src's elements into t. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if err := CheckShape("CopyFrom", "source", src.shape, t.shape); err != nil {
		return err
	}
	copy(t.data, src.data)
	return nil
}

// IsFinite reports whether every element is neither NaN nor infinite.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// String returns a short description for debugging.
func (t *Tensor) String() string {
	if len(t.data) <= 8 {
		return fmt.Sprintf("Tensor(shape=%v, data=%v)", t.shape, t.data)
	}
	return fmt.Sprintf("Tensor(shape=%v, data=%v...)", t.shape, t.data[:8])
}
