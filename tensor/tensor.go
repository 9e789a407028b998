// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor type of the NAPCAS engine.
//
// A Tensor is a dense, row-major, n-dimensional array of float64 values.
// Shapes are validated on construction: no dimension may be negative.
//
// Example:
//
//	x := tensor.Zeros(tensor.Shape{2, 3})
//	_ = x.SetAt(1.5, 0, 2)
//	y, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	if err != nil {
//	    return err
//	}
//	z, err := x.Add(y)
//
// Rank-2 tensors also support linear algebra:
//
//	yt, err := y.Transpose()    // [3, 2]
//	gram, err := y.MatMul(yt)   // [2, 2]
package tensor

import (
	"golang.org/x/exp/rand"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Tensor is a dense float64 n-dimensional array.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Error categories. Every error returned by NAPCAS wraps one of these.
var (
	ErrShape   = tensor.ErrShape
	ErrIndex   = tensor.ErrIndex
	ErrState   = tensor.ErrState
	ErrNumeric = tensor.ErrNumeric
)

// New creates a zero-filled tensor with the given dimensions.
// It panics if any dimension is negative.
func New(shape ...int) *Tensor {
	return tensor.New(shape...)
}

// FromSlice creates a tensor over a copy of data.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return tensor.Ones(shape)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// ZerosLike creates a zero tensor with the shape of t.
func ZerosLike(t *Tensor) *Tensor {
	return tensor.ZerosLike(t)
}

// Rand creates a tensor with values drawn uniformly from [low, high).
func Rand(shape Shape, low, high float64, src rand.Source) *Tensor {
	return tensor.Rand(shape, low, high, src)
}

// Randn creates a tensor with normally distributed values.
func Randn(shape Shape, mean, std float64, src rand.Source) *Tensor {
	return tensor.Randn(shape, mean, std, src)
}
