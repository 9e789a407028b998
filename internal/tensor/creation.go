package tensor

import (
	"gonum.org/v1/gonum/stat/distuv"
	"golang.org/x/exp/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{3, 4})
func Zeros(shape Shape) *Tensor {
	return New(shape...)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float64) *Tensor {
	t := New(shape...)
	t.Fill(value)
	return t
}

// ZerosLike creates a zero tensor with the same shape as t.
func ZerosLike(t *Tensor) *Tensor {
	return New(t.shape...)
}

// Rand creates a tensor with values uniformly distributed in [low, high).
//
// src may be nil, in which case the global source is used.
func Rand(shape Shape, low, high float64, src rand.Source) *Tensor {
	t := New(shape...)
	dist := distuv.Uniform{Min: low, Max: high, Src: src}
	for i := range t.data {
		t.data[i] = dist.Rand()
	}
	return t
}

// Randn creates a tensor with values from N(mean, std²).
//
// src may be nil, in which case the global source is used.
func Randn(shape Shape, mean, std float64, src rand.Source) *Tensor {
	t := New(shape...)
	dist := distuv.Normal{Mu: mean, Sigma: std, Src: src}
	for i := range t.data {
		t.data[i] = dist.Rand()
	}
	return t
}
