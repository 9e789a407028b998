// Package data provides in-memory datasets and mini-batch loaders.
package data

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Dataset pairs inputs [n, ...] with targets [n, ...] along the first axis.
type Dataset struct {
	Inputs  *tensor.Tensor
	Targets *tensor.Tensor
}

// NewDataset checks that inputs and targets hold the same number of samples.
func NewDataset(inputs, targets *tensor.Tensor) (*Dataset, error) {
	if inputs.Rank() == 0 || targets.Rank() == 0 {
		return nil, tensor.ShapeErrorf("dataset: inputs %v and targets %v need a sample axis", inputs.Shape(), targets.Shape())
	}
	if inputs.Dim(0) != targets.Dim(0) {
		return nil, tensor.ShapeErrorf("dataset: %d inputs but %d targets", inputs.Dim(0), targets.Dim(0))
	}
	return &Dataset{Inputs: inputs, Targets: targets}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return d.Inputs.Dim(0)
}

// InputShape returns the shape of one input sample.
func (d *Dataset) InputShape() tensor.Shape {
	return d.Inputs.Shape()[1:]
}

// TargetShape returns the shape of one target sample.
func (d *Dataset) TargetShape() tensor.Shape {
	return d.Targets.Shape()[1:]
}

// Split returns the first n samples and the rest as two datasets.
func (d *Dataset) Split(n int) (*Dataset, *Dataset, error) {
	if n < 0 || n > d.Len() {
		return nil, nil, tensor.IndexErrorf("dataset: split point %d outside [0, %d]", n, d.Len())
	}
	return d.slice(0, n), d.slice(n, d.Len()), nil
}

func (d *Dataset) slice(from, to int) *Dataset {
	return &Dataset{Inputs: rows(d.Inputs, from, to), Targets: rows(d.Targets, from, to)}
}

// rows copies samples [from, to) of t.
func rows(t *tensor.Tensor, from, to int) *tensor.Tensor {
	shape := t.Shape()
	stride := shape[1:].NumElements()
	shape[0] = to - from
	out, err := tensor.FromSlice(t.Data()[from*stride:to*stride], shape)
	if err != nil {
		panic(fmt.Sprintf("dataset: %v", err))
	}
	return out
}
