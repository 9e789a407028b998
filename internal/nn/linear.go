package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Inputs of higher rank are treated as a batch of rows over their last
// axis, so [seq, batch, in_features] maps to [seq, batch, out_features].
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// Example:
//
//	layer := nn.NewLinear(784, 128)
//	output := tensor.Zeros(tensor.Shape{32, 128})
//	err := layer.Forward(input, output) // input: [32, 784]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]

	input *tensor.Tensor // cached for Backward
}

// NewLinear creates a new Linear layer.
//
// Panics if either size is not positive.
func NewLinear(inFeatures, outFeatures int) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("Linear: features must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures})),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures})),
	}
}

// OutputShape implements Module.
func (l *Linear) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) < 1 || in[len(in)-1] != l.inFeatures {
		return nil, tensor.ShapeErrorf("Linear: expected input [..., %d], got %v", l.inFeatures, in)
	}
	return in.WithLast(l.outFeatures), nil
}

// Forward computes y = x @ W.T + b.
func (l *Linear) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("Linear.Forward", l, input, output); err != nil {
		return err
	}
	rows, _ := input.Shape().Rows()
	y := output.Data()
	cpu.MatMulNT(y, input.Data(), l.weight.Tensor().Data(), rows, l.outFeatures, l.inFeatures, 0)
	cpu.AddRowVector(y, rows, l.outFeatures, l.bias.Tensor().Data())
	cacheCopy(&l.input, input)
	return nil
}

// Backward accumulates dW += dyᵗ·x and db += colsum(dy) and writes
// dx = dy·W into gradInput.
func (l *Linear) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if l.input == nil {
		return tensor.StateErrorf("Linear.Backward called before Forward")
	}
	inShape := l.input.Shape()
	if err := tensor.CheckShape("Linear.Backward", "grad_output", gradOutput.Shape(), inShape.WithLast(l.outFeatures)); err != nil {
		return err
	}
	if err := tensor.CheckShape("Linear.Backward", "grad_input", gradInput.Shape(), inShape); err != nil {
		return err
	}

	rows, _ := inShape.Rows()
	dy := gradOutput.Data()
	cpu.MatMulTN(l.weight.Grad().Data(), dy, l.input.Data(), l.outFeatures, l.inFeatures, rows, 1)
	cpu.AccumulateColSum(l.bias.Grad().Data(), dy, rows, l.outFeatures)
	cpu.MatMulNN(gradInput.Data(), dy, l.weight.Tensor().Data(), rows, l.inFeatures, l.outFeatures, 0)
	return nil
}

// Update implements Module.
func (l *Linear) Update(lr float64) {
	updateParams(l.Parameters(), lr)
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}
