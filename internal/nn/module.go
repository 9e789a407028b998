// Package nn implements the differentiable modules of NAPCAS.
//
// This package provides building blocks for constructing neural networks:
//   - Module interface: forward/backward/update contract shared by all layers
//   - Parameter: Trainable weights paired with their gradient buffers
//   - Layers: Linear, Conv2d, MaxPool2d, Flatten, activations
//   - Recurrent cells: RNN, LSTM, GRU with backpropagation through time
//   - Attention: MultiHeadAttention, TransformerBlock, PositionalEncoding
//   - NAPCASim: a prunable cell with a persistent connection mask
//   - Loss functions: MSE, CrossEntropy, BCE
//   - Containers and models: Sequential, MLP, CNN, GAN, Transformer
//
// Modules write into caller-allocated outputs. Backward overwrites the
// input gradient it is given and adds parameter gradients into the
// buffers owned by each Parameter.
package nn

import (
	"github.com/napcas-ml/napcas/internal/autograd"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10),
//	)
type Module interface {
	// Forward reads input and writes the result into output, which must
	// already have the shape reported by OutputShape. It caches whatever
	// Backward needs.
	Forward(input, output *tensor.Tensor) error

	// Backward consumes the loss gradient w.r.t. the last Forward's output,
	// writes the gradient w.r.t. that input into gradInput and adds the
	// parameter gradients into the owned gradient buffers.
	//
	// Returns an error wrapping tensor.ErrState when no matching Forward
	// has been run. Recurrent layers release their time-step arena in
	// Backward, so they allow exactly one Backward per Forward.
	Backward(gradOutput, gradInput *tensor.Tensor) error

	// Update applies w -= lr * grad to every parameter. It is the direct
	// update path; a training step uses either Update or an optimizer.
	Update(lr float64)

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter

	// OutputShape returns the output shape for the given input shape.
	OutputShape(in tensor.Shape) (tensor.Shape, error)
}

// ZeroGrad resets the gradient buffers of every parameter of the modules.
func ZeroGrad(modules ...Module) {
	for _, m := range modules {
		for _, p := range m.Parameters() {
			autograd.ZeroGrad(p.Grad())
		}
	}
}

// Grads returns the gradient buffers of every parameter of the modules.
func Grads(modules ...Module) []*tensor.Tensor {
	var out []*tensor.Tensor
	for _, m := range modules {
		for _, p := range m.Parameters() {
			out = append(out, p.Grad())
		}
	}
	return out
}

// NumParameters returns the total number of trainable scalars.
func NumParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().Size()
	}
	return n
}

// ForwardAlloc runs m.Forward into a freshly allocated output tensor.
func ForwardAlloc(m Module, input *tensor.Tensor) (*tensor.Tensor, error) {
	shape, err := m.OutputShape(input.Shape())
	if err != nil {
		return nil, err
	}
	out := tensor.Zeros(shape)
	if err := m.Forward(input, out); err != nil {
		return nil, err
	}
	return out, nil
}

// BackwardAlloc runs m.Backward into a freshly allocated input gradient
// shaped like inputShape.
func BackwardAlloc(m Module, gradOutput *tensor.Tensor, inputShape tensor.Shape) (*tensor.Tensor, error) {
	gradIn := tensor.Zeros(inputShape)
	if err := m.Backward(gradOutput, gradIn); err != nil {
		return nil, err
	}
	return gradIn, nil
}

func updateParams(params []*Parameter, lr float64) {
	for _, p := range params {
		p.Update(lr)
	}
}

// checkIO validates the caller-supplied output buffer against the shape
// this module would produce.
func checkIO(op string, m Module, input, output *tensor.Tensor) error {
	want, err := m.OutputShape(input.Shape())
	if err != nil {
		return err
	}
	return tensor.CheckShape(op, "output", output.Shape(), want)
}

// cacheCopy copies src into *dst, reallocating only when the shape changes.
func cacheCopy(dst **tensor.Tensor, src *tensor.Tensor) {
	if *dst == nil || !(*dst).Shape().Equal(src.Shape()) {
		*dst = src.Clone()
		return
	}
	copy((*dst).Data(), src.Data())
}

// scratch returns a zeroed tensor of the given shape, reusing buf when
// the shape already matches.
func scratch(buf **tensor.Tensor, shape tensor.Shape) *tensor.Tensor {
	if *buf == nil || !(*buf).Shape().Equal(shape) {
		*buf = tensor.Zeros(shape)
		return *buf
	}
	(*buf).Zero()
	return *buf
}
