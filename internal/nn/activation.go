package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// ReLU applies max(0, x) elementwise.
type ReLU struct {
	input *tensor.Tensor
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return &ReLU{} }

// OutputShape implements Module.
func (r *ReLU) OutputShape(in tensor.Shape) (tensor.Shape, error) { return in.Clone(), nil }

// Forward implements Module.
func (r *ReLU) Forward(input, output *tensor.Tensor) error {
	if err := tensor.CheckShape("ReLU.Forward", "output", output.Shape(), input.Shape()); err != nil {
		return err
	}
	cpu.ReLU(output.Data(), input.Data())
	cacheCopy(&r.input, input)
	return nil
}

// Backward implements Module.
func (r *ReLU) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if r.input == nil {
		return tensor.StateErrorf("ReLU.Backward called before Forward")
	}
	if err := checkElementwiseGrad("ReLU", r.input, gradOutput, gradInput); err != nil {
		return err
	}
	cpu.ReLUBackward(gradInput.Data(), gradOutput.Data(), r.input.Data())
	return nil
}

// Update is a no-op.
func (r *ReLU) Update(float64) {}

// Parameters returns nil.
func (r *ReLU) Parameters() []*Parameter { return nil }

// Sigmoid applies 1/(1+exp(-x)) elementwise.
type Sigmoid struct {
	output *tensor.Tensor
}

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid { return &Sigmoid{} }

// OutputShape implements Module.
func (s *Sigmoid) OutputShape(in tensor.Shape) (tensor.Shape, error) { return in.Clone(), nil }

// Forward implements Module.
func (s *Sigmoid) Forward(input, output *tensor.Tensor) error {
	if err := tensor.CheckShape("Sigmoid.Forward", "output", output.Shape(), input.Shape()); err != nil {
		return err
	}
	cpu.Sigmoid(output.Data(), input.Data())
	cacheCopy(&s.output, output)
	return nil
}

// Backward implements Module.
func (s *Sigmoid) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if s.output == nil {
		return tensor.StateErrorf("Sigmoid.Backward called before Forward")
	}
	if err := checkElementwiseGrad("Sigmoid", s.output, gradOutput, gradInput); err != nil {
		return err
	}
	cpu.SigmoidBackward(gradInput.Data(), gradOutput.Data(), s.output.Data())
	return nil
}

// Update is a no-op.
func (s *Sigmoid) Update(float64) {}

// Parameters returns nil.
func (s *Sigmoid) Parameters() []*Parameter { return nil }

// Tanh applies tanh(x) elementwise.
type Tanh struct {
	output *tensor.Tensor
}

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return &Tanh{} }

// OutputShape implements Module.
func (t *Tanh) OutputShape(in tensor.Shape) (tensor.Shape, error) { return in.Clone(), nil }

// Forward implements Module.
func (t *Tanh) Forward(input, output *tensor.Tensor) error {
	if err := tensor.CheckShape("Tanh.Forward", "output", output.Shape(), input.Shape()); err != nil {
		return err
	}
	cpu.Tanh(output.Data(), input.Data())
	cacheCopy(&t.output, output)
	return nil
}

// Backward implements Module.
func (t *Tanh) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if t.output == nil {
		return tensor.StateErrorf("Tanh.Backward called before Forward")
	}
	if err := checkElementwiseGrad("Tanh", t.output, gradOutput, gradInput); err != nil {
		return err
	}
	cpu.TanhBackward(gradInput.Data(), gradOutput.Data(), t.output.Data())
	return nil
}

// Update is a no-op.
func (t *Tanh) Update(float64) {}

// Parameters returns nil.
func (t *Tanh) Parameters() []*Parameter { return nil }

// NewActivation returns the activation module for name:
// "relu", "sigmoid" or "tanh".
func NewActivation(name string) (Module, error) {
	switch name {
	case "relu":
		return NewReLU(), nil
	case "sigmoid":
		return NewSigmoid(), nil
	case "tanh":
		return NewTanh(), nil
	default:
		return nil, fmt.Errorf("unknown activation %q (want relu, sigmoid or tanh)", name)
	}
}

func checkElementwiseGrad(op string, cached, gradOutput, gradInput *tensor.Tensor) error {
	shape := cached.Shape()
	if err := tensor.CheckShape(op+".Backward", "grad_output", gradOutput.Shape(), shape); err != nil {
		return err
	}
	return tensor.CheckShape(op+".Backward", "grad_input", gradInput.Shape(), shape)
}
