package nn

import (
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Flatten reshapes [N, d1, d2, ...] into [N, d1*d2*...].
type Flatten struct {
	inShape tensor.Shape
}

// NewFlatten creates a Flatten module.
func NewFlatten() *Flatten { return &Flatten{} }

// OutputShape implements Module.
func (f *Flatten) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) < 2 {
		return nil, tensor.ShapeErrorf("Flatten: expected input of rank >= 2, got %v", in)
	}
	return tensor.Shape{in[0], tensor.Shape(in[1:]).NumElements()}, nil
}

// Forward implements Module.
func (f *Flatten) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("Flatten.Forward", f, input, output); err != nil {
		return err
	}
	copy(output.Data(), input.Data())
	f.inShape = input.Shape()
	return nil
}

// Backward implements Module.
func (f *Flatten) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if f.inShape == nil {
		return tensor.StateErrorf("Flatten.Backward called before Forward")
	}
	if err := tensor.CheckShape("Flatten.Backward", "grad_input", gradInput.Shape(), f.inShape); err != nil {
		return err
	}
	if gradOutput.Size() != gradInput.Size() {
		return tensor.ShapeErrorf("Flatten.Backward: grad_output %v does not match %v", gradOutput.Shape(), f.inShape)
	}
	copy(gradInput.Data(), gradOutput.Data())
	return nil
}

// Update is a no-op.
func (f *Flatten) Update(float64) {}

// Parameters returns nil.
func (f *Flatten) Parameters() []*Parameter { return nil }
