package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// MaxPool2d implements 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
//	out_height = (height - kernel_size) / stride + 1
//	out_width  = (width - kernel_size) / stride + 1
//
// Forward records the flat input index of every window's maximum. Ties go
// to the first maximum in row-major scan order. Backward routes each
// upstream gradient to that index only.
type MaxPool2d struct {
	kernelSize int
	stride     int

	inShape tensor.Shape
	argmax  []int
}

// NewMaxPool2d creates a MaxPool2d layer. A stride of 0 defaults to the
// kernel size.
func NewMaxPool2d(kernelSize, stride int) *MaxPool2d {
	if stride == 0 {
		stride = kernelSize
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("MaxPool2d: kernel %d and stride %d must be positive", kernelSize, stride))
	}
	return &MaxPool2d{kernelSize: kernelSize, stride: stride}
}

// OutputShape implements Module.
func (p *MaxPool2d) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) != 4 {
		return nil, tensor.ShapeErrorf("MaxPool2d: expected 4D input [N,C,H,W], got %v", in)
	}
	hOut, err := cpu.PoolOutputSize(in[2], p.kernelSize, p.stride)
	if err != nil {
		return nil, err
	}
	wOut, err := cpu.PoolOutputSize(in[3], p.kernelSize, p.stride)
	if err != nil {
		return nil, err
	}
	return tensor.Shape{in[0], in[1], hOut, wOut}, nil
}

// Forward implements Module.
func (p *MaxPool2d) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("MaxPool2d.Forward", p, input, output); err != nil {
		return err
	}
	in := input.Shape()
	out := output.Shape()
	if len(p.argmax) != output.Size() {
		p.argmax = make([]int, output.Size())
	}
	cpu.MaxPool2D(output.Data(), p.argmax, input.Data(),
		in[0], in[1], in[2], in[3], p.kernelSize, p.stride, out[2], out[3])
	p.inShape = in
	return nil
}

// Backward implements Module.
func (p *MaxPool2d) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if p.inShape == nil {
		return tensor.StateErrorf("MaxPool2d.Backward called before Forward")
	}
	if err := tensor.CheckShape("MaxPool2d.Backward", "grad_input", gradInput.Shape(), p.inShape); err != nil {
		return err
	}
	if gradOutput.Size() != len(p.argmax) {
		return tensor.ShapeErrorf("MaxPool2d.Backward: grad_output %v does not match cached output", gradOutput.Shape())
	}
	gradInput.Zero()
	planes := p.inShape[0] * p.inShape[1]
	if planes == 0 {
		return nil
	}
	cpu.MaxPool2DBackward(gradInput.Data(), gradOutput.Data(), p.argmax, planes, len(p.argmax)/planes)
	return nil
}

// ArgMax returns the cached flat input index of each output element.
func (p *MaxPool2d) ArgMax() []int { return p.argmax }

// Update is a no-op.
func (p *MaxPool2d) Update(float64) {}

// Parameters returns nil.
func (p *MaxPool2d) Parameters() []*Parameter { return nil }
