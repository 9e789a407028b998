package nn

import (
	"fmt"
	"math"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Conv2d implements a 2D convolutional layer using the im2col algorithm.
//
// Input shape:  [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_height, out_width]
//
// Where:
//
//	out_height = (height + 2*padding - kernel_size) / stride + 1
//	out_width  = (width + 2*padding - kernel_size) / stride + 1
//
// Forward unrolls every receptive field into one row of a patch matrix
// [N*out_h*out_w, C*k*k] and multiplies it by the weight viewed as
// [out_channels, C*k*k]. The patch matrix is kept for Backward.
//
// Example:
//
//	conv := nn.NewConv2d(1, 32, 3, 1, 1)
//	// [N, 1, 28, 28] -> [N, 32, 28, 28]
type Conv2d struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter // [out_channels, in_channels, k, k]
	bias   *Parameter // [out_channels]

	geom  cpu.ConvGeometry
	cols  *tensor.Tensor // cached im2col matrix
	rows  *tensor.Tensor // [N*out_h*out_w, out_channels] scratch
	dcols *tensor.Tensor
	ready bool
}

// NewConv2d creates a new Conv2d layer.
//
// Weights use He/Kaiming uniform initialization with
// bound = sqrt(6 / (in_channels * kernel_size²)); biases start at zero.
//
// Panics on non-positive sizes or stride, or negative padding.
func NewConv2d(inChannels, outChannels, kernelSize, stride, padding int) *Conv2d {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("Conv2d: invalid configuration in=%d out=%d kernel=%d stride=%d padding=%d",
			inChannels, outChannels, kernelSize, stride, padding))
	}
	fanIn := inChannels * kernelSize * kernelSize
	return &Conv2d{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight: NewParameter("weight", Uniform(
			tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, math.Sqrt(6.0/float64(fanIn)))),
		bias: NewParameter("bias", tensor.Zeros(tensor.Shape{outChannels})),
	}
}

func (c *Conv2d) geometry(in tensor.Shape) (cpu.ConvGeometry, error) {
	if len(in) != 4 {
		return cpu.ConvGeometry{}, tensor.ShapeErrorf("Conv2d: expected 4D input [N,C,H,W], got %v", in)
	}
	if in[1] != c.inChannels {
		return cpu.ConvGeometry{}, tensor.ShapeErrorf("Conv2d: expected %d input channels, got %d", c.inChannels, in[1])
	}
	hOut, err := cpu.ConvOutputSize(in[2], c.kernelSize, c.stride, c.padding)
	if err != nil {
		return cpu.ConvGeometry{}, err
	}
	wOut, err := cpu.ConvOutputSize(in[3], c.kernelSize, c.stride, c.padding)
	if err != nil {
		return cpu.ConvGeometry{}, err
	}
	return cpu.ConvGeometry{
		N: in[0], C: in[1], H: in[2], W: in[3],
		KH: c.kernelSize, KW: c.kernelSize,
		Stride: c.stride, Pad: c.padding,
		HOut: hOut, WOut: wOut,
		OutputChannels: c.outChannels,
	}, nil
}

// OutputShape implements Module.
func (c *Conv2d) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	g, err := c.geometry(in)
	if err != nil {
		return nil, err
	}
	return tensor.Shape{g.N, c.outChannels, g.HOut, g.WOut}, nil
}

// Forward implements Module.
func (c *Conv2d) Forward(input, output *tensor.Tensor) error {
	g, err := c.geometry(input.Shape())
	if err != nil {
		return err
	}
	if err := tensor.CheckShape("Conv2d.Forward", "output", output.Shape(),
		tensor.Shape{g.N, c.outChannels, g.HOut, g.WOut}); err != nil {
		return err
	}

	cols := scratch(&c.cols, tensor.Shape{g.ColHeight(), g.ColWidth()})
	cpu.Im2Col(cols.Data(), input.Data(), g)

	rows := scratch(&c.rows, tensor.Shape{g.ColHeight(), c.outChannels})
	cpu.MatMulNT(rows.Data(), cols.Data(), c.weight.Tensor().Data(), g.ColHeight(), c.outChannels, g.ColWidth(), 0)
	cpu.AddRowVector(rows.Data(), g.ColHeight(), c.outChannels, c.bias.Tensor().Data())
	cpu.RowsToNCHW(output.Data(), rows.Data(), g.N, c.outChannels, g.HOut*g.WOut)

	c.geom = g
	c.ready = true
	return nil
}

// Backward implements Module.
//
// With G the output gradient in row layout [N*out_h*out_w, out_channels]:
// dW += Gᵗ·cols, db += colsum(G), dcols = G·W, and dcols is scattered
// back into gradInput by col2im. Overlapping receptive fields add.
func (c *Conv2d) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if !c.ready {
		return tensor.StateErrorf("Conv2d.Backward called before Forward")
	}
	g := c.geom
	if err := tensor.CheckShape("Conv2d.Backward", "grad_output", gradOutput.Shape(),
		tensor.Shape{g.N, c.outChannels, g.HOut, g.WOut}); err != nil {
		return err
	}
	if err := tensor.CheckShape("Conv2d.Backward", "grad_input", gradInput.Shape(),
		tensor.Shape{g.N, g.C, g.H, g.W}); err != nil {
		return err
	}

	m, k := g.ColHeight(), g.ColWidth()
	rows := c.rows.Data()
	cpu.NCHWToRows(rows, gradOutput.Data(), g.N, c.outChannels, g.HOut*g.WOut)

	cpu.MatMulTN(c.weight.Grad().Data(), rows, c.cols.Data(), c.outChannels, k, m, 1)
	cpu.AccumulateColSum(c.bias.Grad().Data(), rows, m, c.outChannels)

	dcols := scratch(&c.dcols, tensor.Shape{m, k})
	cpu.MatMulNN(dcols.Data(), rows, c.weight.Tensor().Data(), m, k, c.outChannels, 0)

	gradInput.Zero()
	cpu.Col2Im(gradInput.Data(), dcols.Data(), g)
	return nil
}

// Update implements Module.
func (c *Conv2d) Update(lr float64) {
	updateParams(c.Parameters(), lr)
}

// Parameters returns [weight, bias].
func (c *Conv2d) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the weight parameter.
func (c *Conv2d) Weight() *Parameter { return c.weight }

// Bias returns the bias parameter.
func (c *Conv2d) Bias() *Parameter { return c.bias }
