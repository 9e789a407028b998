package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// MinNNCellThreshold is the floor of the NNCell memory threshold.
const MinNNCellThreshold = 0.1

// NNCell is a neural cell with learnable soft connections and gain:
//
//	y = alpha · x·(W⊙C)ᵗ + b
//
// W and C are [out_features, in_features]. Unlike the hard mask of
// NAPCASim, the connection strengths C are trained alongside W and kept
// in [0, 1] after every step. alpha is a learnable scalar.
//
// Forward also records the memory paths of the cell: unit i is on when
// its activation exceeded the memory threshold in any row of the batch.
type NNCell struct {
	inFeatures  int
	outFeatures int
	threshold   float64

	weight      *Parameter // [out, in]
	bias        *Parameter // [out]
	connections *Parameter // [out, in], bounded to [0, 1]
	alpha       *Parameter // [1]

	memory []bool

	input  *tensor.Tensor
	masked *tensor.Tensor // W⊙C at Forward
	z      *tensor.Tensor // x·(W⊙C)ᵗ before the gain
}

// NewNNCell creates a cell with fully open connections, alpha = 0.6 and a
// memory threshold of 0.5. Weights start in U(-0.05, 0.05).
func NewNNCell(inFeatures, outFeatures int) *NNCell {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("NNCell: features must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}
	c := &NNCell{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		threshold:   DefaultNAPCAThreshold,
		weight:      NewParameter("weight", Uniform(tensor.Shape{outFeatures, inFeatures}, 0.05)),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures})),
		connections: NewParameter("connections", tensor.Ones(tensor.Shape{outFeatures, inFeatures})),
		alpha:       NewParameter("alpha", tensor.Full(tensor.Shape{1}, DefaultNAPCAAlpha)),
		memory:      make([]bool, outFeatures),
	}
	c.connections.SetBounds(0, 1)
	return c
}

// OutputShape implements Module.
func (c *NNCell) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) < 1 || in[len(in)-1] != c.inFeatures {
		return nil, tensor.ShapeErrorf("NNCell: expected input [..., %d], got %v", c.inFeatures, in)
	}
	return in.WithLast(c.outFeatures), nil
}

// Forward implements Module.
func (c *NNCell) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("NNCell.Forward", c, input, output); err != nil {
		return err
	}
	rows, _ := input.Shape().Rows()
	m := scratch(&c.masked, c.weight.Tensor().Shape()).Data()
	conn := c.connections.Tensor().Data()
	for i, w := range c.weight.Tensor().Data() {
		m[i] = w * conn[i]
	}

	z := scratch(&c.z, output.Shape()).Data()
	cpu.MatMulNT(z, input.Data(), m, rows, c.outFeatures, c.inFeatures, 0)
	alpha := c.alpha.Tensor().Data()[0]
	y := output.Data()
	for i, v := range z {
		y[i] = alpha * v
	}
	cpu.AddRowVector(y, rows, c.outFeatures, c.bias.Tensor().Data())

	clear(c.memory)
	for r := 0; r < rows; r++ {
		for i, v := range y[r*c.outFeatures : (r+1)*c.outFeatures] {
			if v > c.threshold {
				c.memory[i] = true
			}
		}
	}
	cacheCopy(&c.input, input)
	return nil
}

// Backward implements Module. It accumulates the gradients of the
// weights, bias, connections and alpha.
func (c *NNCell) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if c.input == nil {
		return tensor.StateErrorf("NNCell.Backward called before Forward")
	}
	inShape := c.input.Shape()
	if err := tensor.CheckShape("NNCell.Backward", "grad_output", gradOutput.Shape(), inShape.WithLast(c.outFeatures)); err != nil {
		return err
	}
	if err := tensor.CheckShape("NNCell.Backward", "grad_input", gradInput.Shape(), inShape); err != nil {
		return err
	}
	rows, _ := inShape.Rows()
	dy := gradOutput.Data()
	alpha := c.alpha.Tensor().Data()[0]

	// dL/dalpha = Σ dy⊙z.
	var da float64
	for i, v := range c.z.Data() {
		da += dy[i] * v
	}
	c.alpha.Grad().Data()[0] += da

	// dM = alpha·dyᵗ·x, split onto W and C by the product rule.
	dm := make([]float64, c.outFeatures*c.inFeatures)
	cpu.MatMulTN(dm, dy, c.input.Data(), c.outFeatures, c.inFeatures, rows, 0)
	w := c.weight.Tensor().Data()
	conn := c.connections.Tensor().Data()
	gw := c.weight.Grad().Data()
	gc := c.connections.Grad().Data()
	for i, v := range dm {
		v *= alpha
		gw[i] += v * conn[i]
		gc[i] += v * w[i]
	}
	cpu.AccumulateColSum(c.bias.Grad().Data(), dy, rows, c.outFeatures)

	dx := gradInput.Data()
	cpu.MatMulNN(dx, dy, c.masked.Data(), rows, c.inFeatures, c.outFeatures, 0)
	for i := range dx {
		dx[i] *= alpha
	}
	return nil
}

// Update implements Module. Connections are clamped to [0, 1] afterwards.
func (c *NNCell) Update(lr float64) { updateParams(c.Parameters(), lr) }

// Parameters returns [weight, bias, connections, alpha].
func (c *NNCell) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias, c.connections, c.alpha}
}

// Weights returns the weight tensor, shape [out_features, in_features].
func (c *NNCell) Weights() *tensor.Tensor { return c.weight.Tensor() }

// SetWeights replaces the weights.
func (c *NNCell) SetWeights(w *tensor.Tensor) error {
	return c.weight.Tensor().CopyFrom(w)
}

// Connections returns the connection strength parameter.
func (c *NNCell) Connections() *Parameter { return c.connections }

// Alpha returns the current gain.
func (c *NNCell) Alpha() float64 { return c.alpha.Tensor().Data()[0] }

// Threshold returns the memory threshold.
func (c *NNCell) Threshold() float64 { return c.threshold }

// SetThreshold sets the memory threshold, floored at MinNNCellThreshold.
func (c *NNCell) SetThreshold(v float64) {
	c.threshold = max(v, MinNNCellThreshold)
}

// MemoryPaths returns, per output unit, whether the unit fired in the
// last Forward. The slice is owned by the cell.
func (c *NNCell) MemoryPaths() []bool { return c.memory }
