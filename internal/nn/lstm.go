package nn

import (
	"fmt"
	"math"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// lstmStep is one arena record of the LSTM cell.
type lstmStep struct {
	hPrev []float64 // [batch, H]
	cPrev []float64 // [batch, H]
	gates []float64 // [batch, 4H] activated i, f, g, o
	c     []float64 // [batch, H]
	tanhC []float64 // [batch, H]
}

// LSTM is a long short-term memory layer.
//
// The four gates come from one affine map of width 4H, ordered
// input, forget, cell candidate, output:
//
//	i = σ(z_i)  f = σ(z_f)  g = tanh(z_g)  o = σ(z_o)
//	c_t = f⊙c_{t-1} + i⊙g
//	h_t = o⊙tanh(c_t)
type LSTM struct {
	inputSize  int
	hiddenSize int

	weightIH *Parameter // [4H, input]
	weightHH *Parameter // [4H, H]
	bias     *Parameter // [4H]

	input *tensor.Tensor
	steps []lstmStep
}

// NewLSTM creates an LSTM layer.
func NewLSTM(inputSize, hiddenSize int) (*LSTM, error) {
	if inputSize <= 0 || hiddenSize <= 0 {
		return nil, fmt.Errorf("LSTM: sizes must be positive, got input=%d hidden=%d", inputSize, hiddenSize)
	}
	wih, whh, b := recurrentParams(4, inputSize, hiddenSize)
	return &LSTM{inputSize: inputSize, hiddenSize: hiddenSize, weightIH: wih, weightHH: whh, bias: b}, nil
}

// OutputShape implements Module.
func (l *LSTM) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	seqLen, batch, err := recurrentShape("LSTM", in, l.inputSize)
	if err != nil {
		return nil, err
	}
	return tensor.Shape{seqLen, batch, l.hiddenSize}, nil
}

// Forward implements Module.
func (l *LSTM) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("LSTM.Forward", l, input, output); err != nil {
		return err
	}
	seqLen, batch, _ := recurrentShape("LSTM", input.Shape(), l.inputSize)
	h, in := l.hiddenSize, l.inputSize
	g4 := 4 * h
	x := input.Data()
	y := output.Data()

	steps := make([]lstmStep, seqLen)
	hPrev := make([]float64, batch*h)
	cPrev := make([]float64, batch*h)
	for t := 0; t < seqLen; t++ {
		z := make([]float64, batch*g4)
		cpu.MatMulNT(z, x[t*batch*in:(t+1)*batch*in], l.weightIH.Tensor().Data(), batch, g4, in, 0)
		cpu.MatMulNT(z, hPrev, l.weightHH.Tensor().Data(), batch, g4, h, 1)
		cpu.AddRowVector(z, batch, g4, l.bias.Tensor().Data())

		c := make([]float64, batch*h)
		tc := make([]float64, batch*h)
		hs := y[t*batch*h : (t+1)*batch*h]
		for b := 0; b < batch; b++ {
			row := z[b*g4 : (b+1)*g4]
			for j := 0; j < h; j++ {
				ig := cpu.SigmoidScalar(row[j])
				fg := cpu.SigmoidScalar(row[h+j])
				gg := math.Tanh(row[2*h+j])
				og := cpu.SigmoidScalar(row[3*h+j])
				row[j], row[h+j], row[2*h+j], row[3*h+j] = ig, fg, gg, og

				k := b*h + j
				c[k] = fg*cPrev[k] + ig*gg
				tc[k] = math.Tanh(c[k])
				hs[k] = og * tc[k]
			}
		}
		hNext := make([]float64, batch*h)
		copy(hNext, hs)
		steps[t] = lstmStep{hPrev: hPrev, cPrev: cPrev, gates: z, c: c, tanhC: tc}
		hPrev, cPrev = hNext, c
	}

	cacheCopy(&l.input, input)
	l.steps = steps
	return nil
}

// Backward implements Module.
func (l *LSTM) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if l.steps == nil {
		return arenaError("LSTM", l.input)
	}
	if err := checkRecurrentGrads("LSTM", l.input, l.hiddenSize, gradOutput, gradInput); err != nil {
		return err
	}
	seqLen := len(l.steps)
	batch := l.input.Dim(1)
	h, in := l.hiddenSize, l.inputSize
	g4 := 4 * h
	x := l.input.Data()
	dy := gradOutput.Data()
	dx := gradInput.Data()

	dhNext := make([]float64, batch*h)
	dcNext := make([]float64, batch*h)
	dz := make([]float64, batch*g4)
	for t := seqLen - 1; t >= 0; t-- {
		st := l.steps[t]
		for b := 0; b < batch; b++ {
			gates := st.gates[b*g4 : (b+1)*g4]
			drow := dz[b*g4 : (b+1)*g4]
			for j := 0; j < h; j++ {
				k := b*h + j
				ig, fg, gg, og := gates[j], gates[h+j], gates[2*h+j], gates[3*h+j]
				dh := dy[t*batch*h+k] + dhNext[k]
				dc := dcNext[k] + dh*og*(1-st.tanhC[k]*st.tanhC[k])

				drow[j] = dc * gg * ig * (1 - ig)
				drow[h+j] = dc * st.cPrev[k] * fg * (1 - fg)
				drow[2*h+j] = dc * ig * (1 - gg*gg)
				drow[3*h+j] = dh * st.tanhC[k] * og * (1 - og)
				dcNext[k] = dc * fg
			}
		}
		xt := x[t*batch*in : (t+1)*batch*in]
		cpu.MatMulTN(l.weightIH.Grad().Data(), dz, xt, g4, in, batch, 1)
		cpu.MatMulTN(l.weightHH.Grad().Data(), dz, st.hPrev, g4, h, batch, 1)
		cpu.AccumulateColSum(l.bias.Grad().Data(), dz, batch, g4)
		cpu.MatMulNN(dx[t*batch*in:(t+1)*batch*in], dz, l.weightIH.Tensor().Data(), batch, in, g4, 0)
		cpu.MatMulNN(dhNext, dz, l.weightHH.Tensor().Data(), batch, h, g4, 0)
	}

	l.steps = nil
	return nil
}

// Update implements Module.
func (l *LSTM) Update(lr float64) { updateParams(l.Parameters(), lr) }

// Parameters returns [weight_ih, weight_hh, bias].
func (l *LSTM) Parameters() []*Parameter {
	return []*Parameter{l.weightIH, l.weightHH, l.bias}
}

// HiddenSize returns the hidden state width.
func (l *LSTM) HiddenSize() int { return l.hiddenSize }
