package nn

import (
	"fmt"
	"math"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// gruStep is one arena record of the GRU cell.
type gruStep struct {
	hPrev []float64 // [batch, H]
	r     []float64 // [batch, H]
	z     []float64 // [batch, H]
	n     []float64 // [batch, H]
	rh    []float64 // r⊙h_{t-1}
}

// GRU is a gated recurrent unit layer. Gates are stacked reset, update,
// new in the weight rows:
//
//	r = σ(x·W_irᵗ + h·W_hrᵗ + b_r)
//	z = σ(x·W_izᵗ + h·W_hzᵗ + b_z)
//	n = tanh(x·W_inᵗ + (r⊙h)·W_hnᵗ + b_n)
//	h_t = z⊙h_{t-1} + (1−z)⊙n
type GRU struct {
	inputSize  int
	hiddenSize int

	weightIH *Parameter // [3H, input]
	weightHH *Parameter // [3H, H]
	bias     *Parameter // [3H]

	input *tensor.Tensor
	steps []gruStep
}

// NewGRU creates a GRU layer.
func NewGRU(inputSize, hiddenSize int) (*GRU, error) {
	if inputSize <= 0 || hiddenSize <= 0 {
		return nil, fmt.Errorf("GRU: sizes must be positive, got input=%d hidden=%d", inputSize, hiddenSize)
	}
	wih, whh, b := recurrentParams(3, inputSize, hiddenSize)
	return &GRU{inputSize: inputSize, hiddenSize: hiddenSize, weightIH: wih, weightHH: whh, bias: b}, nil
}

// OutputShape implements Module.
func (g *GRU) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	seqLen, batch, err := recurrentShape("GRU", in, g.inputSize)
	if err != nil {
		return nil, err
	}
	return tensor.Shape{seqLen, batch, g.hiddenSize}, nil
}

// Forward implements Module.
func (g *GRU) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("GRU.Forward", g, input, output); err != nil {
		return err
	}
	seqLen, batch, _ := recurrentShape("GRU", input.Shape(), g.inputSize)
	h, in := g.hiddenSize, g.inputSize
	g3, g2 := 3*h, 2*h
	x := input.Data()
	y := output.Data()
	whh := g.weightHH.Tensor().Data()
	whRZ, whN := whh[:g2*h], whh[g2*h:]

	steps := make([]gruStep, seqLen)
	hPrev := make([]float64, batch*h)
	a := make([]float64, batch*g3)
	hrz := make([]float64, batch*g2)
	hn := make([]float64, batch*h)
	for t := 0; t < seqLen; t++ {
		cpu.MatMulNT(a, x[t*batch*in:(t+1)*batch*in], g.weightIH.Tensor().Data(), batch, g3, in, 0)
		cpu.AddRowVector(a, batch, g3, g.bias.Tensor().Data())
		cpu.MatMulNT(hrz, hPrev, whRZ, batch, g2, h, 0)

		st := gruStep{
			hPrev: hPrev,
			r:     make([]float64, batch*h),
			z:     make([]float64, batch*h),
			n:     make([]float64, batch*h),
			rh:    make([]float64, batch*h),
		}
		for b := 0; b < batch; b++ {
			for j := 0; j < h; j++ {
				k := b*h + j
				st.r[k] = cpu.SigmoidScalar(a[b*g3+j] + hrz[b*g2+j])
				st.z[k] = cpu.SigmoidScalar(a[b*g3+h+j] + hrz[b*g2+h+j])
				st.rh[k] = st.r[k] * hPrev[k]
			}
		}
		cpu.MatMulNT(hn, st.rh, whN, batch, h, h, 0)

		hNext := make([]float64, batch*h)
		for b := 0; b < batch; b++ {
			for j := 0; j < h; j++ {
				k := b*h + j
				st.n[k] = math.Tanh(a[b*g3+g2+j] + hn[k])
				hNext[k] = st.z[k]*hPrev[k] + (1-st.z[k])*st.n[k]
			}
		}
		copy(y[t*batch*h:], hNext)
		steps[t] = st
		hPrev = hNext
	}

	cacheCopy(&g.input, input)
	g.steps = steps
	return nil
}

// Backward implements Module.
func (g *GRU) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if g.steps == nil {
		return arenaError("GRU", g.input)
	}
	if err := checkRecurrentGrads("GRU", g.input, g.hiddenSize, gradOutput, gradInput); err != nil {
		return err
	}
	seqLen := len(g.steps)
	batch := g.input.Dim(1)
	h, in := g.hiddenSize, g.inputSize
	g3, g2 := 3*h, 2*h
	x := g.input.Data()
	dy := gradOutput.Data()
	dx := gradInput.Data()
	whh := g.weightHH.Tensor().Data()
	whRZ, whN := whh[:g2*h], whh[g2*h:]
	dwhh := g.weightHH.Grad().Data()
	dwhRZ, dwhN := dwhh[:g2*h], dwhh[g2*h:]

	dhNext := make([]float64, batch*h)
	dA := make([]float64, batch*g3)  // pre-activation grads on the input path
	dRZ := make([]float64, batch*g2) // r, z pre-activation grads on the hidden path
	dAN := make([]float64, batch*h)
	dRH := make([]float64, batch*h)
	dhPrev := make([]float64, batch*h)
	for t := seqLen - 1; t >= 0; t-- {
		st := g.steps[t]
		for k := range dAN {
			dh := dy[t*batch*h+k] + dhNext[k]
			dn := dh * (1 - st.z[k])
			dAN[k] = dn * (1 - st.n[k]*st.n[k])
			dhPrev[k] = dh * st.z[k]
			dzPre := dh * (st.hPrev[k] - st.n[k]) * st.z[k] * (1 - st.z[k])
			b, j := k/h, k%h
			dA[b*g3+h+j] = dzPre
			dA[b*g3+g2+j] = dAN[k]
			dRZ[b*g2+h+j] = dzPre
		}

		// n path through the hidden state: d(r⊙h) = dAN·W_hn.
		cpu.MatMulTN(dwhN, dAN, st.rh, h, h, batch, 1)
		cpu.MatMulNN(dRH, dAN, whN, batch, h, h, 0)
		for k := range dRH {
			dhPrev[k] += dRH[k] * st.r[k]
			drPre := dRH[k] * st.hPrev[k] * st.r[k] * (1 - st.r[k])
			b, j := k/h, k%h
			dA[b*g3+j] = drPre
			dRZ[b*g2+j] = drPre
		}

		xt := x[t*batch*in : (t+1)*batch*in]
		cpu.MatMulTN(g.weightIH.Grad().Data(), dA, xt, g3, in, batch, 1)
		cpu.AccumulateColSum(g.bias.Grad().Data(), dA, batch, g3)
		cpu.MatMulNN(dx[t*batch*in:(t+1)*batch*in], dA, g.weightIH.Tensor().Data(), batch, in, g3, 0)

		cpu.MatMulTN(dwhRZ, dRZ, st.hPrev, g2, h, batch, 1)
		cpu.MatMulNN(dhPrev, dRZ, whRZ, batch, h, g2, 1)
		copy(dhNext, dhPrev)
	}

	g.steps = nil
	return nil
}

// Update implements Module.
func (g *GRU) Update(lr float64) { updateParams(g.Parameters(), lr) }

// Parameters returns [weight_ih, weight_hh, bias].
func (g *GRU) Parameters() []*Parameter {
	return []*Parameter{g.weightIH, g.weightHH, g.bias}
}

// HiddenSize returns the hidden state width.
func (g *GRU) HiddenSize() int { return g.hiddenSize }
