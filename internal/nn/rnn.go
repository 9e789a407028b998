package nn

import (
	"fmt"
	"math"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Recurrent layers consume [seq_len, batch, input_size] and produce
// [seq_len, batch, hidden_size]. The hidden state starts at zero for every
// sequence. Forward records one entry per time step in an arena indexed
// by t; Backward walks the arena right to left (backpropagation through
// time) and releases it, so each Backward needs its own Forward.

// recurrentShape validates a recurrent input shape.
func recurrentShape(op string, in tensor.Shape, inputSize int) (seqLen, batch int, err error) {
	if len(in) != 3 || in[2] != inputSize {
		return 0, 0, tensor.ShapeErrorf("%s: expected input [seq_len, batch, %d], got %v", op, inputSize, in)
	}
	return in[0], in[1], nil
}

// recurrentParams creates the input-to-hidden and hidden-to-hidden weights
// for gates stacked gates-high, initialized from U(-1/sqrt(H), 1/sqrt(H)).
func recurrentParams(gates, inputSize, hiddenSize int) (wih, whh, b *Parameter) {
	bound := 1 / math.Sqrt(float64(hiddenSize))
	wih = NewParameter("weight_ih", Uniform(tensor.Shape{gates * hiddenSize, inputSize}, bound))
	whh = NewParameter("weight_hh", Uniform(tensor.Shape{gates * hiddenSize, hiddenSize}, bound))
	b = NewParameter("bias", Uniform(tensor.Shape{gates * hiddenSize}, bound))
	return wih, whh, b
}

// rnnStep is one arena record of the Elman cell.
type rnnStep struct {
	hPrev []float64 // [batch, hidden]
	h     []float64 // [batch, hidden]
}

// RNN is an Elman recurrent layer:
//
//	h_t = act(x_t·W_ihᵗ + h_{t-1}·W_hhᵗ + b)
//
// with act either tanh (default) or relu.
type RNN struct {
	inputSize  int
	hiddenSize int
	relu       bool

	weightIH *Parameter // [hidden, input]
	weightHH *Parameter // [hidden, hidden]
	bias     *Parameter // [hidden]

	input *tensor.Tensor
	steps []rnnStep
}

// NewRNN creates an Elman RNN layer. activation is "tanh" or "relu".
func NewRNN(inputSize, hiddenSize int, activation string) (*RNN, error) {
	if inputSize <= 0 || hiddenSize <= 0 {
		return nil, fmt.Errorf("RNN: sizes must be positive, got input=%d hidden=%d", inputSize, hiddenSize)
	}
	var relu bool
	switch activation {
	case "", "tanh":
	case "relu":
		relu = true
	default:
		return nil, fmt.Errorf("RNN: unknown activation %q (want tanh or relu)", activation)
	}
	wih, whh, b := recurrentParams(1, inputSize, hiddenSize)
	return &RNN{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		relu:       relu,
		weightIH:   wih,
		weightHH:   whh,
		bias:       b,
	}, nil
}

// OutputShape implements Module.
func (r *RNN) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	seqLen, batch, err := recurrentShape("RNN", in, r.inputSize)
	if err != nil {
		return nil, err
	}
	return tensor.Shape{seqLen, batch, r.hiddenSize}, nil
}

// Forward implements Module.
func (r *RNN) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("RNN.Forward", r, input, output); err != nil {
		return err
	}
	seqLen, batch, _ := recurrentShape("RNN", input.Shape(), r.inputSize)
	h, in := r.hiddenSize, r.inputSize
	x := input.Data()
	y := output.Data()

	steps := make([]rnnStep, seqLen)
	hPrev := make([]float64, batch*h)
	for t := 0; t < seqLen; t++ {
		pre := make([]float64, batch*h)
		cpu.MatMulNT(pre, x[t*batch*in:(t+1)*batch*in], r.weightIH.Tensor().Data(), batch, h, in, 0)
		cpu.MatMulNT(pre, hPrev, r.weightHH.Tensor().Data(), batch, h, h, 1)
		cpu.AddRowVector(pre, batch, h, r.bias.Tensor().Data())
		if r.relu {
			cpu.ReLU(pre, pre)
		} else {
			cpu.Tanh(pre, pre)
		}
		steps[t] = rnnStep{hPrev: hPrev, h: pre}
		copy(y[t*batch*h:], pre)
		hPrev = pre
	}

	cacheCopy(&r.input, input)
	r.steps = steps
	return nil
}

// Backward implements Module.
func (r *RNN) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if r.steps == nil {
		return arenaError("RNN", r.input)
	}
	if err := checkRecurrentGrads("RNN", r.input, r.hiddenSize, gradOutput, gradInput); err != nil {
		return err
	}
	seqLen := len(r.steps)
	batch := r.input.Dim(1)
	h, in := r.hiddenSize, r.inputSize
	x := r.input.Data()
	dy := gradOutput.Data()
	dx := gradInput.Data()

	dhNext := make([]float64, batch*h)
	dpre := make([]float64, batch*h)
	for t := seqLen - 1; t >= 0; t-- {
		st := r.steps[t]
		for i := range dpre {
			dh := dy[t*batch*h+i] + dhNext[i]
			if r.relu {
				if st.h[i] > 0 {
					dpre[i] = dh
				} else {
					dpre[i] = 0
				}
			} else {
				dpre[i] = dh * (1 - st.h[i]*st.h[i])
			}
		}
		xt := x[t*batch*in : (t+1)*batch*in]
		cpu.MatMulTN(r.weightIH.Grad().Data(), dpre, xt, h, in, batch, 1)
		cpu.MatMulTN(r.weightHH.Grad().Data(), dpre, st.hPrev, h, h, batch, 1)
		cpu.AccumulateColSum(r.bias.Grad().Data(), dpre, batch, h)
		cpu.MatMulNN(dx[t*batch*in:(t+1)*batch*in], dpre, r.weightIH.Tensor().Data(), batch, in, h, 0)
		cpu.MatMulNN(dhNext, dpre, r.weightHH.Tensor().Data(), batch, h, h, 0)
	}

	r.steps = nil
	return nil
}

// Update implements Module.
func (r *RNN) Update(lr float64) { updateParams(r.Parameters(), lr) }

// Parameters returns [weight_ih, weight_hh, bias].
func (r *RNN) Parameters() []*Parameter {
	return []*Parameter{r.weightIH, r.weightHH, r.bias}
}

// HiddenSize returns the hidden state width.
func (r *RNN) HiddenSize() int { return r.hiddenSize }

// arenaError reports a Backward without a pending arena. The cached input
// outlives the arena, so its presence means a previous Backward consumed it.
func arenaError(op string, input *tensor.Tensor) error {
	if input != nil {
		return tensor.StateErrorf("%s.Backward: arena already consumed; run Forward again", op)
	}
	return tensor.StateErrorf("%s.Backward called before Forward", op)
}

func checkRecurrentGrads(op string, input *tensor.Tensor, hidden int, gradOutput, gradInput *tensor.Tensor) error {
	in := input.Shape()
	if err := tensor.CheckShape(op+".Backward", "grad_output", gradOutput.Shape(), tensor.Shape{in[0], in[1], hidden}); err != nil {
		return err
	}
	return tensor.CheckShape(op+".Backward", "grad_input", gradInput.Shape(), in)
}

// NewRecurrent builds a stack of numLayers recurrent layers of the given
// kind ("rnn", "rnn_relu", "lstm" or "gru"). Layer 0 maps inputSize to
// hiddenSize; the rest map hiddenSize to hiddenSize.
func NewRecurrent(kind string, inputSize, hiddenSize, numLayers int) (*Sequential, error) {
	if numLayers <= 0 {
		return nil, fmt.Errorf("recurrent: num_layers must be positive, got %d", numLayers)
	}
	seq := NewSequential()
	in := inputSize
	for i := 0; i < numLayers; i++ {
		var (
			layer Module
			err   error
		)
		switch kind {
		case "rnn":
			layer, err = NewRNN(in, hiddenSize, "tanh")
		case "rnn_relu":
			layer, err = NewRNN(in, hiddenSize, "relu")
		case "lstm":
			layer, err = NewLSTM(in, hiddenSize)
		case "gru":
			layer, err = NewGRU(in, hiddenSize)
		default:
			return nil, fmt.Errorf("recurrent: unknown kind %q", kind)
		}
		if err != nil {
			return nil, err
		}
		seq.Add(layer)
		in = hiddenSize
	}
	return seq, nil
}

// LastStep selects the final time step: [seq_len, batch, F] -> [batch, F].
type LastStep struct {
	inShape tensor.Shape
}

// NewLastStep creates a LastStep module.
func NewLastStep() *LastStep { return &LastStep{} }

// OutputShape implements Module.
func (l *LastStep) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) != 3 || in[0] == 0 {
		return nil, tensor.ShapeErrorf("LastStep: expected non-empty [seq_len, batch, features], got %v", in)
	}
	return tensor.Shape{in[1], in[2]}, nil
}

// Forward implements Module.
func (l *LastStep) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("LastStep.Forward", l, input, output); err != nil {
		return err
	}
	n := output.Size()
	copy(output.Data(), input.Data()[input.Size()-n:])
	l.inShape = input.Shape()
	return nil
}

// Backward implements Module.
func (l *LastStep) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if l.inShape == nil {
		return tensor.StateErrorf("LastStep.Backward called before Forward")
	}
	if err := tensor.CheckShape("LastStep.Backward", "grad_output", gradOutput.Shape(), tensor.Shape{l.inShape[1], l.inShape[2]}); err != nil {
		return err
	}
	if err := tensor.CheckShape("LastStep.Backward", "grad_input", gradInput.Shape(), l.inShape); err != nil {
		return err
	}
	gradInput.Zero()
	copy(gradInput.Data()[gradInput.Size()-gradOutput.Size():], gradOutput.Data())
	return nil
}

// Update is a no-op.
func (l *LastStep) Update(float64) {}

// Parameters returns nil.
func (l *LastStep) Parameters() []*Parameter { return nil }
