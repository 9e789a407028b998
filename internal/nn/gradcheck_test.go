package nn_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

const (
	gradEps    = 1e-5
	gradRelTol = 1e-3
	gradAbsTol = 1e-6
	maxChecks  = 24 // sampled entries per tensor
)

// randn returns a seeded N(0, 1) tensor.
func randn(seed uint64, shape ...int) *tensor.Tensor {
	return tensor.Randn(tensor.Shape(shape), 0, 1, rand.NewSource(seed))
}

// sampleIndices returns up to maxChecks indices spread over [0, n).
func sampleIndices(n int) []int {
	if n <= maxChecks {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, 0, maxChecks)
	for i := 0; i < maxChecks; i++ {
		idx = append(idx, i*(n-1)/(maxChecks-1))
	}
	return idx
}

// gradCheck compares the analytic gradients of m (w.r.t. input and every
// parameter) against central finite differences of L = Σ m(x)⊙R.
func gradCheck(t *testing.T, m nn.Module, x *tensor.Tensor) {
	t.Helper()
	outShape, err := m.OutputShape(x.Shape())
	require.NoError(t, err)
	r := randn(7, outShape...)

	lossAt := func() float64 {
		out, err := nn.ForwardAlloc(m, x)
		require.NoError(t, err)
		var s float64
		for i, v := range out.Data() {
			s += v * r.Data()[i]
		}
		return s
	}

	nn.ZeroGrad(m)
	_, err = nn.ForwardAlloc(m, x)
	require.NoError(t, err)
	dx, err := nn.BackwardAlloc(m, r, x.Shape())
	require.NoError(t, err)

	check := func(name string, data, grad []float64) {
		for _, i := range sampleIndices(len(data)) {
			orig := data[i]
			data[i] = orig + gradEps
			plus := lossAt()
			data[i] = orig - gradEps
			minus := lossAt()
			data[i] = orig

			numeric := (plus - minus) / (2 * gradEps)
			tol := gradRelTol*math.Max(math.Abs(numeric), math.Abs(grad[i])) + gradAbsTol
			assert.InDelta(t, numeric, grad[i], tol, "%s[%d]", name, i)
		}
	}

	check("input", x.Data(), dx.Data())
	for i, p := range m.Parameters() {
		grad := append([]float64(nil), p.Grad().Data()...)
		check(fmt.Sprintf("param %d (%s)", i, p.Name()), p.Tensor().Data(), grad)
	}
}

func mustModule[M nn.Module](m M, err error) M {
	if err != nil {
		panic(err)
	}
	return m
}

func TestGradCheck(t *testing.T) {
	nn.SetSeed(42)

	pruned := nn.NewNAPCASim(6, 4)
	pruned.PruneConnections(0.3)

	// Connections strictly inside (0, 1) so both factors of W⊙C matter.
	soft := nn.NewNNCell(5, 3)
	require.NoError(t, soft.Connections().Tensor().CopyFrom(tensor.Rand(tensor.Shape{3, 5}, 0.2, 0.9, rand.NewSource(3))))

	causal := nn.NewMultiHeadAttention(8, 2)
	causal.SetCausal(true)

	tests := []struct {
		name   string
		module nn.Module
		input  *tensor.Tensor
	}{
		{"Linear", nn.NewLinear(4, 3), randn(1, 2, 4)},
		{"Linear/3d", nn.NewLinear(4, 3), randn(2, 3, 2, 4)},
		{"Sigmoid", nn.NewSigmoid(), randn(3, 2, 5)},
		{"Tanh", nn.NewTanh(), randn(4, 2, 5)},
		{"Flatten", nn.NewFlatten(), randn(5, 2, 2, 3)},
		{"Conv2d", nn.NewConv2d(2, 3, 3, 1, 1), randn(6, 2, 2, 5, 5)},
		{"Conv2d/stride2", nn.NewConv2d(1, 2, 2, 2, 0), randn(7, 1, 1, 6, 6)},
		{"MaxPool2d", nn.NewMaxPool2d(2, 2), randn(8, 2, 2, 4, 4)},
		{"RNN", mustModule(nn.NewRNN(3, 4, "tanh")), randn(9, 5, 2, 3)},
		{"LSTM", mustModule(nn.NewLSTM(3, 4)), randn(10, 5, 2, 3)},
		{"GRU", mustModule(nn.NewGRU(3, 4)), randn(11, 5, 2, 3)},
		{"StackedLSTM", nn.NewSequential(mustModule(nn.NewRecurrent("lstm", 3, 4, 2)), nn.NewLastStep()), randn(12, 4, 2, 3)},
		{"MultiHeadAttention", nn.NewMultiHeadAttention(8, 2), randn(13, 4, 2, 8)},
		{"MultiHeadAttention/causal", causal, randn(14, 4, 2, 8)},
		{"TransformerBlock", nn.NewTransformerBlock(8, 2, 16), randn(15, 3, 2, 8)},
		{"PositionalEncoding", nn.NewPositionalEncoding(6), randn(16, 3, 2, 6)},
		{"NAPCASim", nn.NewNAPCASim(6, 4), randn(17, 3, 6)},
		{"NAPCASim/pruned", pruned, randn(18, 3, 6)},
		{"NNCell", nn.NewNNCell(4, 3), randn(20, 2, 4)},
		{"NNCell/soft", soft, randn(21, 3, 5)},
		{"MLP", mustModule(nn.NewMLP([]int{5, 7, 3}, "tanh")), randn(19, 4, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gradCheck(t, tt.module, tt.input)
		})
	}
}

func TestGradCheckReLU(t *testing.T) {
	// Keep inputs away from the kink at 0.
	x, err := tensor.FromSlice([]float64{-1.5, -0.2, 0.3, 2, -0.7, 1.1}, tensor.Shape{2, 3})
	require.NoError(t, err)
	gradCheck(t, nn.NewReLU(), x)
}
