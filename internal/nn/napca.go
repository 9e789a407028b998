package nn

import (
	"fmt"
	"math"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Default NAPCASim hyperparameters.
const (
	DefaultNAPCAAlpha     = 0.6
	DefaultNAPCAThreshold = 0.5
)

// NAPCASim is a prunable cell with a persistent connection mask:
//
//	y = alpha · x·(W⊙M)ᵗ + b
//
// W is [out_features, in_features]. PruneConnections switches off every
// weight whose magnitude is below a threshold; switched-off weights stay
// exactly zero and receive no gradient for the life of the cell.
//
// After Forward the cell also exposes its activation paths: for every
// input row, the output units whose activation exceeded the activation
// threshold.
type NAPCASim struct {
	inFeatures  int
	outFeatures int
	alpha       float64
	threshold   float64

	weight *Parameter // [out, in], masked
	bias   *Parameter // [out]

	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewNAPCASim creates a cell with the default alpha and activation threshold.
func NewNAPCASim(inFeatures, outFeatures int) *NAPCASim {
	return NewNAPCASimWith(inFeatures, outFeatures, DefaultNAPCAAlpha, DefaultNAPCAThreshold)
}

// NewNAPCASimWith creates a cell with explicit alpha and activation threshold.
func NewNAPCASimWith(inFeatures, outFeatures int, alpha, threshold float64) *NAPCASim {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("NAPCASim: features must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}
	cell := &NAPCASim{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		alpha:       alpha,
		threshold:   threshold,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures})),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures})),
	}
	cell.activeMask()
	return cell
}

// OutputShape implements Module.
func (n *NAPCASim) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) < 1 || in[len(in)-1] != n.inFeatures {
		return nil, tensor.ShapeErrorf("NAPCASim: expected input [..., %d], got %v", n.inFeatures, in)
	}
	return in.WithLast(n.outFeatures), nil
}

// Forward implements Module.
func (n *NAPCASim) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("NAPCASim.Forward", n, input, output); err != nil {
		return err
	}
	n.weight.ApplyMask()
	rows, _ := input.Shape().Rows()
	y := output.Data()
	cpu.MatMulNT(y, input.Data(), n.weight.Tensor().Data(), rows, n.outFeatures, n.inFeatures, 0)
	for i := range y {
		y[i] *= n.alpha
	}
	cpu.AddRowVector(y, rows, n.outFeatures, n.bias.Tensor().Data())
	cacheCopy(&n.input, input)
	cacheCopy(&n.output, output)
	return nil
}

// Backward implements Module. Gradients of pruned weights are dropped.
func (n *NAPCASim) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if n.input == nil {
		return tensor.StateErrorf("NAPCASim.Backward called before Forward")
	}
	inShape := n.input.Shape()
	if err := tensor.CheckShape("NAPCASim.Backward", "grad_output", gradOutput.Shape(), inShape.WithLast(n.outFeatures)); err != nil {
		return err
	}
	if err := tensor.CheckShape("NAPCASim.Backward", "grad_input", gradInput.Shape(), inShape); err != nil {
		return err
	}
	rows, _ := inShape.Rows()
	dy := gradOutput.Data()

	// dW += alpha·dyᵗ·x on active connections only.
	dw := make([]float64, n.outFeatures*n.inFeatures)
	cpu.MatMulTN(dw, dy, n.input.Data(), n.outFeatures, n.inFeatures, rows, 0)
	grad := n.weight.Grad().Data()
	mask := n.weight.Mask()
	for i, v := range dw {
		if mask == nil || mask[i] {
			grad[i] += n.alpha * v
		}
	}
	cpu.AccumulateColSum(n.bias.Grad().Data(), dy, rows, n.outFeatures)

	dx := gradInput.Data()
	cpu.MatMulNN(dx, dy, n.weight.Tensor().Data(), rows, n.inFeatures, n.outFeatures, 0)
	for i := range dx {
		dx[i] *= n.alpha
	}
	return nil
}

// Update implements Module. The mask is re-applied afterwards.
func (n *NAPCASim) Update(lr float64) { updateParams(n.Parameters(), lr) }

// Parameters returns [weight, bias].
func (n *NAPCASim) Parameters() []*Parameter {
	return []*Parameter{n.weight, n.bias}
}

// Weights returns the weight tensor, shape [out_features, in_features].
func (n *NAPCASim) Weights() *tensor.Tensor {
	return n.weight.Tensor()
}

// WeightParameter returns the masked weight parameter.
func (n *NAPCASim) WeightParameter() *Parameter {
	return n.weight
}

// SetWeights replaces the weights. The current mask is re-applied.
func (n *NAPCASim) SetWeights(w *tensor.Tensor) error {
	if err := n.weight.Tensor().CopyFrom(w); err != nil {
		return err
	}
	n.weight.ApplyMask()
	return nil
}

// PruneConnections permanently deactivates every weight with
// |w| < threshold and returns how many connections were newly pruned.
func (n *NAPCASim) PruneConnections(threshold float64) int {
	w := n.weight.Tensor().Data()
	mask := n.activeMask()
	pruned := 0
	for i, v := range w {
		if mask[i] && math.Abs(v) < threshold {
			mask[i] = false
			pruned++
		}
	}
	n.weight.ApplyMask()
	return pruned
}

// activeMask returns the weight mask, reinstalling an all-active one if
// it was removed.
func (n *NAPCASim) activeMask() []bool {
	if m := n.weight.Mask(); m != nil {
		return m
	}
	mask := make([]bool, n.weight.Tensor().Size())
	for i := range mask {
		mask[i] = true
	}
	_ = n.weight.SetMask(mask)
	return mask
}

// ActiveConnections returns the number of unpruned weights.
func (n *NAPCASim) ActiveConnections() int {
	active := 0
	for _, on := range n.activeMask() {
		if on {
			active++
		}
	}
	return active
}

// ActivationPaths returns, for each row of the last Forward's output, the
// indices of output units whose activation exceeded the activation
// threshold.
func (n *NAPCASim) ActivationPaths() ([][]int, error) {
	if n.output == nil {
		return nil, tensor.StateErrorf("NAPCASim.ActivationPaths called before Forward")
	}
	rows, cols := n.output.Shape().Rows()
	y := n.output.Data()
	paths := make([][]int, rows)
	for r := 0; r < rows; r++ {
		path := []int{}
		for c := 0; c < cols; c++ {
			if y[r*cols+c] > n.threshold {
				path = append(path, c)
			}
		}
		paths[r] = path
	}
	return paths, nil
}

// PathSimilarity returns the Jaccard similarity |a∩b| / |a∪b| of two
// activation paths. Two empty paths have similarity 0.
func PathSimilarity(a, b []int) float64 {
	set := make(map[int]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[int]bool, len(b))
	for _, v := range b {
		if seen[v] {
			continue
		}
		seen[v] = true
		if set[v] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// UpdateWeightsConditionally pulls the weight rows of each pair of output
// units toward each other by eta. Only connections active in both rows
// move. The second unit moves toward the already updated first unit.
// The weights are left untouched when any pair is out of range.
func (n *NAPCASim) UpdateWeightsConditionally(pairs [][2]int, eta float64) error {
	for i, p := range pairs {
		u, v := p[0], p[1]
		if u < 0 || u >= n.outFeatures || v < 0 || v >= n.outFeatures {
			return tensor.IndexErrorf("NAPCASim: unit pair %d (%d, %d) out of range [0, %d)", i, u, v, n.outFeatures)
		}
	}
	w := n.weight.Tensor().Data()
	mask := n.activeMask()
	for _, p := range pairs {
		u, v := p[0], p[1]
		for j := 0; j < n.inFeatures; j++ {
			i1, i2 := u*n.inFeatures+j, v*n.inFeatures+j
			if mask[i1] && mask[i2] {
				w[i1] += eta * (w[i2] - w[i1])
				w[i2] += eta * (w[i1] - w[i2])
			}
		}
	}
	return nil
}
