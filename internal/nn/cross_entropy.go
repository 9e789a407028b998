package nn

import (
	"math"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// CrossEntropy computes cross-entropy loss for multi-class classification
// from raw logits.
//
//	Loss = −mean_b log softmax(z_b)[class_b]
//	∂L/∂z = (softmax(z) − onehot) / batch
//
// The softmax is computed per row through the log-sum-exp form, so large
// logits neither overflow nor lose the loss value.
//
// Predictions are [batch, classes]; a rank-1 prediction is a batch of one.
// Targets are either class indices ([batch] or [batch, 1]) or one-hot
// rows shaped like the predictions.
//
// Example:
//
//	ce := nn.NewCrossEntropy()
//	logits, _ := tensor.FromSlice([]float64{0.1, 0.2, 0.7}, tensor.Shape{1, 3})
//	target, _ := tensor.FromSlice([]float64{2}, tensor.Shape{1})
//	loss, _ := ce.Forward(logits, target) // −log softmax(logits)[2]
type CrossEntropy struct{}

// NewCrossEntropy creates a new cross-entropy loss function.
func NewCrossEntropy() *CrossEntropy { return &CrossEntropy{} }

// Forward computes the mean cross-entropy over the batch.
func (CrossEntropy) Forward(predictions, targets *tensor.Tensor) (float64, error) {
	batch, classes, err := ceShape(predictions)
	if err != nil {
		return 0, err
	}
	onehot, err := ceTargets(targets, batch, classes)
	if err != nil {
		return 0, err
	}
	z := predictions.Data()
	var total float64
	for b := 0; b < batch; b++ {
		row := z[b*classes : (b+1)*classes]
		lse := cpu.LogSumExp(row)
		for c, t := range onehot[b*classes : (b+1)*classes] {
			if t != 0 {
				total -= t * (row[c] - lse)
			}
		}
	}
	loss := total / float64(batch)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, tensor.NumericErrorf("CrossEntropy: loss is not finite")
	}
	return loss, nil
}

// Backward returns (softmax(z) − onehot) / batch.
func (CrossEntropy) Backward(predictions, targets *tensor.Tensor) (*tensor.Tensor, error) {
	batch, classes, err := ceShape(predictions)
	if err != nil {
		return nil, err
	}
	onehot, err := ceTargets(targets, batch, classes)
	if err != nil {
		return nil, err
	}
	grad := tensor.ZerosLike(predictions)
	g := grad.Data()
	cpu.SoftmaxRows(g, predictions.Data(), batch, classes)
	inv := 1 / float64(batch)
	for i := range g {
		g[i] = (g[i] - onehot[i]) * inv
	}
	return grad, nil
}

func ceShape(predictions *tensor.Tensor) (batch, classes int, err error) {
	shape := predictions.Shape()
	switch len(shape) {
	case 1:
		batch, classes = 1, shape[0]
	case 2:
		batch, classes = shape[0], shape[1]
	default:
		return 0, 0, tensor.ShapeErrorf("CrossEntropy: predictions must be [batch, classes], got %v", shape)
	}
	if batch == 0 || classes == 0 {
		return 0, 0, tensor.ShapeErrorf("CrossEntropy: empty predictions %v", shape)
	}
	if !predictions.IsFinite() {
		return 0, 0, tensor.NumericErrorf("CrossEntropy: non-finite logits")
	}
	return batch, classes, nil
}

// ceTargets normalizes targets to dense one-hot rows of [batch, classes].
func ceTargets(targets *tensor.Tensor, batch, classes int) ([]float64, error) {
	t := targets.Data()
	if len(t) == batch*classes && classes > 1 {
		out := make([]float64, len(t))
		copy(out, t)
		return out, nil
	}
	if len(t) != batch {
		return nil, tensor.ShapeErrorf("CrossEntropy: targets %v do not match %d rows of %d classes",
			targets.Shape(), batch, classes)
	}
	out := make([]float64, batch*classes)
	for b, v := range t {
		c := int(v)
		if float64(c) != v || c < 0 || c >= classes {
			return nil, tensor.IndexErrorf("CrossEntropy: class %v out of range [0, %d)", v, classes)
		}
		out[b*classes+c] = 1
	}
	return out, nil
}
