package nn

import (
	"math"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Loss computes a scalar loss and its gradient w.r.t. the predictions.
//
// Loss values are stateless: Forward and Backward may be called in any
// order and any number of times.
//
// Example:
//
//	mse := nn.NewMSE()
//	loss, _ := mse.Forward(pred, target)
//	grad, _ := mse.Backward(pred, target) // shaped like pred
type Loss interface {
	Forward(predictions, targets *tensor.Tensor) (float64, error)
	Backward(predictions, targets *tensor.Tensor) (*tensor.Tensor, error)
}

// MSE computes Mean Squared Error loss.
//
//	Loss = mean((p − t)²)
//	∂L/∂p = 2(p − t)/n
//
// MSE is commonly used for regression tasks where the goal is to predict
// continuous values.
type MSE struct{}

// NewMSE creates a new MSE loss function.
func NewMSE() *MSE { return &MSE{} }

// Forward computes the MSE loss.
func (MSE) Forward(predictions, targets *tensor.Tensor) (float64, error) {
	if err := sameShape("MSE", predictions, targets); err != nil {
		return 0, err
	}
	t := targets.Data()
	var sum float64
	for i, p := range predictions.Data() {
		d := p - t[i]
		sum += d * d
	}
	return sum / float64(predictions.Size()), nil
}

// Backward returns 2(p − t)/n.
func (MSE) Backward(predictions, targets *tensor.Tensor) (*tensor.Tensor, error) {
	if err := sameShape("MSE", predictions, targets); err != nil {
		return nil, err
	}
	grad := tensor.ZerosLike(predictions)
	g, t := grad.Data(), targets.Data()
	scale := 2 / float64(predictions.Size())
	for i, p := range predictions.Data() {
		g[i] = scale * (p - t[i])
	}
	return grad, nil
}

// bceEpsilon bounds probabilities away from 0 and 1.
const bceEpsilon = 1e-7

// BCE computes binary cross-entropy on probabilities:
//
//	Loss = −mean(t·log p + (1−t)·log(1−p))
//
// p is clamped to [1e-7, 1−1e-7]. Predictions are expected to come out of
// a Sigmoid.
type BCE struct{}

// NewBCE creates a new binary cross-entropy loss function.
func NewBCE() *BCE { return &BCE{} }

// Forward computes the BCE loss.
func (BCE) Forward(predictions, targets *tensor.Tensor) (float64, error) {
	if err := sameShape("BCE", predictions, targets); err != nil {
		return 0, err
	}
	if !predictions.IsFinite() {
		return 0, tensor.NumericErrorf("BCE: non-finite prediction")
	}
	t := targets.Data()
	var sum float64
	for i, p := range predictions.Data() {
		p = clampProb(p)
		sum -= t[i]*math.Log(p) + (1-t[i])*math.Log(1-p)
	}
	return sum / float64(predictions.Size()), nil
}

// Backward returns (p − t) / (p(1−p)·n) on the clamped probabilities.
func (BCE) Backward(predictions, targets *tensor.Tensor) (*tensor.Tensor, error) {
	if err := sameShape("BCE", predictions, targets); err != nil {
		return nil, err
	}
	grad := tensor.ZerosLike(predictions)
	g, t := grad.Data(), targets.Data()
	n := float64(predictions.Size())
	for i, p := range predictions.Data() {
		p = clampProb(p)
		g[i] = (p - t[i]) / (p * (1 - p) * n)
	}
	return grad, nil
}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, bceEpsilon), 1-bceEpsilon)
}

func sameShape(op string, predictions, targets *tensor.Tensor) error {
	if predictions.Size() == 0 {
		return tensor.ShapeErrorf("%s: empty predictions", op)
	}
	return tensor.CheckShape(op, "targets", targets.Shape(), predictions.Shape())
}
