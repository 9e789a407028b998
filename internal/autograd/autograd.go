// Package autograd owns the gradient buffer lifecycle.
//
// Gradients are plain tensors shaped like the values they belong to.
// Backward implementations only ever add into them; ZeroGrad is the one
// operation that resets them. Calling backward twice without an
// intervening ZeroGrad therefore sums both contributions, which is what
// weight sharing and unrolled recurrence rely on.
package autograd

import (
	"github.com/napcas-ml/napcas/internal/tensor"
)

// ZeroGrad sets every element of every gradient tensor to exactly 0.
//
// Nil entries are skipped. Calling it repeatedly has no further effect.
func ZeroGrad(grads ...*tensor.Tensor) {
	for _, g := range grads {
		if g != nil {
			g.Zero()
		}
	}
}

// Accumulate adds delta into grad. Shapes must match.
func Accumulate(grad, delta *tensor.Tensor) error {
	return grad.AddInPlace(delta)
}

// ClearData zeroes the value buffers of the given tensors.
//
// ZeroGrad never calls it; clearing values must be requested explicitly.
func ClearData(tensors ...*tensor.Tensor) {
	for _, t := range tensors {
		if t != nil {
			t.Zero()
		}
	}
}

// AllZero reports whether every element of every tensor is exactly 0.
func AllZero(grads ...*tensor.Tensor) bool {
	for _, g := range grads {
		if g == nil {
			continue
		}
		for _, v := range g.Data() {
			if v != 0 {
				return false
			}
		}
	}
	return true
}
