package optim

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// ClipGradNorm rescales the gradients of params so that their global L2
// norm is at most maxNorm, and returns the norm before clipping.
//
// A non-finite norm is reported as a numeric error and leaves the
// gradients untouched.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) (float64, error) {
	var sq float64
	for _, p := range params {
		g := p.Grad().Data()
		sq += floats.Dot(g, g)
	}
	norm := math.Sqrt(sq)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return norm, tensor.NumericErrorf("ClipGradNorm: gradient norm is not finite")
	}
	if maxNorm <= 0 || norm <= maxNorm {
		return norm, nil
	}
	scale := maxNorm / norm
	for _, p := range params {
		floats.Scale(scale, p.Grad().Data())
	}
	return norm, nil
}
