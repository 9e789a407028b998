// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - Registry: the ordered, deduplicated parameter set an optimizer owns
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - ClipGradNorm: global gradient-norm clipping
//
// Example usage:
//
//	optimizer := optim.NewAdam([]nn.Module{model}, optim.AdamConfig{
//	    LR: 0.001,
//	})
//
//	for epoch := range epochs {
//	    optimizer.ZeroGrad()
//	    _ = model.Forward(input, output)
//	    grad, _ := loss.Backward(output, targets)
//	    _ = model.Backward(grad, gradInput)
//	    if err := optimizer.Step(); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers read the gradients accumulated in each Parameter by
// Module.Backward and update the parameter tensors in place.
type Optimizer interface {
	// Step applies one update to every registered parameter.
	//
	// Returns an error wrapping tensor.ErrNumeric, and changes nothing,
	// when any gradient holds NaN or Inf.
	Step() error

	// ZeroGrad clears all parameter gradients.
	//
	// This should be called before each backward pass to prevent
	// gradient accumulation from previous iterations.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate.
	SetLR(lr float64)
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// Registry is the ordered set of parameters an optimizer updates.
//
// Parameters are collected from modules in order; a parameter reachable
// through several modules (shared weights) is registered once.
type Registry struct {
	params []*nn.Parameter
	seen   map[*nn.Parameter]struct{}
}

// NewRegistry collects the parameters of the given modules.
func NewRegistry(modules ...nn.Module) *Registry {
	r := &Registry{seen: make(map[*nn.Parameter]struct{})}
	for _, m := range modules {
		r.Add(m.Parameters()...)
	}
	return r
}

// Add registers parameters not seen before.
func (r *Registry) Add(params ...*nn.Parameter) {
	for _, p := range params {
		if p == nil {
			continue
		}
		if _, ok := r.seen[p]; ok {
			continue
		}
		r.seen[p] = struct{}{}
		r.params = append(r.params, p)
	}
}

// Parameters returns the registered parameters in registration order.
func (r *Registry) Parameters() []*nn.Parameter {
	return r.params
}

// Len returns the number of registered parameters.
func (r *Registry) Len() int {
	return len(r.params)
}

// ZeroGrad clears the gradient of every registered parameter.
func (r *Registry) ZeroGrad() {
	for _, p := range r.params {
		p.ZeroGrad()
	}
}

// checkFinite returns a numeric error naming the first parameter whose
// gradient is not finite.
func (r *Registry) checkFinite(op string) error {
	for i, p := range r.params {
		if !p.Grad().IsFinite() {
			return tensor.NumericErrorf("%s: gradient of parameter %d (%s) is not finite", op, i, p.Name())
		}
	}
	return nil
}

// constrain re-applies every parameter's mask and bounds.
func (r *Registry) constrain() {
	for _, p := range r.params {
		p.Constrain()
	}
}

// loadState validates and copies state tensors keyed "<prefix>.<index>"
// into dst, allocating entries as needed.
func (r *Registry) loadState(prefix string, state map[string]*tensor.Tensor, dst map[*nn.Parameter]*tensor.Tensor) error {
	for i, p := range r.params {
		t, ok := state[fmt.Sprintf("%s.%d", prefix, i)]
		if !ok {
			// Initialized on first step.
			continue
		}
		if err := tensor.CheckShape("optim.LoadStateDict", fmt.Sprintf("%s.%d", prefix, i), t.Shape(), p.Tensor().Shape()); err != nil {
			return err
		}
		dst[p] = t.Clone()
	}
	return nil
}

// saveState exports dst as "<prefix>.<index>" tensors.
func (r *Registry) saveState(prefix string, src map[*nn.Parameter]*tensor.Tensor, state map[string]*tensor.Tensor) {
	for i, p := range r.params {
		if t, ok := src[p]; ok {
			state[fmt.Sprintf("%s.%d", prefix, i)] = t.Clone()
		}
	}
}
