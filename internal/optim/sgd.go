package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
//
// Example:
//
//	optimizer := optim.NewSGD([]nn.Module{model}, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	reg        *Registry
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter]*tensor.Tensor
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer over the parameters of modules.
func NewSGD(modules []nn.Module, config SGDConfig) *SGD {
	return NewSGDWithRegistry(NewRegistry(modules...), config)
}

// NewSGDWithRegistry creates a new SGD optimizer over a prepared registry.
func NewSGDWithRegistry(reg *Registry, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		reg:        reg,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() error {
	if err := s.reg.checkFinite("SGD.Step"); err != nil {
		return err
	}
	for _, param := range s.reg.Parameters() {
		if s.momentum == 0 {
			// Simple SGD: param -= lr * grad
			floats.AddScaled(param.Tensor().Data(), -s.lr, param.Grad().Data())
			continue
		}

		velocity, exists := s.velocities[param]
		if !exists {
			velocity = tensor.ZerosLike(param.Tensor())
			s.velocities[param] = velocity
		}
		v := velocity.Data()
		for i, g := range param.Grad().Data() {
			v[i] = s.momentum*v[i] + g
		}
		floats.AddScaled(param.Tensor().Data(), -s.lr, v)
	}
	s.reg.constrain()
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	s.reg.ZeroGrad()
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// Registry returns the parameters this optimizer updates.
func (s *SGD) Registry() *Registry {
	return s.reg
}

// StateDict returns the optimizer state for serialization.
//
// For SGD with momentum, this exports velocity buffers for each parameter.
// Without momentum, returns an empty map.
//
// State keys: "velocity.{param_index}" -> velocity tensor.
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	if s.momentum == 0 {
		return state
	}
	s.reg.saveState("velocity", s.velocities, state)
	return state
}

// LoadStateDict loads optimizer state from serialization.
//
// Restores velocity buffers for SGD with momentum. If momentum is 0,
// ignores the provided state (no velocities needed).
//
// Returns a shape error if velocity shapes don't match parameter shapes.
func (s *SGD) LoadStateDict(state map[string]*tensor.Tensor) error {
	if s.momentum == 0 {
		return nil
	}
	velocities := make(map[*nn.Parameter]*tensor.Tensor)
	if err := s.reg.loadState("velocity", state, velocities); err != nil {
		return err
	}
	s.velocities = velocities
	return nil
}
