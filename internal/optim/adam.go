package optim

import (
	"math"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Moment buffers are allocated lazily, the first time a parameter is
// stepped.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer := optim.NewAdam([]nn.Module{model}, optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	})
type Adam struct {
	reg   *Registry
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int                              // Timestep for bias correction
	m     map[*nn.Parameter]*tensor.Tensor // First moment estimates
	v     map[*nn.Parameter]*tensor.Tensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer over the parameters of modules.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(modules []nn.Module, config AdamConfig) *Adam {
	return NewAdamWithRegistry(NewRegistry(modules...), config)
}

// NewAdamWithRegistry creates a new Adam optimizer over a prepared registry.
func NewAdamWithRegistry(reg *Registry, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		reg:   reg,
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		m:     make(map[*nn.Parameter]*tensor.Tensor),
		v:     make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step() error {
	if err := a.reg.checkFinite("Adam.Step"); err != nil {
		return err
	}
	a.t++

	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.reg.Parameters() {
		m, ok := a.m[param]
		if !ok {
			m = tensor.ZerosLike(param.Tensor())
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.ZerosLike(param.Tensor())
			a.v[param] = v
		}
		a.updateParameter(param, m.Data(), v.Data(), biasCorrection1, biasCorrection2)
	}
	a.reg.constrain()
	return nil
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam) updateParameter(param *nn.Parameter, mData, vData []float64, biasCorrection1, biasCorrection2 float64) {
	gradData := param.Grad().Data()
	paramData := param.Tensor().Data()
	for i := range paramData {
		g := gradData[i]
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2
		paramData[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	a.reg.ZeroGrad()
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam) GetTimestep() int {
	return a.t
}

// Registry returns the parameters this optimizer updates.
func (a *Adam) Registry() *Registry {
	return a.reg
}

// StateDict returns the moment buffers and timestep for serialization.
//
// State keys: "m.{param_index}", "v.{param_index}" and "step" (shape [1]).
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	a.reg.saveState("m", a.m, state)
	a.reg.saveState("v", a.v, state)
	state["step"] = tensor.Full(tensor.Shape{1}, float64(a.t))
	return state
}

// LoadStateDict restores state produced by StateDict.
func (a *Adam) LoadStateDict(state map[string]*tensor.Tensor) error {
	m := make(map[*nn.Parameter]*tensor.Tensor)
	v := make(map[*nn.Parameter]*tensor.Tensor)
	if err := a.reg.loadState("m", state, m); err != nil {
		return err
	}
	if err := a.reg.loadState("v", state, v); err != nil {
		return err
	}
	t := 0
	if step, ok := state["step"]; ok {
		if step.Size() != 1 {
			return tensor.ShapeErrorf("Adam.LoadStateDict: step must hold one element, got %v", step.Shape())
		}
		t = int(step.Data()[0])
	}
	a.m, a.v, a.t = m, v, t
	return nil
}
