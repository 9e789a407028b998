package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/autograd"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// A Parameter pairs a weight tensor with a same-shape gradient buffer, an
// optional persistent mask and optional value bounds. Masked entries are
// held at exactly zero and their gradient is discarded. Bounded entries
// are clamped into [lo, hi]. Every update re-applies both through
// Constrain.
//
// Example:
//
//	weight := nn.NewParameter("weight", tensor.Zeros(tensor.Shape{5, 10}))
//	w := weight.Tensor()
//	g := weight.Grad() // accumulated by Backward
type Parameter struct {
	name   string
	tensor *tensor.Tensor
	grad   *tensor.Tensor
	mask   []bool // nil means every entry is active

	bounded bool
	lo, hi  float64
}

// NewParameter creates a new trainable parameter with a zeroed gradient.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
		grad:   tensor.ZerosLike(t),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	autograd.ZeroGrad(p.grad)
}

// Mask returns the persistent mask, or nil when unmasked.
// true marks an active entry.
func (p *Parameter) Mask() []bool {
	return p.mask
}

// SetMask installs a mask and applies it. A nil mask removes masking.
func (p *Parameter) SetMask(mask []bool) error {
	if mask != nil && len(mask) != p.tensor.Size() {
		return tensor.ShapeErrorf("Parameter %s: mask length %d, expected %d", p.name, len(mask), p.tensor.Size())
	}
	p.mask = mask
	p.ApplyMask()
	return nil
}

// ApplyMask forces masked weights and their gradients to zero.
func (p *Parameter) ApplyMask() {
	if p.mask == nil {
		return
	}
	w := p.tensor.Data()
	g := p.grad.Data()
	for i, active := range p.mask {
		if !active {
			w[i] = 0
			g[i] = 0
		}
	}
}

// SetBounds restricts every entry to [lo, hi] and clamps the current
// values. It panics if lo > hi.
func (p *Parameter) SetBounds(lo, hi float64) {
	if lo > hi {
		panic(fmt.Sprintf("Parameter %s: empty bounds [%g, %g]", p.name, lo, hi))
	}
	p.bounded, p.lo, p.hi = true, lo, hi
	p.Constrain()
}

// Bounds returns the value bounds and whether any are set.
func (p *Parameter) Bounds() (lo, hi float64, ok bool) {
	return p.lo, p.hi, p.bounded
}

// Constrain re-applies the mask and clamps bounded entries. Optimizers
// call it after every step.
func (p *Parameter) Constrain() {
	p.ApplyMask()
	if !p.bounded {
		return
	}
	w := p.tensor.Data()
	for i, v := range w {
		w[i] = min(max(v, p.lo), p.hi)
	}
}

// Update performs w -= lr * grad and re-applies the constraints.
func (p *Parameter) Update(lr float64) {
	w := p.tensor.Data()
	for i, g := range p.grad.Data() {
		w[i] -= lr * g
	}
	p.Constrain()
}
