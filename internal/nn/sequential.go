package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Sequential owns
// the intermediate activation and gradient buffers; they are reallocated
// only when the input shape changes.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10),
//	)
type Sequential struct {
	modules []Module

	shapes []tensor.Shape   // shapes[i] is the input shape of modules[i]; last is the output
	acts   []*tensor.Tensor // intermediate outputs, len(modules)-1
	grads  []*tensor.Tensor // intermediate gradients, len(modules)-1
	ready  bool
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Add appends a module to the sequence.
func (s *Sequential) Add(m Module) {
	s.modules = append(s.modules, m)
	s.shapes = nil
	s.ready = false
}

// Modules returns the contained modules in order.
func (s *Sequential) Modules() []Module {
	return s.modules
}

// Len returns the number of modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// OutputShape implements Module.
func (s *Sequential) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	shape := in
	for i, m := range s.modules {
		next, err := m.OutputShape(shape)
		if err != nil {
			return nil, fmt.Errorf("Sequential layer %d: %w", i, err)
		}
		shape = next
	}
	return shape, nil
}

func (s *Sequential) plan(in tensor.Shape) error {
	if s.shapes != nil && s.shapes[0].Equal(in) {
		return nil
	}
	shapes := make([]tensor.Shape, 0, len(s.modules)+1)
	shapes = append(shapes, in.Clone())
	shape := in
	for i, m := range s.modules {
		next, err := m.OutputShape(shape)
		if err != nil {
			return fmt.Errorf("Sequential layer %d: %w", i, err)
		}
		shapes = append(shapes, next)
		shape = next
	}
	s.shapes = shapes
	n := max(len(s.modules)-1, 0)
	s.acts = make([]*tensor.Tensor, n)
	s.grads = make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		s.acts[i] = tensor.Zeros(shapes[i+1])
		s.grads[i] = tensor.Zeros(shapes[i+1])
	}
	return nil
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input, output *tensor.Tensor) error {
	if len(s.modules) == 0 {
		return output.CopyFrom(input)
	}
	if err := s.plan(input.Shape()); err != nil {
		return err
	}
	if err := tensor.CheckShape("Sequential.Forward", "output", output.Shape(), s.shapes[len(s.shapes)-1]); err != nil {
		return err
	}

	in := input
	for i, m := range s.modules {
		out := output
		if i < len(s.modules)-1 {
			out = s.acts[i]
		}
		if err := m.Forward(in, out); err != nil {
			return fmt.Errorf("Sequential layer %d: %w", i, err)
		}
		in = out
	}
	s.ready = true
	return nil
}

// Backward propagates gradients through the modules in reverse order.
func (s *Sequential) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if len(s.modules) == 0 {
		return gradInput.CopyFrom(gradOutput)
	}
	if !s.ready {
		return tensor.StateErrorf("Sequential.Backward called before Forward")
	}
	if err := tensor.CheckShape("Sequential.Backward", "grad_input", gradInput.Shape(), s.shapes[0]); err != nil {
		return err
	}

	g := gradOutput
	for i := len(s.modules) - 1; i >= 0; i-- {
		dst := gradInput
		if i > 0 {
			dst = s.grads[i-1]
		}
		if err := s.modules[i].Backward(g, dst); err != nil {
			return fmt.Errorf("Sequential layer %d: %w", i, err)
		}
		g = dst
	}
	return nil
}

// Update implements Module.
func (s *Sequential) Update(lr float64) {
	for _, m := range s.modules {
		m.Update(lr)
	}
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}
