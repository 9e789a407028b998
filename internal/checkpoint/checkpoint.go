package checkpoint

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// Tensor name conventions.
const (
	OptimizerPrefix = "optim."
	MaskSuffix      = ".mask"
)

// Stateful is implemented by optimizers whose state can be saved.
type Stateful interface {
	StateDict() map[string]*tensor.Tensor
	LoadStateDict(state map[string]*tensor.Tensor) error
}

// Options configures Save.
type Options struct {
	// ModelType is recorded in the header. Defaults to the Go type name of the module.
	ModelType string
	// Metadata is stored verbatim in the header.
	Metadata map[string]string
	// Meta records the training position of a checkpoint.
	Meta *CheckpointMeta
	// Optimizer, when set, has its state stored alongside the parameters.
	Optimizer Stateful
}

// ParameterName returns the stored name of the i-th parameter of a module.
func ParameterName(i int, p *nn.Parameter) string {
	return fmt.Sprintf("%03d.%s", i, p.Name())
}

// StateDict returns clones of every parameter of m, plus a 0/1 tensor for
// every persistent mask.
func StateDict(m nn.Module) map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	for i, p := range m.Parameters() {
		name := ParameterName(i, p)
		state[name] = p.Tensor().Clone()
		if mask := p.Mask(); mask != nil {
			t := tensor.New(p.Tensor().Shape()...)
			for j, active := range mask {
				if active {
					t.Data()[j] = 1
				}
			}
			state[name+MaskSuffix] = t
		}
	}
	return state
}

// LoadStateDict copies parameters and masks from state into m.
//
// Every parameter of m must be present with a matching shape; masks are
// installed when stored and cleared otherwise. Nothing is modified when
// validation fails.
func LoadStateDict(m nn.Module, state map[string]*tensor.Tensor) error {
	params := m.Parameters()
	masks := make([][]bool, len(params))
	for i, p := range params {
		name := ParameterName(i, p)
		t, ok := state[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingTensor, name)
		}
		if err := tensor.CheckShape("checkpoint.Load", name, t.Shape(), p.Tensor().Shape()); err != nil {
			return err
		}
		if mt, ok := state[name+MaskSuffix]; ok {
			if err := tensor.CheckShape("checkpoint.Load", name+MaskSuffix, mt.Shape(), p.Tensor().Shape()); err != nil {
				return err
			}
			mask := make([]bool, mt.Size())
			for j, v := range mt.Data() {
				mask[j] = v != 0
			}
			masks[i] = mask
		}
	}
	for i, p := range params {
		if err := p.Tensor().CopyFrom(state[ParameterName(i, p)]); err != nil {
			return err
		}
		if err := p.SetMask(masks[i]); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the parameters of m to path.
func Save(path string, m nn.Module, opts Options) error {
	state := StateDict(m)
	if opts.Optimizer != nil {
		for k, t := range opts.Optimizer.StateDict() {
			state[OptimizerPrefix+k] = t
		}
	}
	modelType := opts.ModelType
	if modelType == "" {
		modelType = typeName(m)
	}
	return WriteFile(path, state, Header{
		ModelType:      modelType,
		Metadata:       opts.Metadata,
		CheckpointMeta: opts.Meta,
	})
}

// Load restores the parameters of m, and the state of opt when it is
// non-nil and the file carries optimizer state, from path.
func Load(path string, m nn.Module, opt Stateful) (Header, error) {
	r, err := Open(path, ValidationStrict)
	if err != nil {
		return Header{}, err
	}
	defer r.Close()

	state, err := r.StateDict()
	if err != nil {
		return Header{}, err
	}
	if err := LoadStateDict(m, state); err != nil {
		return Header{}, fmt.Errorf("load %s: %w", path, err)
	}
	if opt != nil && r.Flags()&FlagHasOptimizer != 0 {
		optState := make(map[string]*tensor.Tensor)
		for name, t := range state {
			if k, ok := strings.CutPrefix(name, OptimizerPrefix); ok {
				optState[k] = t
			}
		}
		if err := opt.LoadStateDict(optState); err != nil {
			return Header{}, fmt.Errorf("load %s: optimizer state: %w", path, err)
		}
	}
	return r.Header(), nil
}

func typeName(m nn.Module) string {
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
