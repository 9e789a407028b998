package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
)

// NewMLP builds a multilayer perceptron from layer widths.
//
// sizes[0] is the input width and sizes[len-1] the output width; every
// hidden Linear is followed by the named activation ("relu", "sigmoid"
// or "tanh"). The output layer has no activation.
//
// Example:
//
//	mlp, _ := nn.NewMLP([]int{784, 128, 10}, "relu")
func NewMLP(sizes []int, activation string) (*Sequential, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("MLP: need at least input and output sizes, got %v", sizes)
	}
	if err := positive("MLP", sizes); err != nil {
		return nil, err
	}
	seq := NewSequential()
	for i := 1; i < len(sizes); i++ {
		seq.Add(NewLinear(sizes[i-1], sizes[i]))
		if i == len(sizes)-1 {
			break
		}
		act, err := NewActivation(activation)
		if err != nil {
			return nil, err
		}
		seq.Add(act)
	}
	return seq, nil
}

// CNNConfig configures NewCNN.
type CNNConfig struct {
	InChannels int   // Input channels
	Height     int   // Input height
	Width      int   // Input width
	Channels   []int // Output channels of each conv block
	KernelSize int   // Conv kernel (default: 3)
	PoolSize   int   // Max-pool window after each block (default: 2, 1 disables)
	NumClasses int   // Width of the final Linear
}

// NewCNN builds a convolutional classifier:
//
//	[Conv2d(k, pad k/2) → ReLU → MaxPool2d] × len(Channels) → Flatten → Linear
//
// Input is [batch, InChannels, Height, Width]; output is [batch, NumClasses]
// logits.
func NewCNN(cfg CNNConfig) (*Sequential, error) {
	if cfg.KernelSize == 0 {
		cfg.KernelSize = 3
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 2
	}
	if err := positive("CNN", []int{cfg.InChannels, cfg.Height, cfg.Width, cfg.KernelSize, cfg.PoolSize, cfg.NumClasses}); err != nil {
		return nil, err
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("CNN: need at least one conv block")
	}
	if err := positive("CNN", cfg.Channels); err != nil {
		return nil, err
	}

	seq := NewSequential()
	c, h, w := cfg.InChannels, cfg.Height, cfg.Width
	pad := cfg.KernelSize / 2
	for i, out := range cfg.Channels {
		var err error
		seq.Add(NewConv2d(c, out, cfg.KernelSize, 1, pad))
		if h, err = cpu.ConvOutputSize(h, cfg.KernelSize, 1, pad); err != nil {
			return nil, fmt.Errorf("CNN block %d: %w", i, err)
		}
		if w, err = cpu.ConvOutputSize(w, cfg.KernelSize, 1, pad); err != nil {
			return nil, fmt.Errorf("CNN block %d: %w", i, err)
		}
		seq.Add(NewReLU())
		if cfg.PoolSize > 1 {
			seq.Add(NewMaxPool2d(cfg.PoolSize, cfg.PoolSize))
			if h, err = cpu.PoolOutputSize(h, cfg.PoolSize, cfg.PoolSize); err != nil {
				return nil, fmt.Errorf("CNN block %d: %w", i, err)
			}
			if w, err = cpu.PoolOutputSize(w, cfg.PoolSize, cfg.PoolSize); err != nil {
				return nil, fmt.Errorf("CNN block %d: %w", i, err)
			}
		}
		c = out
	}
	seq.Add(NewFlatten())
	seq.Add(NewLinear(c*h*w, cfg.NumClasses))
	return seq, nil
}

// NewGANFromSizes builds a GAN whose generator and discriminator are
// Linear stacks with ReLU between layers and a final Sigmoid.
// discSizes must end in 1 and start at the generator's output width.
func NewGANFromSizes(genSizes, discSizes []int) (*GAN, error) {
	gen, err := sigmoidStack("GAN generator", genSizes)
	if err != nil {
		return nil, err
	}
	disc, err := sigmoidStack("GAN discriminator", discSizes)
	if err != nil {
		return nil, err
	}
	if genSizes[len(genSizes)-1] != discSizes[0] {
		return nil, fmt.Errorf("GAN: generator output %d does not match discriminator input %d",
			genSizes[len(genSizes)-1], discSizes[0])
	}
	if discSizes[len(discSizes)-1] != 1 {
		return nil, fmt.Errorf("GAN: discriminator must output 1 score, got %d", discSizes[len(discSizes)-1])
	}
	return NewGAN(gen, disc), nil
}

func sigmoidStack(name string, sizes []int) (*Sequential, error) {
	seq, err := NewMLP(sizes, "relu")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	seq.Add(NewSigmoid())
	return seq, nil
}

func positive(name string, vals []int) error {
	for _, v := range vals {
		if v <= 0 {
			return fmt.Errorf("%s: sizes must be positive, got %v", name, vals)
		}
	}
	return nil
}
