package nn

import (
	"fmt"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Stepper applies an update rule to the gradients it tracks.
// internal/optim optimizers satisfy it.
type Stepper interface {
	Step() error
	ZeroGrad()
}

// GAN pairs a generator with a discriminator and trains both with
// binary cross-entropy.
//
// As a Module, a GAN behaves like its generator: Forward maps noise to
// samples and Backward propagates through the generator. Update and
// Parameters cover both networks, generator first.
type GAN struct {
	gen  Module
	disc Module
	bce  BCE

	genOpt, discOpt Stepper
}

// NewGAN creates a GAN from a generator and a discriminator. The
// discriminator must produce one probability per sample.
func NewGAN(generator, discriminator Module) *GAN {
	return &GAN{gen: generator, disc: discriminator}
}

// Generator returns the generator network.
func (g *GAN) Generator() Module { return g.gen }

// Discriminator returns the discriminator network.
func (g *GAN) Discriminator() Module { return g.disc }

// SetOptimizers attaches optimizers for the generator and discriminator.
// Passing nil for both restores plain Update(lr) steps.
func (g *GAN) SetOptimizers(genOpt, discOpt Stepper) {
	g.genOpt, g.discOpt = genOpt, discOpt
}

// OutputShape implements Module.
func (g *GAN) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	return g.gen.OutputShape(in)
}

// Forward implements Module by running the generator.
func (g *GAN) Forward(input, output *tensor.Tensor) error {
	return g.gen.Forward(input, output)
}

// Backward implements Module by back-propagating through the generator.
func (g *GAN) Backward(gradOutput, gradInput *tensor.Tensor) error {
	return g.gen.Backward(gradOutput, gradInput)
}

// Update implements Module.
func (g *GAN) Update(lr float64) {
	g.gen.Update(lr)
	g.disc.Update(lr)
}

// Parameters returns generator then discriminator parameters.
func (g *GAN) Parameters() []*Parameter {
	return append(g.gen.Parameters(), g.disc.Parameters()...)
}

// TrainStep runs one adversarial step:
//
//  1. fake = G(noise)
//  2. the discriminator learns real → 1 and fake → 0, then is updated
//  3. the discriminator scores fake against target 1; its input gradient
//     drives the generator backward, then the generator is updated
//
// The discriminator and generator losses are written into discLoss and
// genLoss, each a single-element tensor; either may be nil. Updates go
// through the attached optimizers when present, otherwise through
// Update(lr).
func (g *GAN) TrainStep(realBatch, noise *tensor.Tensor, lr float64, genLoss, discLoss *tensor.Tensor) error {
	for name, t := range map[string]*tensor.Tensor{"gen_loss": genLoss, "disc_loss": discLoss} {
		if t != nil && t.Size() != 1 {
			return tensor.ShapeErrorf("GAN.TrainStep: %s must hold one element, got %v", name, t.Shape())
		}
	}

	fake, err := ForwardAlloc(g.gen, noise)
	if err != nil {
		return fmt.Errorf("GAN generator: %w", err)
	}
	if !fake.Shape().Equal(realBatch.Shape()) {
		return tensor.ShapeErrorf("GAN.TrainStep: generator output %v does not match real batch %v", fake.Shape(), realBatch.Shape())
	}

	// Discriminator.
	g.zeroGrad(g.disc, g.discOpt)
	lossReal, err := g.discriminate(realBatch, 1)
	if err != nil {
		return err
	}
	lossFake, err := g.discriminate(fake, 0)
	if err != nil {
		return err
	}
	if err := g.step(g.disc, g.discOpt, lr); err != nil {
		return err
	}

	// Generator.
	g.zeroGrad(g.gen, g.genOpt)
	scores, err := ForwardAlloc(g.disc, fake)
	if err != nil {
		return fmt.Errorf("GAN discriminator: %w", err)
	}
	target := tensor.Ones(scores.Shape())
	lossGen, err := g.bce.Forward(scores, target)
	if err != nil {
		return err
	}
	dScores, err := g.bce.Backward(scores, target)
	if err != nil {
		return err
	}
	dFake, err := BackwardAlloc(g.disc, dScores, fake.Shape())
	if err != nil {
		return fmt.Errorf("GAN discriminator: %w", err)
	}
	if _, err := BackwardAlloc(g.gen, dFake, noise.Shape()); err != nil {
		return fmt.Errorf("GAN generator: %w", err)
	}
	if err := g.step(g.gen, g.genOpt, lr); err != nil {
		return err
	}
	// The generator pass leaves gradients in the discriminator that belong
	// to no update.
	g.zeroGrad(g.disc, g.discOpt)

	if discLoss != nil {
		discLoss.Data()[0] = lossReal + lossFake
	}
	if genLoss != nil {
		genLoss.Data()[0] = lossGen
	}
	return nil
}

// discriminate runs the discriminator on x against a constant label,
// accumulating its parameter gradients, and returns the BCE loss.
func (g *GAN) discriminate(x *tensor.Tensor, label float64) (float64, error) {
	scores, err := ForwardAlloc(g.disc, x)
	if err != nil {
		return 0, fmt.Errorf("GAN discriminator: %w", err)
	}
	target := tensor.Full(scores.Shape(), label)
	loss, err := g.bce.Forward(scores, target)
	if err != nil {
		return 0, err
	}
	grad, err := g.bce.Backward(scores, target)
	if err != nil {
		return 0, err
	}
	if _, err := BackwardAlloc(g.disc, grad, x.Shape()); err != nil {
		return 0, fmt.Errorf("GAN discriminator: %w", err)
	}
	return loss, nil
}

func (g *GAN) zeroGrad(m Module, opt Stepper) {
	if opt != nil {
		opt.ZeroGrad()
		return
	}
	ZeroGrad(m)
}

func (g *GAN) step(m Module, opt Stepper, lr float64) error {
	if opt != nil {
		return opt.Step()
	}
	m.Update(lr)
	return nil
}
