// Package train drives training loops over the engine packages.
//
// The engine itself is synchronous and never logs; this package adds
// cancellation between batches, structured logging, optional gradient
// clipping, NAPCASim pruning and per-epoch checkpoints.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/napcas-ml/napcas/internal/checkpoint"
	"github.com/napcas-ml/napcas/internal/data"
	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/optim"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// EpochStats summarizes one epoch. Metrics that do not apply are NaN.
type EpochStats struct {
	Epoch       int
	Loss        float64 // Mean training loss (generator loss for GANs)
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
	DiscLoss    float64 // Mean discriminator loss (GANs only)
	Active      int     // Unpruned NAPCASim connections, or -1
	Duration    time.Duration
}

func newStats(epoch int) EpochStats {
	nan := math.NaN()
	return EpochStats{Epoch: epoch, Loss: nan, Accuracy: nan, ValLoss: nan, ValAccuracy: nan, DiscLoss: nan, Active: -1}
}

// Trainer fits a supervised model.
type Trainer struct {
	Model     nn.Module
	Loss      nn.Loss
	Optimizer optim.Optimizer

	// ClipNorm bounds the global gradient norm before each step (0 disables).
	ClipNorm float64
	// PruneThreshold prunes NAPCASim connections with |w| below it after
	// every epoch (0 disables).
	PruneThreshold float64
	// Checkpoint is written after every epoch when non-empty.
	Checkpoint string
	// CheckpointMeta is copied into every checkpoint header; Epoch, Step
	// and Loss are filled in.
	CheckpointMeta checkpoint.CheckpointMeta

	Logger *slog.Logger

	step int64
}

func (t *Trainer) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

// Fit trains for epochs passes over train, evaluating on val when it is
// non-nil. Cancellation is checked between batches; on cancellation the
// stats of completed epochs are returned with the context error.
func (t *Trainer) Fit(ctx context.Context, train, val data.Loader, epochs int) ([]EpochStats, error) {
	stats := make([]EpochStats, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		start := time.Now()
		s := newStats(epoch)

		train.Reset()
		var (
			lossSum        float64
			correct, count int
			batches        int
		)
		for {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			x, y, ok := train.Next()
			if !ok {
				break
			}
			loss, c, err := t.TrainBatch(x, y)
			if err != nil {
				return stats, fmt.Errorf("epoch %d batch %d: %w", epoch, batches, err)
			}
			t.logger().Debug("batch", "epoch", epoch, "batch", batches, "loss", loss)
			lossSum += loss
			correct += c
			count += y.Dim(0)
			batches++
		}
		if batches > 0 {
			s.Loss = lossSum / float64(batches)
			if t.hasAccuracy() {
				s.Accuracy = float64(correct) / float64(count)
			}
		}

		if val != nil {
			var err error
			s.ValLoss, s.ValAccuracy, err = t.Evaluate(ctx, val)
			if err != nil {
				return stats, fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
		}

		if cells := Prunable(t.Model); len(cells) > 0 {
			s.Active = 0
			for _, cell := range cells {
				if t.PruneThreshold > 0 {
					cell.PruneConnections(t.PruneThreshold)
				}
				s.Active += cell.ActiveConnections()
			}
		}

		if t.Checkpoint != "" {
			if err := t.save(epoch, s.Loss); err != nil {
				return stats, err
			}
		}

		s.Duration = time.Since(start)
		stats = append(stats, s)
		t.logger().Info("epoch complete",
			"epoch", epoch,
			"loss", s.Loss,
			"accuracy", s.Accuracy,
			"val_loss", s.ValLoss,
			"duration", s.Duration)
	}
	return stats, nil
}

// TrainBatch runs one forward, backward and optimizer step and returns the
// batch loss and the number of correctly classified samples.
func (t *Trainer) TrainBatch(x, y *tensor.Tensor) (float64, int, error) {
	t.Optimizer.ZeroGrad()
	out, err := nn.ForwardAlloc(t.Model, x)
	if err != nil {
		return 0, 0, err
	}
	loss, err := t.Loss.Forward(out, y)
	if err != nil {
		return 0, 0, err
	}
	grad, err := t.Loss.Backward(out, y)
	if err != nil {
		return 0, 0, err
	}
	if _, err := nn.BackwardAlloc(t.Model, grad, x.Shape()); err != nil {
		return 0, 0, err
	}
	if t.ClipNorm > 0 {
		if _, err := optim.ClipGradNorm(t.Model.Parameters(), t.ClipNorm); err != nil {
			return 0, 0, err
		}
	}
	if err := t.Optimizer.Step(); err != nil {
		return 0, 0, err
	}
	t.step++
	return loss, t.correct(out, y), nil
}

// Evaluate returns the mean loss and accuracy over one pass of l.
// Accuracy is NaN for regression losses.
func (t *Trainer) Evaluate(ctx context.Context, l data.Loader) (loss, accuracy float64, err error) {
	l.Reset()
	var (
		sum            float64
		correct, count int
		batches        int
	)
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		x, y, ok := l.Next()
		if !ok {
			break
		}
		out, err := nn.ForwardAlloc(t.Model, x)
		if err != nil {
			return 0, 0, err
		}
		v, err := t.Loss.Forward(out, y)
		if err != nil {
			return 0, 0, err
		}
		sum += v
		correct += t.correct(out, y)
		count += y.Dim(0)
		batches++
	}
	if batches == 0 {
		return math.NaN(), math.NaN(), nil
	}
	accuracy = math.NaN()
	if t.hasAccuracy() {
		accuracy = float64(correct) / float64(count)
	}
	return sum / float64(batches), accuracy, nil
}

func (t *Trainer) hasAccuracy() bool {
	switch t.Loss.(type) {
	case *nn.CrossEntropy, *nn.BCE:
		return true
	}
	return false
}

// correct counts matching predictions: arg-max against class indices for
// cross-entropy, p > 0.5 against 0/1 labels for binary cross-entropy.
func (t *Trainer) correct(pred, target *tensor.Tensor) int {
	n := 0
	switch t.Loss.(type) {
	case *nn.CrossEntropy:
		rows, cols := pred.Shape().Rows()
		if target.Size() != rows {
			// One-hot targets.
			for r := 0; r < rows; r++ {
				if argmax(pred.Data()[r*cols:(r+1)*cols]) == argmax(target.Data()[r*cols:(r+1)*cols]) {
					n++
				}
			}
			return n
		}
		for r := 0; r < rows; r++ {
			if argmax(pred.Data()[r*cols:(r+1)*cols]) == int(target.Data()[r]) {
				n++
			}
		}
	case *nn.BCE:
		for i, p := range pred.Data() {
			if (p > 0.5) == (target.Data()[i] > 0.5) {
				n++
			}
		}
	}
	return n
}

func argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

func (t *Trainer) save(epoch int, loss float64) error {
	meta := t.CheckpointMeta
	meta.Epoch = epoch
	meta.Step = t.step
	meta.Loss = loss
	opts := checkpoint.Options{Meta: &meta}
	if s, ok := t.Optimizer.(checkpoint.Stateful); ok {
		opts.Optimizer = s
	}
	if err := checkpoint.Save(t.Checkpoint, t.Model, opts); err != nil {
		return fmt.Errorf("epoch %d checkpoint: %w", epoch, err)
	}
	t.logger().Debug("checkpoint saved", "path", t.Checkpoint, "epoch", epoch)
	return nil
}
