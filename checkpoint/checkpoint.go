// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint saves and restores model parameters, pruning masks
// and optimizer state in the NAPCAS checkpoint format.
//
// Example:
//
//	err := checkpoint.Save("model.napc", model, checkpoint.Options{
//	    Optimizer: optimizer,
//	    Meta:      &checkpoint.Meta{Epoch: 10},
//	})
//
//	header, err := checkpoint.Load("model.napc", model, optimizer)
package checkpoint

import (
	"github.com/napcas-ml/napcas/internal/checkpoint"
	"github.com/napcas-ml/napcas/nn"
	"github.com/napcas-ml/napcas/tensor"
)

// Header is the JSON header of a checkpoint file.
type Header = checkpoint.Header

// Meta records the training position of a checkpoint.
type Meta = checkpoint.CheckpointMeta

// Options configures Save.
type Options = checkpoint.Options

// Stateful is implemented by optimizers whose state can be saved.
type Stateful = checkpoint.Stateful

// Reader gives random access to the tensors of a checkpoint file.
type Reader = checkpoint.Reader

// Corruption and validation errors.
var (
	ErrChecksumMismatch   = checkpoint.ErrChecksumMismatch
	ErrInvalidMagic       = checkpoint.ErrInvalidMagic
	ErrUnsupportedVersion = checkpoint.ErrUnsupportedVersion
	ErrMissingTensor      = checkpoint.ErrMissingTensor
)

// Save writes the parameters of m, and optionally optimizer state, to path.
// The file is replaced atomically.
func Save(path string, m nn.Module, opts Options) error {
	return checkpoint.Save(path, m, opts)
}

// Load restores the parameters of m, and the state of opt when the file
// carries it. Nothing is modified if any tensor is missing or misshapen.
func Load(path string, m nn.Module, opt Stateful) (Header, error) {
	return checkpoint.Load(path, m, opt)
}

// Open opens a checkpoint file with full validation.
func Open(path string) (*Reader, error) {
	return checkpoint.Open(path, checkpoint.ValidationStrict)
}

// StateDict returns copies of the parameters and masks of m keyed by
// their stored names.
func StateDict(m nn.Module) map[string]*tensor.Tensor {
	return checkpoint.StateDict(m)
}
