// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides the public API for automatic differentiation in
// the Spectral toolkit.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	output := model.Forward(input)
//	loss := criterion.Forward(output, targets)
//
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
package autodiff

import (
	"github.com/born-ml/spectral/internal/autodiff"
	"github.com/born-ml/spectral/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation by
// recording operations in a GradientTape.
type AutodiffBackend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass.
type GradientTape = autodiff.GradientTape

// BackwardCapable is the interface for backends that support a backward
// pass.
type BackwardCapable = autodiff.BackwardCapable

// New creates a new AutodiffBackend wrapping the given backend.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return autodiff.New(backend)
}

// Backward computes gradients of t with respect to every tensor on the
// tape. Returns a map from RawTensor to its gradient.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
