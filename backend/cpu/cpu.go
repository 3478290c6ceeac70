// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure-Go CPU backend for the Spectral toolkit.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	"github.com/born-ml/spectral/internal/backend/cpu"
)

// CPUBackend is a pure-Go implementation of the tensor.Backend interface.
type CPUBackend = cpu.CPUBackend

// New creates a new CPU backend.
func New() *CPUBackend {
	return cpu.New()
}
