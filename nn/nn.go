// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for neural network modules in the
// Spectral toolkit, including the spectral normalization
// reparameterization the toolkit is named after.
package nn

import (
	"github.com/born-ml/spectral/internal/nn"
	"github.com/born-ml/spectral/internal/tensor"
)

// Module interface defines the common interface for all neural network
// modules.
type Module[B tensor.Backend] = nn.Module[B]

// Layer is a Module whose parameters and buffers are held in a State.
type Layer[B tensor.Backend] = nn.Layer[B]

// State is a layer's table of named parameters, named buffers, and ordered
// forward pre-hooks.
type State[B tensor.Backend] = nn.State[B]

// ForwardPreHook runs before a layer's forward computation.
type ForwardPreHook[B tensor.Backend] = nn.ForwardPreHook[B]

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// NewState creates an empty State in training mode.
func NewState[B tensor.Backend]() *State[B] {
	return nn.NewState[B]()
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer.
//
// Example:
//
//	conv := nn.NewConv2D(3, 64, 4, 2, 1, backend) // in=3, out=64, kernel=4, stride=2, padding=1
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, backend)
}

// ConvTranspose2D represents a transposed 2D convolutional layer.
type ConvTranspose2D[B tensor.Backend] = nn.ConvTranspose2D[B]

// NewConvTranspose2D creates a new transposed 2D convolutional layer.
//
// Example:
//
//	deconv := nn.NewConvTranspose2D(64, 3, 4, 2, 1, backend)
func NewConvTranspose2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, backend B) *ConvTranspose2D[B] {
	return nn.NewConvTranspose2D(inChannels, outChannels, kernelSize, stride, padding, backend)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Loss functions

// MSELoss represents the mean squared error loss for regression.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// Sequential

// Sequential represents a sequential container of modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new sequential model.
//
// Example:
//
//	model := nn.NewSequential[*cpu.CPUBackend](
//	    nn.NewLinear(4, 16, backend),
//	    nn.NewReLU[*cpu.CPUBackend](),
//	    nn.NewLinear(16, 1, backend),
//	)
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Initialization functions

// Xavier initializes a tensor using Xavier/Glorot initialization.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, backend)
}

// Zeros initializes a tensor with zeros (for biases).
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones initializes a tensor with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}

// Randn initializes a tensor with random values from N(0, 1).
func Randn[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Randn(shape, backend)
}

// Spectral normalization

// SpectralNorm reparameterizes one named weight of a layer so its spectral
// norm stays close to 1.
type SpectralNorm[B tensor.Backend] = nn.SpectralNorm[B]

// SpectralNormConfig configures how spectral normalization attaches to a
// layer's parameter.
type SpectralNormConfig = nn.SpectralNormConfig

// DefaultEps is the norm floor used when normalizing the singular vector
// estimates.
const DefaultEps = nn.DefaultEps

// Spectral normalization errors.
var (
	// ErrInvalidIterations reports a negative power-iteration count.
	ErrInvalidIterations = nn.ErrInvalidIterations

	// ErrSpectralNormNotFound reports that no spectral normalization is
	// registered for the requested parameter name.
	ErrSpectralNormNotFound = nn.ErrSpectralNormNotFound
)

// ApplySpectralNorm attaches spectral normalization to the layer's "weight"
// parameter with default configuration.
//
// Example:
//
//	layer := nn.NewLinear(128, 64, backend)
//	sn, err := nn.ApplySpectralNorm(layer)
func ApplySpectralNorm[B tensor.Backend](layer Layer[B]) (*SpectralNorm[B], error) {
	return nn.ApplySpectralNorm(layer)
}

// ApplySpectralNormWith attaches spectral normalization to a named
// parameter of the layer with explicit configuration.
func ApplySpectralNormWith[B tensor.Backend](layer Layer[B], cfg SpectralNormConfig) (*SpectralNorm[B], error) {
	return nn.ApplySpectralNormWith(layer, cfg)
}

// RemoveSpectralNorm detaches spectral normalization from a named parameter
// of the layer, restoring the original learnable parameter.
func RemoveSpectralNorm[B tensor.Backend](layer Layer[B], name string) error {
	return nn.RemoveSpectralNorm(layer, name)
}
