// Package nn implements neural network modules for the Spectral toolkit.
//
// This package provides building blocks for constructing neural networks:
//   - Module interface: base interface for all NN components
//   - Layer interface: modules whose parameters and buffers live in a State
//   - State: named parameters, named buffers, and forward pre-hooks
//   - Linear, Conv2D, ConvTranspose2D: weighted layers
//   - SpectralNorm: spectral normalization applied through a forward pre-hook
//   - Activations and loss functions: ReLU, MSE
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/spectral/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Linear expects [batch_size, in_features].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter[B]
}

// Layer is a Module whose parameters and buffers are held in a State.
//
// Anything that can be looked up or rewritten by name at runtime goes
// through the State: weight reparameterizations such as spectral
// normalization attach to a layer by moving entries around in its State and
// registering a forward pre-hook, without the layer knowing about them.
type Layer[B tensor.Backend] interface {
	Module[B]

	// State returns the layer's parameter/buffer/hook table.
	State() *State[B]
}
