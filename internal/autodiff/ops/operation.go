// Package ops defines the differentiable operations recorded on the gradient
// tape. Each operation keeps its forward inputs/output and knows how to turn
// an output gradient into input gradients.
package ops

import "github.com/born-ml/spectral/internal/tensor"

// Operation is one recorded step of the forward computation.
type Operation interface {
	// Backward computes gradients for the inputs given the output gradient.
	// The returned slice parallels Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors of this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
