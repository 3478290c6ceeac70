package nn

import (
	"github.com/born-ml/spectral/internal/tensor"
)

// ReLU applies the rectified linear unit activation: max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU element-wise.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns nil (activations have no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}
