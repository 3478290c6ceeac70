package nn

import (
	"github.com/born-ml/spectral/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// The loss is built from recorded tensor operations, so calling Backward on
// the result propagates gradients to the model parameters.
//
// Example:
//
//	mse := nn.NewMSELoss(backend)
//	predictions := model.Forward(input)
//	loss := mse.Forward(predictions, targets)
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{
		backend: backend,
	}
}

// Forward computes mean((predictions - targets)²) as a scalar tensor.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)
	sum := squared.Sum()

	return sum.DivScalar(float32(predictions.NumElements()))
}

// Parameters returns nil (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
