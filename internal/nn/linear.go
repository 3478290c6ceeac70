package nn

import (
	"fmt"

	"github.com/born-ml/spectral/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//
// Weights are initialized using Xavier/Glorot initialization, biases to
// zeros. The weight and bias live in the layer's State under "weight" and
// "bias", so forward pre-hooks can rewrite them before each forward pass.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
//
//	input := tensor.Randn[float32](tensor.Shape{32, 784}, backend)
//	output := layer.Forward(input) // shape: [32, 128]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	state       *State[B]
	backend     B
}

// NewLinear creates a new Linear layer with Xavier-initialized weights and
// zero biases.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	state := NewState[B]()

	weightShape := tensor.Shape{outFeatures, inFeatures}
	state.RegisterParameter("weight", NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, backend)))
	state.RegisterParameter("bias", NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend)))

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		state:       state,
		backend:     backend,
	}
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
//
// Forward pre-hooks run first, so the weight read below reflects any
// attached reparameterization.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	l.state.RunForwardPreHooks()

	w := l.state.MustTensor("weight") // [out_features, in_features]
	wT := w.Transpose()               // [in_features, out_features]

	// [batch, in] @ [in, out] = [batch, out]
	output := input.MatMul(wT)

	if b, ok := l.state.Tensor("bias"); ok {
		output = output.Add(b.Reshape(1, l.outFeatures))
	}

	return output
}

// Parameters returns the trainable parameters of this layer.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return l.state.Parameters()
}

// State returns the layer's parameter/buffer/hook table.
func (l *Linear[B]) State() *State[B] {
	return l.state
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter and buffer names to raw tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return l.state.StateDict()
}

// LoadStateDict loads parameters and buffers from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return l.state.LoadStateDict(stateDict)
}
