package nn

import (
	"fmt"

	"github.com/born-ml/spectral/internal/tensor"
)

// Conv2D implements a 2D convolution layer.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_size, kernel_size]
// Output shape: [batch, out_channels, out_height, out_width]
//
// where out_height = (height + 2*padding - kernel_size) / stride + 1.
//
// The kernel and bias live in the layer's State under "weight" and "bias".
// The leading kernel dimension is the output-channel dimension, which is
// what weight reparameterizations treat as the output axis by default.
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	state       *State[B]
	backend     B
}

// NewConv2D creates a new Conv2D layer with Xavier-initialized kernel and
// zero biases.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, backend B) *Conv2D[B] {
	state := NewState[B]()

	fanIn := inChannels * kernelSize * kernelSize
	fanOut := outChannels * kernelSize * kernelSize
	weightShape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}
	state.RegisterParameter("weight", NewParameter("weight", Xavier(fanIn, fanOut, weightShape, backend)))
	state.RegisterParameter("bias", NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend)))

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		state:       state,
		backend:     backend,
	}
}

// Forward computes the convolution output.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("Conv2D.Forward: expected 4D input [batch, channels, h, w], got shape %v", inputShape))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("Conv2D.Forward: expected input with %d channels, got %d", c.inChannels, inputShape[1]))
	}

	c.state.RunForwardPreHooks()

	w := c.state.MustTensor("weight")
	output := input.Conv2D(w, c.stride, c.padding)

	if b, ok := c.state.Tensor("bias"); ok {
		output = output.Add(b.Reshape(1, c.outChannels, 1, 1))
	}

	return output
}

// Parameters returns the trainable parameters of this layer.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return c.state.Parameters()
}

// State returns the layer's parameter/buffer/hook table.
func (c *Conv2D[B]) State() *State[B] {
	return c.state
}
