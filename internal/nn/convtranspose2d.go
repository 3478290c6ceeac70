package nn

import (
	"fmt"

	"github.com/born-ml/spectral/internal/tensor"
)

// ConvTranspose2D implements a transposed (fractionally strided) 2D
// convolution layer, the standard upsampling block in generator networks.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [in_channels, out_channels, kernel_size, kernel_size]
// Output shape: [batch, out_channels, out_height, out_width]
//
// where out_height = (height - 1)*stride - 2*padding + kernel_size.
//
// Note the kernel layout: unlike Conv2D, the output-channel dimension is
// dimension 1. Weight reparameterizations that need the output axis detect
// this through the outputDim method.
type ConvTranspose2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	state       *State[B]
	backend     B
}

// NewConvTranspose2D creates a new ConvTranspose2D layer with
// Xavier-initialized kernel and zero biases.
func NewConvTranspose2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, backend B) *ConvTranspose2D[B] {
	state := NewState[B]()

	fanIn := inChannels * kernelSize * kernelSize
	fanOut := outChannels * kernelSize * kernelSize
	weightShape := tensor.Shape{inChannels, outChannels, kernelSize, kernelSize}
	state.RegisterParameter("weight", NewParameter("weight", Xavier(fanIn, fanOut, weightShape, backend)))
	state.RegisterParameter("bias", NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend)))

	return &ConvTranspose2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		state:       state,
		backend:     backend,
	}
}

// outputDim reports which kernel dimension holds the output channels.
func (c *ConvTranspose2D[B]) outputDim() int { return 1 }

// Forward computes the transposed convolution output.
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("ConvTranspose2D.Forward: expected 4D input [batch, channels, h, w], got shape %v", inputShape))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("ConvTranspose2D.Forward: expected input with %d channels, got %d", c.inChannels, inputShape[1]))
	}

	c.state.RunForwardPreHooks()

	w := c.state.MustTensor("weight")
	output := input.ConvTranspose2D(w, c.stride, c.padding)

	if b, ok := c.state.Tensor("bias"); ok {
		output = output.Add(b.Reshape(1, c.outChannels, 1, 1))
	}

	return output
}

// Parameters returns the trainable parameters of this layer.
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	return c.state.Parameters()
}

// State returns the layer's parameter/buffer/hook table.
func (c *ConvTranspose2D[B]) State() *State[B] {
	return c.state
}
