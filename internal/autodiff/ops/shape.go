package ops

import "github.com/born-ml/spectral/internal/tensor"

// ReshapeOp: output = reshape(x). Reshape produces a new tensor, so it must
// be recorded for gradients to flow back to the pre-reshape parameter (a
// broadcast-reshaped bias, for example).
type ReshapeOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewReshapeOp records a reshape.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward reshapes the output gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inputs[0].Shape())}
}

// Inputs returns [x].
func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the reshaped tensor.
func (op *ReshapeOp) Output() *tensor.RawTensor { return op.output }

// TransposeOp: output = transpose(x, axes). Like reshape, the backend
// produces a fresh tensor, so without recording the transpose a Linear
// layer's weight would never receive a gradient.
type TransposeOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewTransposeOp records a transpose with the given permutation.
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{inputs: []*tensor.RawTensor{x}, output: output, axes: axes}
}

// Backward applies the inverse permutation to the output gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

// Inputs returns [x].
func (op *TransposeOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the transposed tensor.
func (op *TransposeOp) Output() *tensor.RawTensor { return op.output }

// SumOp: output = sum(x), a scalar.
// Backward: the scalar gradient broadcasts to every input element.
type SumOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp records a total-sum reduction.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward broadcasts the scalar output gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	grad := onesLike(x.Shape(), x.DType(), x.Device())
	switch x.DType() {
	case tensor.Float32:
		g := outputGrad.AsFloat32()[0]
		data := grad.AsFloat32()
		for i := range data {
			data[i] = g
		}
	case tensor.Float64:
		g := outputGrad.AsFloat64()[0]
		data := grad.AsFloat64()
		for i := range data {
			data[i] = g
		}
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *SumOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the scalar sum.
func (op *SumOp) Output() *tensor.RawTensor { return op.output }
