package ops

import "github.com/born-ml/spectral/internal/tensor"

// AddScalarOp: output = x + c for a constant scalar c.
// Backward: the constant contributes nothing, grad_x = outputGrad.
type AddScalarOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddScalarOp records a scalar addition.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward passes the output gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// Inputs returns [x].
func (op *AddScalarOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns x + c.
func (op *AddScalarOp) Output() *tensor.RawTensor { return op.output }

// MulScalarOp: output = x * c for a constant scalar c.
// Backward: grad_x = outputGrad * c.
type MulScalarOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	scalar any
}

// NewMulScalarOp records a scalar multiplication.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar any) *MulScalarOp {
	return &MulScalarOp{inputs: []*tensor.RawTensor{x}, output: output, scalar: scalar}
}

// Backward scales the output gradient by the recorded constant.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad.Clone(), op.scalar)}
}

// Inputs returns [x].
func (op *MulScalarOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns x * c.
func (op *MulScalarOp) Output() *tensor.RawTensor { return op.output }

// DivScalarOp: output = x / c for a constant scalar c. This is the operation
// the spectral rescale W/σ records, so gradients reach the original weight
// scaled by 1/σ.
type DivScalarOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	scalar any
}

// NewDivScalarOp records a scalar division.
func NewDivScalarOp(x, output *tensor.RawTensor, scalar any) *DivScalarOp {
	return &DivScalarOp{inputs: []*tensor.RawTensor{x}, output: output, scalar: scalar}
}

// Backward divides the output gradient by the recorded constant.
func (op *DivScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.DivScalar(outputGrad.Clone(), op.scalar)}
}

// Inputs returns [x].
func (op *DivScalarOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns x / c.
func (op *DivScalarOp) Output() *tensor.RawTensor { return op.output }
