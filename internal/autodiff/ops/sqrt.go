package ops

import "github.com/born-ml/spectral/internal/tensor"

// SqrtOp: output = sqrt(x).
// Backward: d(sqrt(x))/dx = 1 / (2 * sqrt(x)) = 1 / (2 * output).
type SqrtOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSqrtOp records an element-wise square root.
func NewSqrtOp(x, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward computes grad_x = outputGrad / (2 * sqrt(x)).
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	var two any = float32(2)
	if op.output.DType() == tensor.Float64 {
		two = float64(2)
	}
	denom := backend.MulScalar(op.output.Clone(), two)
	return []*tensor.RawTensor{backend.Div(outputGrad.Clone(), denom)}
}

// Inputs returns [x].
func (op *SqrtOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns sqrt(x).
func (op *SqrtOp) Output() *tensor.RawTensor { return op.output }
