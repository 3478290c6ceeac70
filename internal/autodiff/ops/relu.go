package ops

import "github.com/born-ml/spectral/internal/tensor"

// ReLUOp: output = max(0, x).
// Backward: the gradient passes through where x > 0 and is zero elsewhere.
type ReLUOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp records a ReLU activation.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward masks the output gradient with the activation pattern.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	grad, err := tensor.NewRaw(x.Shape(), x.DType(), x.Device())
	if err != nil {
		panic(err)
	}

	switch x.DType() {
	case tensor.Float32:
		reluMask(grad.AsFloat32(), x.AsFloat32(), outputGrad.AsFloat32())
	case tensor.Float64:
		reluMask(grad.AsFloat64(), x.AsFloat64(), outputGrad.AsFloat64())
	}
	return []*tensor.RawTensor{grad}
}

func reluMask[T tensor.DType](dst, x, g []T) {
	for i := range dst {
		if x[i] > 0 {
			dst[i] = g[i]
		}
	}
}

// Inputs returns [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor { return op.output }
