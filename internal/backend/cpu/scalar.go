package cpu

import (
	"fmt"

	"github.com/born-ml/spectral/internal/tensor"
)

// AddScalar adds a scalar value to each element of the tensor.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("addScalar", '+', x, scalar)
}

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("mulScalar", '*', x, scalar)
}

// DivScalar divides each element of the tensor by a scalar value.
func (cpu *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("divScalar", '/', x, scalar)
}

// scalarOp applies x OP scalar element-wise. The scalar must match the
// tensor's dtype.
func (cpu *CPUBackend) scalarOp(name string, op byte, x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		applyScalar(op, result.AsFloat32(), x.AsFloat32(), scalar.(float32))
	case tensor.Float64:
		applyScalar(op, result.AsFloat64(), x.AsFloat64(), scalar.(float64))
	case tensor.Int32:
		applyScalar(op, result.AsInt32(), x.AsInt32(), scalar.(int32))
	case tensor.Int64:
		applyScalar(op, result.AsInt64(), x.AsInt64(), scalar.(int64))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}

func applyScalar[T tensor.DType](op byte, dst, src []T, scalar T) {
	f := binaryFunc[T](op)
	for i, v := range src {
		dst[i] = f(v, scalar)
	}
}
