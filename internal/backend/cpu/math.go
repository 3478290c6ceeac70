package cpu

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/born-ml/spectral/internal/tensor"
)

// Sqrt computes the element-wise square root. Float types only.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sqrt: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = math32.Sqrt(v)
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			dst[i] = math.Sqrt(v)
		}
	default:
		panic(fmt.Sprintf("sqrt: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}
	return result
}

// ReLU computes element-wise max(0, x). Float types only.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("relu: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		reluInto(result.AsFloat32(), x.AsFloat32())
	case tensor.Float64:
		reluInto(result.AsFloat64(), x.AsFloat64())
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}
	return result
}

func reluInto[T tensor.DType](dst, src []T) {
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}

// Sum reduces the tensor to a scalar (shape {}) holding the total sum.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumInto(result.AsFloat32(), x.AsFloat32())
	case tensor.Float64:
		sumInto(result.AsFloat64(), x.AsFloat64())
	case tensor.Int32:
		sumInto(result.AsInt32(), x.AsInt32())
	case tensor.Int64:
		sumInto(result.AsInt64(), x.AsInt64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

func sumInto[T tensor.DType](dst, src []T) {
	var sum T
	for _, v := range src {
		sum += v
	}
	dst[0] = sum
}
