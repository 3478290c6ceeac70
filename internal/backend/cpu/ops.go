package cpu

import (
	"fmt"

	"github.com/born-ml/spectral/internal/tensor"
)

// applyBinaryRaw dispatches an element-wise binary op by dtype.
func applyBinaryRaw(op byte, result, a, b *tensor.RawTensor, aShape, bShape, outShape tensor.Shape) {
	switch a.DType() {
	case tensor.Float32:
		applyBinary(op, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), aShape, bShape, outShape)
	case tensor.Float64:
		applyBinary(op, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), aShape, bShape, outShape)
	case tensor.Int32:
		applyBinary(op, result.AsInt32(), a.AsInt32(), b.AsInt32(), aShape, bShape, outShape)
	case tensor.Int64:
		applyBinary(op, result.AsInt64(), a.AsInt64(), b.AsInt64(), aShape, bShape, outShape)
	default:
		panic(fmt.Sprintf("binary op: unsupported dtype %s", a.DType()))
	}
}

// applyBinary computes dst = a OP b element-wise. Same-shape inputs take the
// vectorizable fast path; otherwise indices are mapped through the broadcast
// shape.
func applyBinary[T tensor.DType](op byte, dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	f := binaryFunc[T](op)

	if aShape.Equal(bShape) {
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
		return
	}

	outStrides := outShape.ComputeStrides()
	aStrides := aShape.ComputeStrides()
	bStrides := bShape.ComputeStrides()
	total := outShape.NumElements()
	coords := make([]int, len(outShape))

	for outIdx := 0; outIdx < total; outIdx++ {
		remaining := outIdx
		for i := range outShape {
			coords[i] = remaining / outStrides[i]
			remaining %= outStrides[i]
		}
		dst[outIdx] = f(a[broadcastIndex(coords, aShape, aStrides, len(outShape))],
			b[broadcastIndex(coords, bShape, bStrides, len(outShape))])
	}
}

// broadcastIndex maps output coordinates to the flat index of an input whose
// shape broadcasts to the output shape.
func broadcastIndex(coords []int, shape tensor.Shape, strides []int, outNdim int) int {
	offset := outNdim - len(shape)
	idx := 0
	for i := range shape {
		coord := coords[offset+i]
		if shape[i] == 1 {
			coord = 0
		}
		idx += coord * strides[i]
	}
	return idx
}

func binaryFunc[T tensor.DType](op byte) func(T, T) T {
	switch op {
	case '+':
		return func(x, y T) T { return x + y }
	case '-':
		return func(x, y T) T { return x - y }
	case '*':
		return func(x, y T) T { return x * y }
	case '/':
		return func(x, y T) T { return x / y }
	default:
		panic(fmt.Sprintf("unknown binary op %q", op))
	}
}

// transposeCopy writes the permutation of src into dst.
// dst must be sized for the permuted shape.
func transposeCopy[T tensor.DType](dst, src []T, srcShape tensor.Shape, axes []int) {
	ndim := len(srcShape)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		outShape[i] = srcShape[ax]
	}
	outStrides := outShape.ComputeStrides()
	srcStrides := srcShape.ComputeStrides()

	total := srcShape.NumElements()
	outCoords := make([]int, ndim)
	for outIdx := 0; outIdx < total; outIdx++ {
		remaining := outIdx
		for i := 0; i < ndim; i++ {
			outCoords[i] = remaining / outStrides[i]
			remaining %= outStrides[i]
		}
		srcIdx := 0
		for i, ax := range axes {
			srcIdx += outCoords[i] * srcStrides[ax]
		}
		dst[outIdx] = src[srcIdx]
	}
}
