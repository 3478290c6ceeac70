package ops

import (
	"fmt"

	"github.com/born-ml/spectral/internal/tensor"
)

// reduceBroadcast sums a gradient back down to the shape of an input that was
// broadcast during the forward pass. Returns grad unchanged when the shapes
// already match.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	result, err := tensor.NewRaw(targetShape, grad.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("reduceBroadcast: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		accumulateBroadcast(result.AsFloat32(), grad.AsFloat32(), targetShape, grad.Shape())
	case tensor.Float64:
		accumulateBroadcast(result.AsFloat64(), grad.AsFloat64(), targetShape, grad.Shape())
	default:
		panic(fmt.Sprintf("reduceBroadcast: unsupported dtype %s", grad.DType()))
	}
	return result
}

// accumulateBroadcast adds every grad element into the target position it was
// broadcast from.
func accumulateBroadcast[T tensor.DType](dst, grad []T, targetShape, gradShape tensor.Shape) {
	gradStrides := gradShape.ComputeStrides()
	targetStrides := targetShape.ComputeStrides()
	offset := len(gradShape) - len(targetShape)
	coords := make([]int, len(gradShape))

	for gradIdx := range grad {
		remaining := gradIdx
		for i := range gradShape {
			coords[i] = remaining / gradStrides[i]
			remaining %= gradStrides[i]
		}
		dstIdx := 0
		for i := range targetShape {
			coord := coords[offset+i]
			if targetShape[i] == 1 {
				coord = 0
			}
			dstIdx += coord * targetStrides[i]
		}
		dst[dstIdx] += grad[gradIdx]
	}
}

// onesLike creates a tensor of ones with the given shape and dtype.
func onesLike(shape tensor.Shape, dtype tensor.DataType, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("onesLike: %v", err))
	}
	switch dtype {
	case tensor.Float32:
		data := result.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic(fmt.Sprintf("onesLike: unsupported dtype %s", dtype))
	}
	return result
}
