package tensor

import "math/rand"

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err) // shape validated by callers in practice
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, T(1), b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from the standard normal
// distribution N(0, 1). Float types only.
//
// Uses math/rand (not crypto/rand): draws must be reproducible given a seed.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	fillNormal(t.raw)
	return t
}

// fillNormal fills a float RawTensor with N(0, 1) draws in place.
func fillNormal(raw *RawTensor) {
	switch raw.DType() {
	case Float32:
		data := raw.AsFloat32()
		for i := range data {
			data[i] = float32(rand.NormFloat64()) //nolint:gosec // reproducible init
		}
	case Float64:
		data := raw.AsFloat64()
		for i := range data {
			data[i] = rand.NormFloat64() //nolint:gosec // reproducible init
		}
	default:
		panic("Randn only supports float32 and float64 types")
	}
}

// RandnLike creates a 1D tensor of n normal draws with the same dtype,
// device and backend as the reference tensor. Used when auxiliary state must
// live exactly where its source weight lives.
func RandnLike[T DType, B Backend](n int, like *Tensor[T, B]) *Tensor[T, B] {
	raw, err := NewRaw(Shape{n}, like.DType(), like.Device())
	if err != nil {
		panic(err)
	}
	fillNormal(raw)
	return New[T, B](raw, like.Backend())
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
// Float types only.
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	switch t.DType() {
	case Float32:
		data := t.raw.AsFloat32()
		for i := range data {
			data[i] = rand.Float32() //nolint:gosec // reproducible init
		}
	case Float64:
		data := t.raw.AsFloat64()
		for i := range data {
			data[i] = rand.Float64() //nolint:gosec // reproducible init
		}
	default:
		panic("Rand only supports float32 and float64 types")
	}
	return t
}

// Eye creates a 2D identity matrix of size n x n.
func Eye[T DType, B Backend](n int, b B) *Tensor[T, B] {
	t := Zeros[T, B](Shape{n, n}, b)
	data := t.Data()
	for i := 0; i < n; i++ {
		data[i*n+i] = T(1)
	}
	return t
}
