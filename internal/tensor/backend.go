package tensor

// Backend is the interface compute implementations must satisfy. The CPU
// backend implements it directly; the autodiff backend decorates another
// Backend and records operations on a gradient tape.
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations. 2D only: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Convolution forward passes.
	// Conv2D kernel layout: [out_channels, in_channels, kh, kw].
	// ConvTranspose2D kernel layout: [in_channels, out_channels, kh, kw].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	ConvTranspose2D(input, kernel *RawTensor, stride, padding int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations (element-wise with a scalar of the tensor's dtype).
	AddScalar(x *RawTensor, scalar any) *RawTensor
	MulScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise math.
	Sqrt(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor // scalar result, shape {}

	// Metadata.
	Name() string
	Device() Device
}
