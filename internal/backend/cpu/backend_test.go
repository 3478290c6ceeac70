package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/spectral/internal/backend/cpu"
	"github.com/born-ml/spectral/internal/tensor"
)

func TestAdd_Broadcast(t *testing.T) {
	backend := cpu.New()

	a, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3, 1}, backend)
	require.NoError(t, err)
	b, err := tensor.FromSlice([]float32{10, 20}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	c := a.Add(b)
	require.Equal(t, tensor.Shape{3, 2}, c.Shape())
	assert.Equal(t, []float32{11, 21, 12, 22, 13, 23}, c.Data())
}

func TestBinaryOps(t *testing.T) {
	backend := cpu.New()

	// Fresh lhs per op: a unique lhs with matching shape is updated in place.
	operand := func() *tensor.Tensor[float32, *cpu.CPUBackend] {
		a, err := tensor.FromSlice([]float32{4, 9, 16}, tensor.Shape{3}, backend)
		require.NoError(t, err)
		return a
	}
	b, _ := tensor.FromSlice([]float32{2, 3, 4}, tensor.Shape{3}, backend)

	assert.Equal(t, []float32{6, 12, 20}, operand().Add(b).Data())
	assert.Equal(t, []float32{2, 6, 12}, operand().Sub(b).Data())
	assert.Equal(t, []float32{8, 27, 64}, operand().Mul(b).Data())
	assert.Equal(t, []float32{2, 3, 4}, operand().Div(b).Data())
}

func TestBinary_ShapeMismatchPanics(t *testing.T) {
	backend := cpu.New()

	a := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
	b := tensor.Zeros[float32](tensor.Shape{4, 3}, backend)
	assert.Panics(t, func() { a.Add(b) })
}

func TestMatMul(t *testing.T) {
	backend := cpu.New()

	// [[1, 2], [3, 4]] @ [[5, 6], [7, 8]] = [[19, 22], [43, 50]]
	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{5, 6, 7, 8}, tensor.Shape{2, 2}, backend)

	c := a.MatMul(b)
	assert.Equal(t, []float32{19, 22, 43, 50}, c.Data())
}

func TestTranspose(t *testing.T) {
	backend := cpu.New()

	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	at := a.T()
	require.Equal(t, tensor.Shape{3, 2}, at.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, at.Data())

	// 3D permutation moving the middle axis to the front.
	b, _ := tensor.FromSlice([]float32{0, 1, 2, 3, 4, 5, 6, 7}, tensor.Shape{2, 2, 2}, backend)
	bt := b.Transpose(1, 0, 2)
	require.Equal(t, tensor.Shape{2, 2, 2}, bt.Shape())
	assert.Equal(t, []float32{0, 1, 4, 5, 2, 3, 6, 7}, bt.Data())
}

func TestReshape(t *testing.T) {
	backend := cpu.New()

	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	r := a.Reshape(3, 2)
	require.Equal(t, tensor.Shape{3, 2}, r.Shape())
	assert.Equal(t, a.Data(), r.Data())

	assert.Panics(t, func() { a.Reshape(4, 2) })
}

func TestScalarOps(t *testing.T) {
	backend := cpu.New()

	a, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	assert.Equal(t, []float32{3, 4, 5}, a.AddScalar(2).Data())
	assert.Equal(t, []float32{2, 4, 6}, a.MulScalar(2).Data())
	assert.Equal(t, []float32{0.5, 1, 1.5}, a.DivScalar(2).Data())
}

func TestSqrtSumReLU(t *testing.T) {
	backend := cpu.New()

	a, _ := tensor.FromSlice([]float32{4, 9, 16}, tensor.Shape{3}, backend)
	assert.Equal(t, []float32{2, 3, 4}, a.Sqrt().Data())

	s := a.Sum()
	assert.Equal(t, float32(29), s.Item())

	b, _ := tensor.FromSlice([]float32{-1, 0, 2}, tensor.Shape{3}, backend)
	assert.Equal(t, []float32{0, 0, 2}, b.ReLU().Data())
}

func TestConv2D(t *testing.T) {
	backend := cpu.New()

	// 1×1×3×3 input, 1×1×2×2 all-ones kernel, stride 1, no padding:
	// each output element is the sum of a 2×2 window.
	input, _ := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9},
		tensor.Shape{1, 1, 3, 3}, backend)
	kernel := tensor.Ones[float32](tensor.Shape{1, 1, 2, 2}, backend)

	out := input.Conv2D(kernel, 1, 0)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{12, 16, 24, 28}, out.Data())
}

func TestConvTranspose2D(t *testing.T) {
	backend := cpu.New()

	// 1×1×2×2 input, 1×1×2×2 all-ones kernel, stride 1, no padding:
	// output is 3×3 with overlapping scattered contributions.
	input, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	kernel := tensor.Ones[float32](tensor.Shape{1, 1, 2, 2}, backend)

	out := input.ConvTranspose2D(kernel, 1, 0)
	require.Equal(t, tensor.Shape{1, 1, 3, 3}, out.Shape())
	assert.Equal(t, []float32{1, 3, 2, 4, 10, 6, 3, 7, 4}, out.Data())
}

func TestInPlaceFastPathRespectsSharing(t *testing.T) {
	backend := cpu.New()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{10, 10}, tensor.Shape{2}, backend)

	// Unique lhs with matching shape reuses its buffer.
	sum := a.Add(b)
	assert.Same(t, a.Raw(), sum.Raw())

	// A shared lhs must get a fresh result buffer.
	c, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	restore := c.Raw().ForceNonUnique()
	defer restore()
	sum2 := c.Add(b)
	assert.NotSame(t, c.Raw(), sum2.Raw())
	assert.Equal(t, []float32{1, 2}, c.Data(), "shared input must not be mutated")
}
