package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/spectral/internal/autodiff"
	"github.com/born-ml/spectral/internal/backend/cpu"
	"github.com/born-ml/spectral/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

// TestBackward_Square checks d(x²)/dx = 2x.
func TestBackward_Square(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	y := x.Mul(x)
	grads := autodiff.Backward(y, backend)

	grad, ok := grads[x.Raw()]
	require.True(t, ok)
	assert.Equal(t, []float32{4, 6}, grad.AsFloat32())
}

// TestBackward_MatMul checks the matrix multiplication gradients:
// dL/dA = G @ Bᵀ and dL/dB = Aᵀ @ G with G = ones.
func TestBackward_MatMul(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{5, 6, 7, 8}, tensor.Shape{2, 2}, backend)

	y := a.MatMul(b)
	grads := autodiff.Backward(y, backend)

	gradA := grads[a.Raw()]
	require.NotNil(t, gradA)
	// G @ Bᵀ with G = ones: each row is [5+6, 7+8] = [11, 15].
	assert.Equal(t, []float32{11, 15, 11, 15}, gradA.AsFloat32())

	gradB := grads[b.Raw()]
	require.NotNil(t, gradB)
	// Aᵀ @ G: each column sums A's columns: [1+3, 2+4] per row.
	assert.Equal(t, []float32{4, 4, 6, 6}, gradB.AsFloat32())
}

// TestBackward_DivScalar checks d(x/c)/dx = 1/c, the gradient path a
// rescaled weight depends on.
func TestBackward_DivScalar(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{2, 4}, tensor.Shape{2}, backend)
	y := x.DivScalar(4)
	grads := autodiff.Backward(y, backend)

	grad := grads[x.Raw()]
	require.NotNil(t, grad)
	assert.Equal(t, []float32{0.25, 0.25}, grad.AsFloat32())
}

// TestBackward_AccumulatesFanOut checks that a tensor feeding two
// operations receives the sum of both gradients.
func TestBackward_AccumulatesFanOut(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	y := x.MulScalar(3).Add(x.MulScalar(2)) // y = 3x + 2x

	grads := autodiff.Backward(y, backend)
	grad := grads[x.Raw()]
	require.NotNil(t, grad)
	assert.Equal(t, []float32{5, 5}, grad.AsFloat32())
}

// TestBackward_BroadcastReduces checks that the gradient of a broadcast
// operand is reduced back to the operand's shape, as with a bias row.
func TestBackward_BroadcastReduces(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	a := tensor.Zeros[float32](tensor.Shape{3, 2}, backend)
	bias, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)

	y := a.Add(bias)
	grads := autodiff.Backward(y, backend)

	grad := grads[bias.Raw()]
	require.NotNil(t, grad)
	require.True(t, grad.Shape().Equal(tensor.Shape{1, 2}))
	assert.Equal(t, []float32{3, 3}, grad.AsFloat32())
}

// TestNoGrad checks that operations inside NoGrad leave no trace on the
// tape and that recording resumes afterwards.
func TestNoGrad(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)

	backend.NoGrad(func() {
		_ = x.MulScalar(10)
		_ = x.AddScalar(1)
	})
	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording(), "recording must resume after NoGrad")

	_ = x.MulScalar(2)
	assert.Equal(t, 1, backend.Tape().NumOps())
}

// TestNoGrad_NotRecording checks NoGrad does not start recording when the
// tape was idle.
func TestNoGrad_NotRecording(t *testing.T) {
	backend := newBackend()

	backend.NoGrad(func() {})
	assert.False(t, backend.Tape().IsRecording())
}

// TestTape_ClearPreservesRecording checks Clear drops ops but keeps the
// recording flag.
func TestTape_ClearPreservesRecording(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x := tensor.Ones[float32](tensor.Shape{2}, backend)
	_ = x.AddScalar(1)
	require.Equal(t, 1, backend.Tape().NumOps())

	backend.Tape().Clear()
	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording())
}

// TestBackward_NoOpsPanics checks the guard against backward on an empty
// tape.
func TestBackward_NoOpsPanics(t *testing.T) {
	backend := newBackend()
	x := tensor.Ones[float32](tensor.Shape{1}, backend)
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}

// TestBackward_ReLU checks the activation gradient mask.
func TestBackward_ReLU(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{-1, 2, -3, 4}, tensor.Shape{4}, backend)
	y := x.ReLU()
	grads := autodiff.Backward(y, backend)

	grad := grads[x.Raw()]
	require.NotNil(t, grad)
	assert.Equal(t, []float32{0, 1, 0, 1}, grad.AsFloat32())
}
