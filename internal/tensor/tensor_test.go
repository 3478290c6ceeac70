package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/spectral/internal/backend/cpu"
	"github.com/born-ml/spectral/internal/tensor"
)

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, tensor.Float32, x.DType())
	assert.Equal(t, float32(6), x.At(1, 2))

	_, err = tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, backend)
	assert.Error(t, err, "element count mismatch must fail")
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	z := tensor.Zeros[float32](tensor.Shape{2, 2}, backend)
	assert.Equal(t, []float32{0, 0, 0, 0}, z.Data())

	o := tensor.Ones[float32](tensor.Shape{3}, backend)
	assert.Equal(t, []float32{1, 1, 1}, o.Data())

	f := tensor.Full(tensor.Shape{2}, float32(7), backend)
	assert.Equal(t, []float32{7, 7}, f.Data())

	eye := tensor.Eye[float32](3, backend)
	assert.Equal(t, float32(1), eye.At(1, 1))
	assert.Equal(t, float32(0), eye.At(0, 2))
}

func TestRandnLike_InheritsDTypeAndDevice(t *testing.T) {
	backend := cpu.New()

	ref := tensor.Zeros[float32](tensor.Shape{4, 5}, backend)
	v := tensor.RandnLike(6, ref)

	assert.Equal(t, tensor.Shape{6}, v.Shape())
	assert.Equal(t, ref.DType(), v.DType())
	assert.Equal(t, ref.Device(), v.Device())
}

func TestBroadcastShapes(t *testing.T) {
	out, ok, err := tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{3, 4})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tensor.Shape{3, 4}, out)

	_, _, err = tensor.BroadcastShapes(tensor.Shape{2, 3}, tensor.Shape{4, 3})
	assert.Error(t, err)
}

func TestCloneSharesStorageCopyDoesNot(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	clone := x.Clone()
	clone.Data()[0] = 99
	assert.Equal(t, float32(99), x.Data()[0], "Clone shares storage")

	cp := x.Copy()
	cp.Data()[1] = 42
	assert.Equal(t, float32(2), x.Data()[1], "Copy is independent")
}

func TestDetachPreservesStorageDropsGrad(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	x.RequireGrad()
	x.SetGrad(tensor.Zeros[float32](tensor.Shape{2}, backend))

	d := x.Detach()
	assert.Same(t, x.Raw(), d.Raw())
	assert.False(t, d.RequiresGrad())
	assert.Nil(t, d.Grad())
}

func TestItem(t *testing.T) {
	backend := cpu.New()

	s, err := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(5), s.Item())

	m := tensor.Zeros[float32](tensor.Shape{2, 2}, backend)
	assert.Panics(t, func() { m.Item() })
}

func TestForceNonUnique(t *testing.T) {
	backend := cpu.New()

	x := tensor.Zeros[float32](tensor.Shape{2}, backend)
	require.True(t, x.Raw().IsUnique())

	restore := x.Raw().ForceNonUnique()
	assert.False(t, x.Raw().IsUnique())
	restore()
	assert.True(t, x.Raw().IsUnique())
}
