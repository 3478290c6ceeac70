package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/spectral/internal/autodiff"
	"github.com/born-ml/spectral/internal/backend/cpu"
	"github.com/born-ml/spectral/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// TestApplySpectralNorm_UnitVectors checks that u and v have unit L2 norm
// immediately after attach, and that the state table is rewired.
func TestApplySpectralNorm_UnitVectors(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(6, 4, backend)

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.Equal(t, "weight", sn.Name())

	s := layer.State()

	// Parameter table: "weight" replaced by "weight_orig".
	_, ok := s.Parameter("weight")
	assert.False(t, ok, "weight should no longer be a parameter")
	orig, ok := s.Parameter("weight_orig")
	require.True(t, ok, "weight_orig parameter missing")

	// Buffer "weight" shares the original tensor's storage at attach time.
	buf, ok := s.Buffer("weight")
	require.True(t, ok)
	assert.Same(t, orig.Tensor().Raw(), buf.Raw())

	// Weight shape [4, 6], dim 0: u has length 4, v has length 6.
	u, ok := s.Buffer("weight_u")
	require.True(t, ok)
	v, ok := s.Buffer("weight_v")
	require.True(t, ok)
	require.Equal(t, tensor.Shape{4}, u.Shape())
	require.Equal(t, tensor.Shape{6}, v.Shape())

	assert.InDelta(t, 1.0, float64(vectorNorm(u.Data())), 1e-5)
	assert.InDelta(t, 1.0, float64(vectorNorm(v.Data())), 1e-5)
}

// TestApplySpectralNorm_Errors checks attach validation: missing parameter
// and double attach.
func TestApplySpectralNorm_Errors(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(3, 3, backend)

	_, err := ApplySpectralNormWith[Backend](layer, SpectralNormConfig{Name: "kernel"})
	assert.Error(t, err)

	_, err = ApplySpectralNorm(layer)
	require.NoError(t, err)

	_, err = ApplySpectralNorm(layer)
	assert.Error(t, err, "second attach on the same parameter must fail")
}

// TestSpectralNorm_ZeroIterationIdempotent checks that repeated k=0 rescales
// yield the same normalized weight.
func TestSpectralNorm_ZeroIterationIdempotent(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(5, 3, backend)

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)

	require.NoError(t, sn.PowerIteration(layer, 0))
	first, _ := layer.State().Buffer("weight")
	firstData := append([]float32(nil), first.Data()...)

	require.NoError(t, sn.PowerIteration(layer, 0))
	second, _ := layer.State().Buffer("weight")

	assert.Equal(t, firstData, second.Data(), "k=0 rescale must be idempotent")
}

// TestSpectralNorm_ConvergesToSVD checks that power iteration drives σ to
// the true largest singular value of a fixed random 8×8 matrix, using an
// exact SVD as the reference.
func TestSpectralNorm_ConvergesToSVD(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(8, 8, backend)

	rng := rand.New(rand.NewSource(42))
	w, _ := layer.State().Parameter("weight")
	wData := w.Tensor().Data()
	ref64 := make([]float64, len(wData))
	for i := range wData {
		x := rng.NormFloat64()
		wData[i] = float32(x)
		ref64[i] = x
	}

	var svd mat.SVD
	require.True(t, svd.Factorize(mat.NewDense(8, 8, ref64), mat.SVDNone))
	want := svd.Values(nil)[0]

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 100))

	sigma, err := sn.Sigma(layer)
	require.NoError(t, err)
	assert.InDelta(t, want, float64(sigma), 1e-3)
}

// TestSpectralNorm_ConvTransposeConvergesToSVD checks the dimension-1 path
// numerically: for a transposed-convolution kernel the output-channel axis
// is permuted to the front before flattening, and σ converges to the
// largest singular value of that flattened matrix.
func TestSpectralNorm_ConvTransposeConvergesToSVD(t *testing.T) {
	backend := autodiff.New(cpu.New())
	deconv := NewConvTranspose2D(2, 5, 3, 2, 1, backend)

	rng := rand.New(rand.NewSource(7))
	w, _ := deconv.State().Parameter("weight")
	kData := w.Tensor().Data() // [in, out, kh, kw] = [2, 5, 3, 3]
	for i := range kData {
		kData[i] = float32(rng.NormFloat64())
	}

	// Reference matrix: output channels first, remaining axes flattened
	// in their original order, giving a 5×18 matrix.
	const inC, outC, kh, kw = 2, 5, 3, 3
	ref64 := make([]float64, outC*inC*kh*kw)
	for oc := 0; oc < outC; oc++ {
		for ic := 0; ic < inC; ic++ {
			for i := 0; i < kh; i++ {
				for j := 0; j < kw; j++ {
					col := (ic*kh+i)*kw + j
					ref64[oc*inC*kh*kw+col] = float64(kData[((ic*outC+oc)*kh+i)*kw+j])
				}
			}
		}
	}

	var svd mat.SVD
	require.True(t, svd.Factorize(mat.NewDense(outC, inC*kh*kw, ref64), mat.SVDNone))
	want := svd.Values(nil)[0]

	sn, err := ApplySpectralNorm(deconv)
	require.NoError(t, err)
	u, ok := deconv.State().Buffer("weight_u")
	require.True(t, ok)
	require.Equal(t, tensor.Shape{outC}, u.Shape())
	require.NoError(t, sn.PowerIteration(deconv, 100))

	sigma, err := sn.Sigma(deconv)
	require.NoError(t, err)
	assert.InDelta(t, want, float64(sigma), 1e-3)
}

// TestSpectralNorm_RoundTrip checks that attach followed by remove restores
// a parameter bit-identical to the original pre-attach tensor.
func TestSpectralNorm_RoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(7, 5, backend)

	w, _ := layer.State().Parameter("weight")
	before := append([]float32(nil), w.Tensor().Data()...)

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 5))

	input := Randn(tensor.Shape{2, 7}, backend)
	layer.Forward(input)

	require.NoError(t, RemoveSpectralNorm(layer, "weight"))

	s := layer.State()
	restored, ok := s.Parameter("weight")
	require.True(t, ok, "weight parameter not restored")
	assert.Equal(t, before, restored.Tensor().Data())

	_, ok = s.Parameter("weight_orig")
	assert.False(t, ok)
	_, ok = s.Buffer("weight_u")
	assert.False(t, ok)
	_, ok = s.Buffer("weight_v")
	assert.False(t, ok)
}

// TestRemoveSpectralNorm_NotFound checks that removal of a never-attached
// name reports ErrSpectralNormNotFound.
func TestRemoveSpectralNorm_NotFound(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(3, 3, backend)

	err := RemoveSpectralNorm(layer, "weight")
	assert.ErrorIs(t, err, ErrSpectralNormNotFound)

	_, err2 := ApplySpectralNorm(layer)
	require.NoError(t, err2)
	err = RemoveSpectralNorm(layer, "bias")
	assert.ErrorIs(t, err, ErrSpectralNormNotFound)
}

// TestSpectralNorm_NegativeIterations checks that a negative refinement
// count is rejected on every layer kind.
func TestSpectralNorm_NegativeIterations(t *testing.T) {
	backend := autodiff.New(cpu.New())

	linear := NewLinear(4, 4, backend)
	snl, err := ApplySpectralNorm(linear)
	require.NoError(t, err)
	assert.ErrorIs(t, snl.PowerIteration(linear, -1), ErrInvalidIterations)

	deconv := NewConvTranspose2D(2, 3, 3, 2, 1, backend)
	snd, err := ApplySpectralNorm(deconv)
	require.NoError(t, err)
	assert.ErrorIs(t, snd.PowerIteration(deconv, -5), ErrInvalidIterations)
}

// TestSpectralNorm_IdentitySigmaOne checks the analytic case: for the 4×4
// identity matrix every singular value is 1, so σ converges to 1 and the
// normalized weight equals the original.
func TestSpectralNorm_IdentitySigmaOne(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(4, 4, backend)

	w, _ := layer.State().Parameter("weight")
	eye := tensor.Eye[float32](4, backend)
	copy(w.Tensor().Data(), eye.Data())

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 50))

	sigma, err := sn.Sigma(layer)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(sigma), 1e-4)

	normalized, _ := layer.State().Buffer("weight")
	for i, want := range eye.Data() {
		assert.InDelta(t, float64(want), float64(normalized.Data()[i]), 1e-4)
	}
}

// TestSpectralNorm_NearZeroWeight checks that normalization floors the
// denominator at eps: a weight whose matrix-vector products have near-zero
// norm must not produce NaN or Inf in u and v.
func TestSpectralNorm_NearZeroWeight(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(4, 4, backend)

	w, _ := layer.State().Parameter("weight")
	for i := range w.Tensor().Data() {
		w.Tensor().Data()[i] = 1e-30
	}

	sn, err := ApplySpectralNormWith[Backend](layer, SpectralNormConfig{Dim: -1, Eps: 1e-12})
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 3))

	s := layer.State()
	u, _ := s.Buffer("weight_u")
	v, _ := s.Buffer("weight_v")
	for _, x := range append(append([]float32(nil), u.Data()...), v.Data()...) {
		assert.False(t, math.IsNaN(float64(x)) || math.IsInf(float64(x), 0), "u/v contaminated: %v", x)
	}
}

// TestSpectralNorm_DimAuto checks default dimension selection: 0 for
// Conv2D (output channels first), 1 for ConvTranspose2D (output channels
// second).
func TestSpectralNorm_DimAuto(t *testing.T) {
	backend := autodiff.New(cpu.New())

	conv := NewConv2D(2, 5, 3, 1, 1, backend)
	_, err := ApplySpectralNorm(conv)
	require.NoError(t, err)
	u, _ := conv.State().Buffer("weight_u")
	assert.Equal(t, tensor.Shape{5}, u.Shape(), "Conv2D: u length must be out_channels")

	deconv := NewConvTranspose2D(2, 5, 3, 2, 1, backend)
	_, err = ApplySpectralNorm(deconv)
	require.NoError(t, err)
	u, _ = deconv.State().Buffer("weight_u")
	assert.Equal(t, tensor.Shape{5}, u.Shape(), "ConvTranspose2D: u length must be out_channels")
}

// TestSpectralNorm_ForwardUsesNormalizedWeight checks that the pre-forward
// hook rewrites the effective weight: the layer output equals the input
// multiplied by W/σ, not by W.
func TestSpectralNorm_ForwardUsesNormalizedWeight(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(3, 2, backend)

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 30))

	sigma, err := sn.Sigma(layer)
	require.NoError(t, err)
	require.Greater(t, sigma, float32(0))

	input, err := tensor.FromSlice([]float32{1, 0, 0}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	output := layer.Forward(input)

	// Output row = first column of (W/σ)ᵗ plus bias (zero).
	orig, _ := layer.State().Parameter("weight_orig")
	w := orig.Tensor() // [2, 3]
	assert.InDelta(t, float64(w.At(0, 0)/sigma), float64(output.At(0, 0)), 1e-5)
	assert.InDelta(t, float64(w.At(1, 0)/sigma), float64(output.At(0, 1)), 1e-5)
}

// TestSpectralNorm_EvalModeDetaches checks the inference path: in eval mode
// the hook serves the recomputed weight detached from gradient tracking,
// preserving whether gradients were required.
func TestSpectralNorm_EvalModeDetaches(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(3, 2, backend)

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 10))

	orig, _ := layer.State().Parameter("weight_orig")
	orig.Tensor().RequireGrad()

	layer.State().SetTraining(false)
	input := Randn(tensor.Shape{2, 3}, backend)
	layer.Forward(input)

	buf, _ := layer.State().Buffer("weight")
	assert.True(t, buf.RequiresGrad(), "requires-grad flag must be preserved through detach")
	assert.Nil(t, buf.Grad(), "detached weight must carry no gradient state")
}

// TestSpectralNorm_EvalModeRecomputes checks that a weight change after
// switching to eval mode still takes effect on the next forward: the hook
// recomputes W/σ every invocation instead of serving a stale weight.
func TestSpectralNorm_EvalModeRecomputes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(2, 2, backend)

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 20))

	layer.State().SetTraining(false)

	// Mutate the original weight in place after entering eval mode, as an
	// optimizer step would.
	orig, _ := layer.State().Parameter("weight_orig")
	copy(orig.Tensor().Data(), []float32{2, -1, 0.5, 3})

	sigma, err := sn.Sigma(layer)
	require.NoError(t, err)

	input, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	output := layer.Forward(input)

	// Identity input and zero bias: output = (newW/σ)ᵗ.
	w := orig.Tensor()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, float64(w.At(j, i)/sigma), float64(output.At(i, j)), 1e-5)
		}
	}
}

// TestSpectralNorm_GradientFlowsToOriginal checks end to end that training
// against a spectrally normalized layer produces a gradient for the
// original (unnormalized) parameter.
func TestSpectralNorm_GradientFlowsToOriginal(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := NewLinear(4, 2, backend)

	sn, err := ApplySpectralNorm(layer)
	require.NoError(t, err)
	require.NoError(t, sn.PowerIteration(layer, 10))

	input := Randn(tensor.Shape{8, 4}, backend)
	target := Randn(tensor.Shape{8, 2}, backend)
	criterion := NewMSELoss[Backend](backend)

	backend.Tape().StartRecording()
	output := layer.Forward(input)
	loss := criterion.Forward(output, target)
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()
	backend.Tape().Clear()

	orig, _ := layer.State().Parameter("weight_orig")
	grad, ok := grads[orig.Tensor().Raw()]
	require.True(t, ok, "original weight received no gradient")
	assert.Equal(t, orig.Tensor().Shape(), grad.Shape())
}
