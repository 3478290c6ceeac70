package nn

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/spectral/internal/tensor"
)

// Spectral normalization stabilizes discriminator training by constraining
// the spectral norm (largest singular value) of each weight matrix to
// approximately 1, as proposed in "Spectral Normalization for Generative
// Adversarial Networks" (Miyato et al., 2018).
//
// Instead of computing an exact SVD, the spectral norm is estimated by
// power iteration: two matrix-vector products per step, with the dominant
// singular vector estimates u and v carried across calls so the estimate
// refines over the course of training rather than restarting.

var (
	// ErrInvalidIterations reports a negative power-iteration count.
	ErrInvalidIterations = errors.New("power iteration count must be non-negative")

	// ErrSpectralNormNotFound reports that no spectral normalization is
	// registered for the requested parameter name.
	ErrSpectralNormNotFound = errors.New("spectral norm not found")
)

// DefaultEps is the norm floor used when normalizing u and v.
const DefaultEps = 1e-12

// SpectralNormConfig configures how spectral normalization attaches to a
// layer's parameter.
type SpectralNormConfig struct {
	// Name of the parameter to normalize. Defaults to "weight".
	Name string

	// Dim is the weight dimension treated as the output dimension; it is
	// permuted to the front before the weight is flattened to a 2D matrix.
	// Negative means auto: dimension 1 for layers whose kernel stores
	// output channels second (ConvTranspose2D), otherwise dimension 0.
	Dim int

	// Eps floors the denominator when normalizing u and v.
	// Defaults to DefaultEps.
	Eps float32
}

// SpectralNorm reparameterizes one named weight of a layer. While attached,
// the layer's State holds:
//
//	<name>_orig  parameter  the learnable, unnormalized weight
//	<name>       buffer     the derived weight W / σ, rewritten per forward
//	<name>_u     buffer     left singular vector estimate, length = height
//	<name>_v     buffer     right singular vector estimate, length = width
//
// The SpectralNorm itself is registered as a forward pre-hook: every
// forward pass rescales the weight by the σ implied by the current u and v
// without refining them. Refinement happens through explicit PowerIteration
// calls, typically once per training step.
type SpectralNorm[B tensor.Backend] struct {
	name   string
	dim    int
	eps    float32
	hookID int
}

// outputChannelsSecond marks layers whose kernel stores output channels in
// dimension 1 instead of dimension 0.
type outputChannelsSecond interface {
	outputDim() int
}

// ApplySpectralNorm attaches spectral normalization to the layer's "weight"
// parameter with default configuration.
func ApplySpectralNorm[B tensor.Backend](layer Layer[B]) (*SpectralNorm[B], error) {
	return ApplySpectralNormWith(layer, SpectralNormConfig{Dim: -1})
}

// ApplySpectralNormWith attaches spectral normalization to a named
// parameter of the layer.
//
// The parameter is moved to "<name>_orig"; a buffer under the public name
// takes its place, initially sharing the original tensor's storage so
// in-place initialization of the original still reflects through it. Fresh
// u and v vectors are drawn from N(0, 1) with the weight's dtype and
// device, normalized to unit length, and registered as buffers. Finally
// the hook is registered so every forward pass rewrites the public name.
//
// Returns an error if the named parameter does not exist, or if spectral
// normalization is already attached to it.
func ApplySpectralNormWith[B tensor.Backend](layer Layer[B], cfg SpectralNormConfig) (*SpectralNorm[B], error) {
	if cfg.Name == "" {
		cfg.Name = "weight"
	}
	if cfg.Eps == 0 {
		cfg.Eps = DefaultEps
	}
	if cfg.Dim < 0 {
		cfg.Dim = 0
		if oc, ok := layer.(outputChannelsSecond); ok {
			cfg.Dim = oc.outputDim()
		}
	}

	s := layer.State()

	p, ok := s.Parameter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("apply spectral norm: layer has no parameter %q", cfg.Name)
	}
	if _, ok := s.Buffer(cfg.Name + "_u"); ok {
		return nil, fmt.Errorf("apply spectral norm: %q already has spectral norm attached", cfg.Name)
	}

	w := p.Tensor()
	if cfg.Dim >= len(w.Shape()) {
		return nil, fmt.Errorf("apply spectral norm: dim %d out of range for weight shape %v", cfg.Dim, w.Shape())
	}

	height := w.Shape()[cfg.Dim]
	width := w.NumElements() / height

	u := tensor.RandnLike(height, w)
	v := tensor.RandnLike(width, w)
	normalizeVector(u.Data(), cfg.Eps)
	normalizeVector(v.Data(), cfg.Eps)

	s.DeleteParameter(cfg.Name)
	s.RegisterParameter(cfg.Name+"_orig", NewParameter(cfg.Name+"_orig", w))
	s.RegisterBuffer(cfg.Name, w)
	s.RegisterBuffer(cfg.Name+"_u", u)
	s.RegisterBuffer(cfg.Name+"_v", v)

	sn := &SpectralNorm[B]{
		name: cfg.Name,
		dim:  cfg.Dim,
		eps:  cfg.Eps,
	}
	sn.hookID = s.RegisterForwardPreHook(sn)
	return sn, nil
}

// RemoveSpectralNorm detaches spectral normalization from a named parameter
// of the layer: the original, pre-normalization tensor is restored as a
// fresh learnable parameter under the public name, the derived and u/v
// buffers are deleted, and the hook is deregistered.
//
// Returns an error wrapping ErrSpectralNormNotFound if no spectral
// normalization is registered for that name.
func RemoveSpectralNorm[B tensor.Backend](layer Layer[B], name string) error {
	s := layer.State()

	for _, e := range s.preHooks {
		sn, ok := e.hook.(*SpectralNorm[B])
		if !ok || sn.name != name {
			continue
		}

		orig, ok := s.Parameter(name + "_orig")
		if !ok {
			return fmt.Errorf("remove spectral norm: %q state is corrupted: missing %s_orig", name, name)
		}

		s.DeleteParameter(name + "_orig")
		s.DeleteBuffer(name)
		s.DeleteBuffer(name + "_u")
		s.DeleteBuffer(name + "_v")
		s.RegisterParameter(name, NewParameter(name, orig.Tensor()))
		s.RemoveForwardPreHook(sn.hookID)
		return nil
	}

	return fmt.Errorf("remove spectral norm: %q: %w", name, ErrSpectralNormNotFound)
}

// Name returns the name of the normalized parameter.
func (sn *SpectralNorm[B]) Name() string { return sn.name }

// BeforeForward rewrites the layer's public weight before each forward
// pass.
//
// The weight is always recomputed as W / σ using the current u and v, with
// zero refinement steps, so changes to the original weight take effect on
// the next forward even in evaluation mode. In evaluation mode the fresh
// weight is additionally detached from gradient tracking (preserving
// whether gradients were originally required) so no autodiff bookkeeping
// is retained during inference-only runs.
func (sn *SpectralNorm[B]) BeforeForward(s *State[B]) {
	w, err := sn.computeWeight(s, 0)
	if err != nil {
		panic(fmt.Sprintf("spectral norm %q: %v", sn.name, err))
	}

	if !s.Training() {
		orig, ok := s.Parameter(sn.name + "_orig")
		if !ok {
			panic(fmt.Sprintf("spectral norm %q: state is corrupted", sn.name))
		}
		w = w.Detach()
		if orig.Tensor().RequiresGrad() {
			w.RequireGrad()
		}
	}
	s.RegisterBuffer(sn.name, w)
}

// PowerIteration runs k refinement steps on the layer's u and v estimates
// and rewrites the public weight with the resulting σ. Call once per
// training step to amortize convergence across the run.
//
// Returns an error wrapping ErrInvalidIterations if k is negative.
func (sn *SpectralNorm[B]) PowerIteration(layer Layer[B], k int) error {
	s := layer.State()
	w, err := sn.computeWeight(s, k)
	if err != nil {
		return err
	}
	s.RegisterBuffer(sn.name, w)
	return nil
}

// Sigma returns the current spectral norm estimate σ = uᵗ·M·v without
// refining u or v.
func (sn *SpectralNorm[B]) Sigma(layer Layer[B]) (float32, error) {
	s := layer.State()
	_, sigma, err := sn.iterate(s, 0)
	return sigma, err
}

// computeWeight runs k power-iteration steps, stores the refined u and v
// back into the carried buffers, and returns W / σ.
func (sn *SpectralNorm[B]) computeWeight(s *State[B], k int) (*tensor.Tensor[float32, B], error) {
	w, sigma, err := sn.iterate(s, k)
	if err != nil {
		return nil, err
	}
	// Recorded on the tape when training, so gradients reach the original
	// weight scaled by 1/σ.
	return w.DivScalar(sigma), nil
}

// iterate performs the numerical core: reshape the original weight to a 2D
// matrix M (chosen output dimension first, remaining dimensions flattened),
// run k alternating power-iteration steps
//
//	v ← normalize(Mᵗ·u, eps)
//	u ← normalize(M·v, eps)
//
// updating the u/v buffers in place, and estimate σ = uᵗ·M·v.
//
// The matrix arithmetic runs with gradient recording paused: u/v refinement
// is carried state, not part of the differentiated computation.
func (sn *SpectralNorm[B]) iterate(s *State[B], k int) (*tensor.Tensor[float32, B], float32, error) {
	if k < 0 {
		return nil, 0, fmt.Errorf("%w: got %d", ErrInvalidIterations, k)
	}

	p, ok := s.Parameter(sn.name + "_orig")
	if !ok {
		return nil, 0, fmt.Errorf("no parameter %s_orig: %w", sn.name, ErrSpectralNormNotFound)
	}
	u, uok := s.Buffer(sn.name + "_u")
	v, vok := s.Buffer(sn.name + "_v")
	if !uok || !vok {
		return nil, 0, fmt.Errorf("missing u/v buffers for %q: %w", sn.name, ErrSpectralNormNotFound)
	}

	w := p.Tensor()
	height := w.Shape()[sn.dim]
	width := w.NumElements() / height

	var sigma float32
	noGrad(w.Backend(), func() {
		wm := w
		if sn.dim != 0 {
			wm = wm.Transpose(frontPermutation(len(w.Shape()), sn.dim)...)
		}
		mat := wm.Reshape(height, width).Data()

		uData := u.Data()
		vData := v.Data()
		for i := 0; i < k; i++ {
			matVecT(vData, mat, uData, height, width)
			normalizeVector(vData, sn.eps)
			matVec(uData, mat, vData, height, width)
			normalizeVector(uData, sn.eps)
		}

		wv := make([]float32, height)
		matVec(wv, mat, vData, height, width)
		sigma = dot(uData, wv)
	})

	return w, sigma, nil
}

// noGrad runs fn with gradient recording paused when the backend supports
// it, and directly otherwise.
func noGrad[B tensor.Backend](backend B, fn func()) {
	if ng, ok := any(backend).(interface{ NoGrad(func()) }); ok {
		ng.NoGrad(fn)
		return
	}
	fn()
}

// frontPermutation returns the axis order that moves dim to the front and
// keeps the remaining axes in their original order.
func frontPermutation(ndim, dim int) []int {
	axes := make([]int, 0, ndim)
	axes = append(axes, dim)
	for i := 0; i < ndim; i++ {
		if i != dim {
			axes = append(axes, i)
		}
	}
	return axes
}

// matVec computes dst = M·x for a row-major (height, width) matrix.
func matVec(dst, mat, x []float32, height, width int) {
	for i := 0; i < height; i++ {
		row := mat[i*width : (i+1)*width]
		var sum float32
		for j, m := range row {
			sum += m * x[j]
		}
		dst[i] = sum
	}
}

// matVecT computes dst = Mᵗ·x for a row-major (height, width) matrix.
func matVecT(dst, mat, x []float32, height, width int) {
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < height; i++ {
		row := mat[i*width : (i+1)*width]
		xi := x[i]
		if xi == 0 {
			continue
		}
		for j, m := range row {
			dst[j] += m * xi
		}
	}
}

// normalizeVector scales data to unit L2 norm, flooring the denominator at
// eps so near-zero vectors never divide by zero.
func normalizeVector(data []float32, eps float32) {
	norm := vectorNorm(data)
	if norm < eps {
		norm = eps
	}
	inv := 1 / norm
	for i := range data {
		data[i] *= inv
	}
}

// vectorNorm returns the L2 norm of data.
func vectorNorm(data []float32) float32 {
	var sum float32
	for _, x := range data {
		sum += x * x
	}
	return math32.Sqrt(sum)
}

// dot returns the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i, x := range a {
		sum += x * b[i]
	}
	return sum
}
