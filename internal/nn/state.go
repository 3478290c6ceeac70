package nn

import (
	"fmt"
	"sort"

	"github.com/born-ml/spectral/internal/tensor"
)

// ForwardPreHook runs before a layer's forward computation. Hooks are the
// mechanism weight reparameterizations use to rewrite a layer's effective
// weight just before it is read.
type ForwardPreHook[B tensor.Backend] interface {
	// BeforeForward may read and rewrite entries of the layer's State.
	BeforeForward(s *State[B])
}

type hookEntry[B tensor.Backend] struct {
	id   int
	hook ForwardPreHook[B]
}

// State is a layer's table of named parameters, named buffers, and ordered
// forward pre-hooks.
//
// Parameters are trainable; buffers are persistent tensors that are not
// trained directly (running estimates, reparameterization vectors). Names
// are unique within each table, and a lookup by name checks parameters
// before buffers.
//
// Hooks run in registration order. Each registration returns an integer
// handle that removes exactly that hook, so independent reparameterizations
// can attach and detach without coordinating.
type State[B tensor.Backend] struct {
	params   map[string]*Parameter[B]
	buffers  map[string]*tensor.Tensor[float32, B]
	preHooks []hookEntry[B]
	nextHook int
	training bool
}

// NewState creates an empty State in training mode.
func NewState[B tensor.Backend]() *State[B] {
	return &State[B]{
		params:   make(map[string]*Parameter[B]),
		buffers:  make(map[string]*tensor.Tensor[float32, B]),
		training: true,
	}
}

// RegisterParameter adds or replaces a named trainable parameter.
func (s *State[B]) RegisterParameter(name string, p *Parameter[B]) {
	s.params[name] = p
}

// Parameter looks up a trainable parameter by name.
func (s *State[B]) Parameter(name string) (*Parameter[B], bool) {
	p, ok := s.params[name]
	return p, ok
}

// DeleteParameter removes a named parameter. Removing a missing name is a
// no-op.
func (s *State[B]) DeleteParameter(name string) {
	delete(s.params, name)
}

// RegisterBuffer adds or replaces a named buffer.
func (s *State[B]) RegisterBuffer(name string, t *tensor.Tensor[float32, B]) {
	s.buffers[name] = t
}

// Buffer looks up a buffer by name.
func (s *State[B]) Buffer(name string) (*tensor.Tensor[float32, B], bool) {
	t, ok := s.buffers[name]
	return t, ok
}

// DeleteBuffer removes a named buffer. Removing a missing name is a no-op.
func (s *State[B]) DeleteBuffer(name string) {
	delete(s.buffers, name)
}

// Tensor looks up a name in the parameter table first, then the buffer
// table. This is how layers read their effective weight: after a
// reparameterization moves "weight" from parameter to buffer, the same
// lookup transparently returns the rewritten tensor.
func (s *State[B]) Tensor(name string) (*tensor.Tensor[float32, B], bool) {
	if p, ok := s.params[name]; ok {
		return p.Tensor(), true
	}
	if t, ok := s.buffers[name]; ok {
		return t, true
	}
	return nil, false
}

// MustTensor is Tensor but panics when the name is absent. Layers use it for
// entries they registered themselves.
func (s *State[B]) MustTensor(name string) *tensor.Tensor[float32, B] {
	t, ok := s.Tensor(name)
	if !ok {
		panic(fmt.Sprintf("state: no parameter or buffer named %q", name))
	}
	return t
}

// Parameters returns all trainable parameters sorted by name.
func (s *State[B]) Parameters() []*Parameter[B] {
	names := make([]string, 0, len(s.params))
	for name := range s.params {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]*Parameter[B], len(names))
	for i, name := range names {
		params[i] = s.params[name]
	}
	return params
}

// RegisterForwardPreHook appends a hook to the end of the hook list and
// returns its handle.
func (s *State[B]) RegisterForwardPreHook(h ForwardPreHook[B]) int {
	id := s.nextHook
	s.nextHook++
	s.preHooks = append(s.preHooks, hookEntry[B]{id: id, hook: h})
	return id
}

// RemoveForwardPreHook removes the hook with the given handle. Returns false
// if no hook has that handle.
func (s *State[B]) RemoveForwardPreHook(id int) bool {
	for i, e := range s.preHooks {
		if e.id == id {
			s.preHooks = append(s.preHooks[:i], s.preHooks[i+1:]...)
			return true
		}
	}
	return false
}

// RunForwardPreHooks runs all registered hooks in registration order.
// Layers call this at the top of Forward, before reading any weights.
func (s *State[B]) RunForwardPreHooks() {
	for _, e := range s.preHooks {
		e.hook.BeforeForward(s)
	}
}

// SetTraining switches between training and evaluation mode. Hooks may
// behave differently in each mode.
func (s *State[B]) SetTraining(training bool) {
	s.training = training
}

// Training reports whether the state is in training mode. New states start
// in training mode.
func (s *State[B]) Training() bool {
	return s.training
}

// StateDict returns a map of parameter and buffer names to raw tensors.
func (s *State[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(s.params)+len(s.buffers))
	for name, p := range s.params {
		stateDict[name] = p.Tensor().Raw()
	}
	for name, t := range s.buffers {
		stateDict[name] = t.Raw()
	}
	return stateDict
}

// LoadStateDict copies matching entries from a state dictionary into the
// existing parameters and buffers. Every entry present in the state must
// also be present in the dictionary, with matching shape and dtype.
func (s *State[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, p := range s.params {
		if err := loadInto(name, p.Tensor(), stateDict); err != nil {
			return err
		}
	}
	for name, t := range s.buffers {
		if err := loadInto(name, t, stateDict); err != nil {
			return err
		}
	}
	return nil
}

func loadInto[B tensor.Backend](name string, dst *tensor.Tensor[float32, B], stateDict map[string]*tensor.RawTensor) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %q in state dict", name)
	}
	if !raw.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
	}
	copy(dst.Data(), raw.AsFloat32())
	return nil
}
