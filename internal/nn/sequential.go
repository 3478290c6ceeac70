package nn

import (
	"github.com/born-ml/spectral/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
// Each module's output becomes the next module's input.
//
// Example:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(4, 16, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(16, 1, backend),
//	)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index. Panics if the index is out
// of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// SetTraining switches every Layer in the sequence between training and
// evaluation mode. Modules without state are unaffected.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, module := range s.modules {
		if layer, ok := module.(Layer[B]); ok {
			layer.State().SetTraining(training)
		}
	}
}
