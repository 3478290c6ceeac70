package autodiff

import (
	"github.com/born-ml/spectral/internal/autodiff/ops"
	"github.com/born-ml/spectral/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode differentiation.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 64)}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether the tape is currently recording.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends an operation if the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// Clear drops all recorded operations. Recording state is preserved.
func (t *GradientTape) Clear() { t.operations = t.operations[:0] }

// Backward walks the tape in reverse, propagating gradients by the chain
// rule and accumulating them when a tensor feeds multiple operations.
// Returns a map from input RawTensor to its gradient.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	// Recording must stay off while gradient arithmetic runs.
	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		g, ok := grads[op.Output()]
		if !ok {
			continue // output did not contribute to the loss
		}

		inputGrads := op.Backward(g, backend)
		for j, input := range op.Inputs() {
			ig := inputGrads[j]
			if ig == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				// Clone blocks the in-place fast path so aliased
				// gradients are never corrupted.
				grads[input] = backend.Add(existing.Clone(), ig)
			} else {
				grads[input] = ig
			}
		}
	}
	return grads
}
