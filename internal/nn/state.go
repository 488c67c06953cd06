package nn

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/fpn/internal/tensor"
)

// Errors returned by LoadStateDict.
var (
	ErrMissingKey    = errors.New("missing key in state dict")
	ErrUnexpectedKey = errors.New("unexpected key in state dict")
	ErrShapeMismatch = errors.New("shape mismatch")
)

// NamedParameters returns every parameter of m keyed by its dotted path,
// e.g. "layer1.0.conv1.weight" or "bn1.running_var".
//
// Containers contribute their child names; leaf modules contribute their
// local parameter names.
func NamedParameters[B tensor.Backend](m Parameterized[B]) map[string]*Parameter[B] {
	named := make(map[string]*Parameter[B])
	collect("", m, named)
	return named
}

func collect[B tensor.Backend](prefix string, m Parameterized[B], named map[string]*Parameter[B]) {
	if c, ok := m.(Container[B]); ok {
		for _, child := range c.Children() {
			collect(prefix+child.Name+".", child.Module, named)
		}
		return
	}
	for _, p := range m.Parameters() {
		named[prefix+p.Name()] = p
	}
}

// StateDict returns the raw tensors of every parameter of m keyed by
// dotted path. The tensors are shared, not copied.
func StateDict[B tensor.Backend](m Parameterized[B]) map[string]*tensor.RawTensor {
	named := NamedParameters(m)
	state := make(map[string]*tensor.RawTensor, len(named))
	for name, p := range named {
		state[name] = p.Tensor().Raw()
	}
	return state
}

// LoadStateDict copies tensors from state into m's parameters.
//
// Loading is strict: every parameter must be present with an identical
// shape, and state must not contain keys m does not have. BatchNorm
// "num_batches_tracked" counters are training state and are ignored. On
// error no parameter is modified.
func LoadStateDict[B tensor.Backend](m Parameterized[B], state map[string]*tensor.RawTensor) error {
	named := NamedParameters(m)

	for _, name := range sortedKeys(named) {
		src, ok := state[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingKey, name)
		}
		want := named[name].Tensor().Shape()
		if !src.Shape().Equal(want) {
			return fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, name, src.Shape(), want)
		}
		if src.DType() != tensor.Float32 {
			return fmt.Errorf("%w: %s has dtype %s, want float32", ErrShapeMismatch, name, src.DType())
		}
	}
	for _, name := range sortedKeys(state) {
		if isBatchCounter(name) {
			continue
		}
		if _, ok := named[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnexpectedKey, name)
		}
	}

	for name, p := range named {
		if err := p.Tensor().Raw().CopyFrom(state[name]); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// batchCounterKey is the BatchNorm update counter kept by PyTorch
// checkpoints. Inference never reads it.
const batchCounterKey = "num_batches_tracked"

func isBatchCounter(name string) bool {
	return name == batchCounterKey || strings.HasSuffix(name, "."+batchCounterKey)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
