package neuron_datasets

import (
	"encoding/json"

	"neuron_trainer/neuron_core"

	"github.com/pkg/errors"
)

var ErrEmptyDataset = errors.New("dataset has no examples")

type Example struct {
	Input  []float64 `json:"input"`
	Target float64   `json:"target"`
}

// Dataset is immutable once built: NewDataset copies its examples and every
// accessor returns copies.
type Dataset struct {
	name     string
	examples []Example
}

func NewDataset(name string, examples []Example) (Dataset, error) {
	if len(examples) == 0 {
		return Dataset{}, errors.Wrapf(ErrEmptyDataset, "dataset %q", name)
	}
	width := len(examples[0].Input)
	if width == 0 {
		return Dataset{}, errors.Wrapf(neuron_core.ErrDimensionMismatch, "dataset %q: examples need at least one input", name)
	}

	copied := make([]Example, len(examples))
	for i, example := range examples {
		if len(example.Input) != width {
			return Dataset{}, errors.Wrapf(neuron_core.ErrDimensionMismatch, "dataset %q: example %d has %d inputs, expected %d", name, i, len(example.Input), width)
		}
		for _, x := range example.Input {
			if !neuron_core.IsFinite(x) {
				return Dataset{}, errors.Wrapf(neuron_core.ErrNonFinite, "dataset %q: example %d input", name, i)
			}
		}
		if !neuron_core.IsFinite(example.Target) {
			return Dataset{}, errors.Wrapf(neuron_core.ErrNonFinite, "dataset %q: example %d target", name, i)
		}
		copied[i] = copyExample(example)
	}

	return Dataset{name: name, examples: copied}, nil
}

func (d Dataset) Name() string {
	return d.name
}

func (d Dataset) Len() int {
	return len(d.examples)
}

func (d Dataset) IsEmpty() bool {
	return len(d.examples) == 0
}

func (d Dataset) InputSize() int {
	if len(d.examples) == 0 {
		return 0
	}
	return len(d.examples[0].Input)
}

func (d Dataset) Examples() []Example {
	copied := make([]Example, len(d.examples))
	for i, example := range d.examples {
		copied[i] = copyExample(example)
	}
	return copied
}

// Each visits the examples in order without copying; fn must not retain or
// modify the input slice.
func (d Dataset) Each(fn func(input []float64, target float64) error) error {
	for _, example := range d.examples {
		if err := fn(example.Input, example.Target); err != nil {
			return err
		}
	}
	return nil
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string    `json:"name"`
		Examples []Example `json:"examples"`
	}{d.name, d.examples})
}

func copyExample(example Example) Example {
	input := make([]float64, len(example.Input))
	copy(input, example.Input)
	return Example{Input: input, Target: example.Target}
}
