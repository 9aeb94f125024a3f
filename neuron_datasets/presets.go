package neuron_datasets

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownPreset = errors.New("unknown dataset preset")

var booleanInputs = [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}

// Truth tables over booleanInputs, in order.
var presetTargets = map[string][]float64{
	"OR":   {0, 1, 1, 1},
	"AND":  {0, 0, 0, 1},
	"NOR":  {1, 0, 0, 0},
	"NAND": {1, 1, 1, 0},
	"XOR":  {0, 1, 1, 0},
}

var presetOrder = []string{"OR", "AND", "NOR", "NAND", "XOR"}

func PresetNames() []string {
	names := make([]string, len(presetOrder))
	copy(names, presetOrder)
	return names
}

func DatasetFactory(name string) (Dataset, error) {
	parsedName := strings.ToUpper(strings.TrimSpace(name))
	targets, ok := presetTargets[parsedName]
	if !ok {
		return Dataset{}, errors.Wrapf(ErrUnknownPreset, "%q", name)
	}

	examples := make([]Example, len(booleanInputs))
	for i, input := range booleanInputs {
		examples[i] = Example{Input: input, Target: targets[i]}
	}
	return NewDataset(parsedName, examples)
}

// IsLinearlySeparable reports whether a single unit can learn the preset.
func IsLinearlySeparable(name string) bool {
	return strings.ToUpper(strings.TrimSpace(name)) != "XOR"
}
