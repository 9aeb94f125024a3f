package neuron_datasets

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

type datasetFile struct {
	Name     string    `json:"name"`
	Examples []Example `json:"examples"`
}

// LoadDatasetFile reads a custom dataset from a JSON file of the form
// {"name": "...", "examples": [{"input": [..], "target": 1}, ...]}.
func LoadDatasetFile(filename string) (Dataset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Dataset{}, errors.Wrap(err, "failed to read dataset file")
	}
	return ParseDataset(data)
}

func ParseDataset(data []byte) (Dataset, error) {
	var file datasetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return Dataset{}, errors.Wrap(err, "failed to unmarshal dataset")
	}
	if file.Name == "" {
		file.Name = "CUSTOM"
	}
	return NewDataset(file.Name, file.Examples)
}
