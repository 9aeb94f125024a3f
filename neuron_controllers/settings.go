package neuron_controllers

import (
	"encoding/json"
	"math/rand"
	"os"
	"time"

	"neuron_trainer/neuron_datasets"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type TrainingSettings struct {
	LearningRate    float64 `json:"learning_rate"`
	EpochsPerBurst  int     `json:"epochs_per_burst"`
	BurstDelayMs    int     `json:"burst_delay_ms"`
	RecordingStride int     `json:"recording_stride"`
	Seed            int64   `json:"seed"`
	Dataset         string  `json:"dataset"`
	CustomDataset   string  `json:"custom_dataset"`
}

func DefaultTrainingSettings() TrainingSettings {
	return TrainingSettings{
		LearningRate:    DefaultLearningRate,
		EpochsPerBurst:  DefaultEpochsPerBurst,
		BurstDelayMs:    int(DefaultBurstDelay / time.Millisecond),
		RecordingStride: DefaultRecordingStride,
		Dataset:         "OR",
	}
}

// LoadTrainingSettings reads a JSON settings file. Fields missing from the
// file keep their defaults.
func LoadTrainingSettings(filename string) (*TrainingSettings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	settings := DefaultTrainingSettings()
	err = json.Unmarshal(data, &settings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal JSON")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s TrainingSettings) Validate() error {
	if err := validateLearningRate(s.LearningRate); err != nil {
		return err
	}
	if s.EpochsPerBurst <= 0 {
		return errors.Wrapf(ErrInvalidSetting, "epochs_per_burst must be positive, got %d", s.EpochsPerBurst)
	}
	if s.RecordingStride <= 0 {
		return errors.Wrapf(ErrInvalidSetting, "recording_stride must be positive, got %d", s.RecordingStride)
	}
	if s.BurstDelayMs < 0 {
		return errors.Wrapf(ErrInvalidSetting, "burst_delay_ms must not be negative, got %d", s.BurstDelayMs)
	}
	return nil
}

func (s TrainingSettings) BurstDelay() time.Duration {
	return time.Duration(s.BurstDelayMs) * time.Millisecond
}

// ResolveSeed picks a time based seed when none is configured.
func (s TrainingSettings) ResolveSeed() int64 {
	if s.Seed != 0 {
		return s.Seed
	}
	return time.Now().UnixNano()
}

// ResolveDataset prefers the custom dataset file over the preset name. An
// empty result means the controller starts Idle.
func (s TrainingSettings) ResolveDataset() (neuron_datasets.Dataset, error) {
	if s.CustomDataset != "" {
		return neuron_datasets.LoadDatasetFile(s.CustomDataset)
	}
	if s.Dataset == "" {
		return neuron_datasets.Dataset{}, nil
	}
	return neuron_datasets.DatasetFactory(s.Dataset)
}

// NewTrainingControllerFromSettings builds a controller seeded from the
// settings and loads the configured dataset, if any.
func NewTrainingControllerFromSettings(settings TrainingSettings, seed int64, logger *zap.Logger) (*TrainingController, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	controller, err := NewTrainingController(settings.LearningRate, settings.EpochsPerBurst, settings.RecordingStride, rand.New(rand.NewSource(seed)), logger)
	if err != nil {
		return nil, err
	}

	dataset, err := settings.ResolveDataset()
	if err != nil {
		return nil, err
	}
	if !dataset.IsEmpty() {
		if err := controller.LoadDataset(dataset); err != nil {
			return nil, err
		}
	}
	return controller, nil
}
