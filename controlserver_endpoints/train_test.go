package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"neuron_trainer/neuron_controllers"
	"neuron_trainer/neuron_datasets"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTrainingLearnsOR(t *testing.T) {
	var out bytes.Buffer
	err := runTraining(&out, trainOptions{Dataset: "or", Epochs: 1000, LearningRate: 0.5, Seed: 11, Stride: 10})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "INITIAL PARAMETERS")
	assert.Contains(t, output, "Epochs: 1000")
	assert.Contains(t, output, "Total iterations: 4000")
	assert.Contains(t, output, "Accuracy: 100%")
	assert.NotContains(t, output, "not linearly separable")
}

func TestRunTrainingFlagsXOR(t *testing.T) {
	var out bytes.Buffer
	err := runTraining(&out, trainOptions{Dataset: "XOR", Epochs: 100, LearningRate: 0.5, Seed: 11, Stride: 10})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "XOR is not linearly separable")
}

func TestRunTrainingRejectsBadOptions(t *testing.T) {
	var out bytes.Buffer
	err := runTraining(&out, trainOptions{Dataset: "OR", Epochs: 0, LearningRate: 0.1, Stride: 10})
	assert.True(t, errors.Is(err, neuron_controllers.ErrInvalidSetting))

	err = runTraining(&out, trainOptions{Dataset: "IMPLIES", Epochs: 10, LearningRate: 0.1, Stride: 10})
	assert.True(t, errors.Is(err, neuron_datasets.ErrUnknownPreset))

	err = runTraining(&out, trainOptions{Dataset: "OR", Epochs: 10, LearningRate: 0, Stride: 10})
	assert.True(t, errors.Is(err, neuron_controllers.ErrInvalidSetting))
}

func TestRunTrainingWritesCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	var out bytes.Buffer
	err := runTraining(&out, trainOptions{Dataset: "AND", Epochs: 50, LearningRate: 0.5, Seed: 2, Stride: 10, ChartsDir: dir})
	require.NoError(t, err)

	for _, name := range []string{"activation.png", "history-error.png", "history-log-error.png", "history-parameters.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestRunTrainingSkipsHistoryChartsForShortRuns(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	err := runTraining(&out, trainOptions{Dataset: "AND", Epochs: 5, LearningRate: 0.5, Seed: 2, Stride: 10, ChartsDir: dir})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "activation.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "history-error.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunTrainingAllPresets(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	err := runTrainingAll(&out, trainOptions{Epochs: 1000, LearningRate: 0.5, Seed: 11, Stride: 10, ChartsDir: dir})
	require.NoError(t, err)

	output := out.String()
	for _, name := range neuron_datasets.PresetNames() {
		assert.Contains(t, output, "Dataset: "+name+" (seed 11)")
	}
	assert.Equal(t, len(neuron_datasets.PresetNames()), bytes.Count(out.Bytes(), []byte("TRAINING RESULTS")))
	assert.Contains(t, output, "XOR is not linearly separable")

	_, err = os.Stat(filepath.Join(dir, "nand", "history-error.png"))
	assert.NoError(t, err)
}

func TestRunTrainingAllStopsOnError(t *testing.T) {
	var out bytes.Buffer
	err := runTrainingAll(&out, trainOptions{Epochs: 0, LearningRate: 0.5, Stride: 10})
	assert.True(t, errors.Is(err, neuron_controllers.ErrInvalidSetting))
	assert.Empty(t, out.String())
}
