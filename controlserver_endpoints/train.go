package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"neuron_trainer/neuron_controllers"
	"neuron_trainer/neuron_datasets"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/wcharczuk/go-chart"
)

type trainOptions struct {
	Dataset      string
	Epochs       int
	LearningRate float64
	Seed         int64
	Stride       int
	ChartsDir    string
	All          bool
}

func trainCmd() *cobra.Command {
	var options trainOptions

	cmd := &cobra.Command{
		Use:   "train",
		Short: "train a unit on a preset for a fixed number of epochs and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.All {
				return runTrainingAll(cmd.OutOrStdout(), options)
			}
			return runTraining(cmd.OutOrStdout(), options)
		},
	}

	cmd.Flags().StringVar(&options.Dataset, "dataset", "OR", fmt.Sprintf("preset to train on (%s)", strings.Join(neuron_datasets.PresetNames(), ", ")))
	cmd.Flags().IntVar(&options.Epochs, "epochs", 10000, "number of epochs")
	cmd.Flags().Float64Var(&options.LearningRate, "learning-rate", neuron_controllers.DefaultLearningRate, "learning rate")
	cmd.Flags().Int64Var(&options.Seed, "seed", 0, "random seed, 0 picks one from the clock")
	cmd.Flags().IntVar(&options.Stride, "stride", neuron_controllers.DefaultRecordingStride, "record the history every N epochs")
	cmd.Flags().StringVar(&options.ChartsDir, "charts", "", "directory to write history and activation charts to")
	cmd.Flags().BoolVar(&options.All, "all", false, "train every preset in turn, ignoring --dataset")

	return cmd
}

// runTrainingAll trains a fresh unit on every preset in turn. Charts for each
// preset go to their own subdirectory.
func runTrainingAll(out io.Writer, options trainOptions) error {
	chartsDir := options.ChartsDir
	for _, name := range neuron_datasets.PresetNames() {
		presetOptions := options
		presetOptions.Dataset = name
		if chartsDir != "" {
			presetOptions.ChartsDir = filepath.Join(chartsDir, strings.ToLower(name))
		}
		if err := runTraining(out, presetOptions); err != nil {
			return errors.Wrapf(err, "training %s", name)
		}
	}
	return nil
}

func runTraining(out io.Writer, options trainOptions) error {
	if options.Epochs <= 0 {
		return errors.Wrapf(neuron_controllers.ErrInvalidSetting, "epochs must be positive, got %d", options.Epochs)
	}
	dataset, err := neuron_datasets.DatasetFactory(options.Dataset)
	if err != nil {
		return err
	}
	seed := options.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	controller, err := neuron_controllers.NewTrainingController(
		options.LearningRate,
		neuron_controllers.DefaultEpochsPerBurst,
		options.Stride,
		rand.New(rand.NewSource(seed)),
		nil)
	if err != nil {
		return err
	}
	if err := controller.LoadDataset(dataset); err != nil {
		return err
	}

	separator := strings.Repeat("=", 60)
	fmt.Fprintf(out, "\n%s\nINITIAL PARAMETERS\n%s\n", separator, separator)
	fmt.Fprintf(out, "Dataset: %s (seed %d)\n", dataset.Name(), seed)
	fmt.Fprintf(out, "Initial weights: %v\n", controller.Weights())
	fmt.Fprintf(out, "Initial bias: %v\n", controller.Bias())

	fmt.Fprintf(out, "\nTraining...\n")
	for i := 0; i < options.Epochs; i++ {
		if _, err := controller.StepOnce(); err != nil {
			return err
		}
	}

	history := controller.History()
	finalError, _ := history.LastError()
	fmt.Fprintf(out, "\n%s\nTRAINING RESULTS\n%s\n", separator, separator)
	fmt.Fprintf(out, "Epochs: %d\n", controller.Epoch())
	fmt.Fprintf(out, "Examples per epoch: %d\n", dataset.Len())
	fmt.Fprintf(out, "Total iterations: %d\n", controller.Epoch()*dataset.Len())
	fmt.Fprintf(out, "Final mean error: %.6f\n", finalError)
	fmt.Fprintf(out, "Final weights: %v\n", controller.Weights())
	fmt.Fprintf(out, "Final bias: %v\n", controller.Bias())

	state := controller.State()
	fmt.Fprintf(out, "\n%s\nPREDICTIONS\n%s\n", separator, separator)
	for _, prediction := range state.Predictions {
		fmt.Fprintf(out, "Input: %v, Output: %.4f, Binary output: %d, Target: %v\n",
			prediction.Input, prediction.Output, prediction.Binary, prediction.Target)
	}
	fmt.Fprintf(out, "Accuracy: %.0f%%\n", state.Accuracy)
	if !neuron_datasets.IsLinearlySeparable(dataset.Name()) {
		fmt.Fprintf(out, "\n%s is not linearly separable; a single unit cannot learn it.\n", dataset.Name())
	}

	if options.ChartsDir == "" {
		return nil
	}
	return writeTrainingCharts(out, options.ChartsDir, history, controller.RecordingStride())
}

func writeTrainingCharts(out io.Writer, dir string, history neuron_controllers.History, recordingStride int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create charts directory")
	}

	charts := map[string]chart.Chart{
		"activation.png": activationChart(),
	}
	for _, view := range []string{chartViewError, chartViewLogError, chartViewParameters} {
		graph, err := historyChart(history, recordingStride, view)
		if err != nil {
			// Too few epochs to plot a history
			if errors.Is(err, neuron_controllers.ErrPrecondition) {
				break
			}
			return err
		}
		charts[fmt.Sprintf("history-%s.png", view)] = graph
	}

	for name, graph := range charts {
		filename := filepath.Join(dir, name)
		if err := writeChartFile(filename, graph); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", filename)
	}
	return nil
}

func writeChartFile(filename string, graph chart.Chart) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to render %s", filename)
	}
	return f.Close()
}
