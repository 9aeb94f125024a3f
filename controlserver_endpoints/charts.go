package main

import (
	"fmt"
	"math"

	"neuron_trainer/neuron_controllers"
	"neuron_trainer/neuron_core"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart"
)

const (
	chartViewError      = "error"
	chartViewLogError   = "log-error"
	chartViewParameters = "parameters"

	activationRange = 6.0
	activationStep  = 0.1
	logErrorFloor   = 1e-12
)

// historyChart plots the sampled history against the epoch each entry was
// taken at.
func historyChart(history neuron_controllers.History, recordingStride int, view string) (chart.Chart, error) {
	if history.Len() < 2 {
		return chart.Chart{}, errors.Wrapf(neuron_controllers.ErrPrecondition, "need at least two history entries to plot, have %d", history.Len())
	}

	epochs := make([]float64, history.Len())
	for i := range epochs {
		epochs[i] = float64(i * recordingStride)
	}

	var series []chart.Series
	var yName string
	switch view {
	case chartViewError:
		yName = "Mean absolute error"
		series = append(series, lineSeries("error", epochs, history.Errors(), 0))
	case chartViewLogError:
		yName = "log10(mean absolute error)"
		logErrors := history.Errors()
		for i, e := range logErrors {
			logErrors[i] = math.Log10(math.Max(e, logErrorFloor))
		}
		series = append(series, lineSeries("log10 error", epochs, logErrors, 0))
	case chartViewParameters:
		yName = "Value"
		series = append(series, lineSeries("bias", epochs, history.BiasSnapshots(), 0))
		snapshots := history.WeightsSnapshots()
		for w := range snapshots[0] {
			weightValues := make([]float64, len(snapshots))
			for i, snapshot := range snapshots {
				weightValues[i] = snapshot[w]
			}
			series = append(series, lineSeries(fmt.Sprintf("w%d", w), epochs, weightValues, w+1))
		}
	default:
		return chart.Chart{}, errors.Wrapf(neuron_controllers.ErrInvalidSetting, "unknown chart view %q", view)
	}

	graph := chart.Chart{
		Title:      "Training history",
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "Epoch",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Name:      yName,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}
	return graph, nil
}

// activationChart plots the sigmoid and its derivative over [-6, 6].
func activationChart() chart.Chart {
	n := int(2*activationRange/activationStep) + 1
	xs := make([]float64, n)
	sigmoid := make([]float64, n)
	derivative := make([]float64, n)
	for i := range xs {
		x := -activationRange + float64(i)*activationStep
		xs[i] = x
		sigmoid[i] = neuron_core.Sigmoid(x)
		derivative[i] = neuron_core.SigmoidDerivativeFromOutput(sigmoid[i])
	}

	graph := chart.Chart{
		Title:      "Sigmoid activation",
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "x",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Name:      "y",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: []chart.Series{
			lineSeries("sigmoid", xs, sigmoid, 0),
			lineSeries("derivative", xs, derivative, 1),
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}
	return graph
}

func lineSeries(name string, xs []float64, ys []float64, colorIndex int) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			Show:        true,
			StrokeColor: chart.GetAlternateColor(colorIndex),
		},
	}
}
