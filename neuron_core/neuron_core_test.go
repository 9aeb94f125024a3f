package neuron_core

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigmoid(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid(0))

	prev := Sigmoid(-30)
	for x := -29.5; x <= 30; x += 0.5 {
		y := Sigmoid(x)
		assert.True(t, y > prev, "sigmoid should be strictly increasing at %v", x)
		prev = y
	}

	for _, x := range []float64{-30, -5, -1e-3, 1e-3, 5, 30} {
		y := Sigmoid(x)
		assert.True(t, y > 0 && y < 1, "sigmoid(%v) = %v out of (0,1)", x, y)
	}
}

func TestSigmoidSaturates(t *testing.T) {
	assert.Equal(t, 0.0, Sigmoid(-1000))
	assert.Equal(t, 1.0, Sigmoid(1000))
}

func TestSigmoidDerivativeFromOutput(t *testing.T) {
	assert.Equal(t, 0.25, SigmoidDerivativeFromOutput(Sigmoid(0)))
	assert.Equal(t, 0.0, SigmoidDerivativeFromOutput(1))
	assert.InDelta(t, 0.1966119, SigmoidDerivativeFromOutput(Sigmoid(1)), 1e-6)
}

func TestNewUnitRandomRange(t *testing.T) {
	unit := NewUnit(5, rand.New(rand.NewSource(42)))
	require.Equal(t, 5, unit.Size())
	for _, w := range unit.Weights() {
		assert.True(t, w >= 0 && w < 1)
	}
	assert.True(t, unit.Bias() >= 0 && unit.Bias() < 1)
}

func TestNewUnitSeeded(t *testing.T) {
	a := NewUnit(3, rand.New(rand.NewSource(7)))
	b := NewUnit(3, rand.New(rand.NewSource(7)))
	assert.Equal(t, a.Weights(), b.Weights())
	assert.Equal(t, a.Bias(), b.Bias())
}

func TestPredictZeroUnit(t *testing.T) {
	unit := NewUnitFromWeights([]float64{0, 0}, 0)
	for _, input := range [][]float64{{0, 0}, {1, 0}, {-3, 12.5}, {1e6, -1e6}} {
		out, err := unit.Predict(input)
		require.NoError(t, err)
		assert.Equal(t, 0.5, out)
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	unit := NewUnitFromWeights([]float64{0.3, 0.7}, 0.1)

	_, err := unit.Predict([]float64{1})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = unit.TrainStep([]float64{1, 1, 1}, 1, 0.5)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	assert.Equal(t, []float64{0.3, 0.7}, unit.Weights())
	assert.Equal(t, 0.1, unit.Bias())
}

func TestTrainStepDeltaRule(t *testing.T) {
	unit := NewUnitFromWeights([]float64{0, 0}, 0)

	absErr, err := unit.TrainStep([]float64{1, 0}, 1, 0.5)
	require.NoError(t, err)

	// output 0.5, error 0.5, gradient factor 0.5*0.25
	assert.Equal(t, 0.5, absErr)
	assert.Equal(t, []float64{0.0625, 0}, unit.Weights())
	assert.Equal(t, 0.0625, unit.Bias())
}

func TestTrainStepMovesTowardTarget(t *testing.T) {
	unit := NewUnit(2, rand.New(rand.NewSource(1)))
	input := []float64{1, 1}

	before, err := unit.Predict(input)
	require.NoError(t, err)
	_, err = unit.TrainStep(input, 0, 0.5)
	require.NoError(t, err)
	after, err := unit.Predict(input)
	require.NoError(t, err)

	assert.True(t, after < before)
}

func TestTrainStepRejectsNonFinite(t *testing.T) {
	unit := NewUnitFromWeights([]float64{0, 0}, 0)

	_, err := unit.TrainStep([]float64{1, 1}, 1, math.Inf(1))
	assert.True(t, errors.Is(err, ErrNonFinite))
	assert.Equal(t, []float64{0, 0}, unit.Weights())
	assert.Equal(t, 0.0, unit.Bias())
}

func TestWeightsAreCopies(t *testing.T) {
	source := []float64{0.2, 0.4}
	unit := NewUnitFromWeights(source, 0)
	source[0] = 9

	weights := unit.Weights()
	weights[1] = 9

	assert.Equal(t, []float64{0.2, 0.4}, unit.Weights())
}
