package neuron_core

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Unit is a single sigmoid neuron. It exclusively owns its weights; every
// accessor hands out copies.
type Unit struct {
	weights []float64
	bias    float64
}

func NewUnit(nInputs int, localRand *rand.Rand) *Unit {
	weights := CreateRandomWeightsArray(nInputs, localRand)
	return &Unit{
		weights: weights,
		bias:    localRand.Float64(),
	}
}

func NewUnitFromWeights(weights []float64, bias float64) *Unit {
	return &Unit{
		weights: copySlice(weights),
		bias:    bias,
	}
}

func (u *Unit) Size() int {
	return len(u.weights)
}

func (u *Unit) Weights() []float64 {
	return copySlice(u.weights)
}

func (u *Unit) Bias() float64 {
	return u.bias
}

func (u *Unit) Predict(input []float64) (float64, error) {
	if len(input) != len(u.weights) {
		return 0, dimensionMismatch(len(input), len(u.weights))
	}
	return Sigmoid(WeightedSum(u.weights, input, u.bias)), nil
}

// TrainStep applies one delta-rule update for a single example and returns
// the absolute error measured before the update.
func (u *Unit) TrainStep(input []float64, target float64, learningRate float64) (float64, error) {
	output, err := u.Predict(input)
	if err != nil {
		return 0, err
	}

	outputError := target - output
	gradientFactor := outputError * SigmoidDerivativeFromOutput(output)

	//Compute everything first so a bad update leaves the unit untouched
	newWeights := make([]float64, len(u.weights))
	for i := range u.weights {
		newWeights[i] = u.weights[i] + learningRate*gradientFactor*input[i]
		if !IsFinite(newWeights[i]) {
			return 0, errors.Wrapf(ErrNonFinite, "weight %d", i)
		}
	}
	newBias := u.bias + learningRate*gradientFactor
	if !IsFinite(newBias) {
		return 0, errors.Wrap(ErrNonFinite, "bias")
	}

	copy(u.weights, newWeights)
	u.bias = newBias
	return math.Abs(outputError), nil
}
