package neuron_core

import (
	"math"
	"math/rand"
)

func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// SigmoidDerivativeFromOutput expects o to already be a Sigmoid output.
func SigmoidDerivativeFromOutput(o float64) float64 {
	return o * (1 - o)
}

func WeightedSum(weights []float64, input []float64, bias float64) float64 {
	sum := 0.0
	for i := range weights {
		sum += weights[i] * input[i]
	}
	return sum + bias
}

func CreateRandomWeightsArray(n int, localRand *rand.Rand) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = localRand.Float64()
	}
	return w
}

func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func copySlice(input []float64) []float64 {
	copied := make([]float64, len(input))
	copy(copied, input)
	return copied
}
