package neuron_controllers

// History keeps three parallel, append-only trajectories. Every weight
// snapshot is an independent copy.
type History struct {
	errors  []float64
	weights [][]float64
	bias    []float64
}

func (h *History) Append(meanError float64, weights []float64, bias float64) {
	h.errors = append(h.errors, meanError)
	h.weights = append(h.weights, copySlice(weights))
	h.bias = append(h.bias, bias)
}

func (h *History) Len() int {
	return len(h.errors)
}

func (h *History) Errors() []float64 {
	return copySlice(h.errors)
}

func (h *History) WeightsSnapshots() [][]float64 {
	snapshots := make([][]float64, len(h.weights))
	for i, w := range h.weights {
		snapshots[i] = copySlice(w)
	}
	return snapshots
}

func (h *History) BiasSnapshots() []float64 {
	return copySlice(h.bias)
}

func (h *History) LastError() (float64, bool) {
	if len(h.errors) == 0 {
		return 0, false
	}
	return h.errors[len(h.errors)-1], true
}

// ErrorReduction is the percentage drop from the first to the last recorded error.
func (h *History) ErrorReduction() float64 {
	if len(h.errors) == 0 || h.errors[0] == 0 {
		return 0
	}
	return (1 - h.errors[len(h.errors)-1]/h.errors[0]) * 100
}

func (h *History) Clone() History {
	return History{
		errors:  h.Errors(),
		weights: h.WeightsSnapshots(),
		bias:    h.BiasSnapshots(),
	}
}

func (h *History) Clear() {
	h.errors = nil
	h.weights = nil
	h.bias = nil
}

func copySlice(input []float64) []float64 {
	copied := make([]float64, len(input))
	copy(copied, input)
	return copied
}
