package neuron_controllers

import "time"

// RunRecord summarizes one continuous run, from Start until it was stopped,
// reset or replaced by another dataset.
type RunRecord struct {
	Token          string    `json:"token"`
	Host           string    `json:"host"`
	Seed           int64     `json:"seed"`
	ProgramVersion string    `json:"program_version"`
	Dataset        string    `json:"dataset"`
	InputSize      int       `json:"input_size"`
	LearningRate   float64   `json:"learning_rate"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	StartEpoch     int       `json:"start_epoch"`
	EndEpoch       int       `json:"end_epoch"`
	FinalError     float64   `json:"final_error"`
	FinalWeights   []float64 `json:"final_weights"`
	FinalBias      float64   `json:"final_bias"`
	Accuracy       float64   `json:"accuracy"`
	EndReason      string    `json:"end_reason"`
}

type OpenRun struct {
	Uid          string    `json:"uid"`
	Dataset      string    `json:"dataset"`
	StartTime    time.Time `json:"start_time"`
	StartEpoch   int       `json:"start_epoch"`
	CurrentEpoch int       `json:"current_epoch"`
	LearningRate float64   `json:"learning_rate"`
}

// RunSummary aggregates the stored runs of one dataset.
type RunSummary struct {
	Dataset        string  `json:"dataset"`
	TotalCount     int     `json:"total_count"`
	ConvergedCount int     `json:"converged_count"`
	AvgEpochs      float64 `json:"avg_epochs"`
	AvgFinalError  float64 `json:"avg_final_error"`
	MinFinalError  float64 `json:"min_final_error"`
}
