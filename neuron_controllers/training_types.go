package neuron_controllers

import "encoding/json"

type Mode int

const (
	Idle Mode = iota
	Stopped
	Running
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "IDLE"
	case Stopped:
		return "STOPPED"
	case Running:
		return "RUNNING"
	}
	return "UNKNOWN"
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

const (
	CommandDataset      = "dataset"
	CommandStep         = "step"
	CommandStart        = "start"
	CommandBurst        = "burst"
	CommandStop         = "stop"
	CommandReset        = "reset"
	CommandLearningRate = "learning_rate"
)

type Prediction struct {
	Input   []float64 `json:"input"`
	Target  float64   `json:"target"`
	Output  float64   `json:"output"`
	Binary  int       `json:"binary"`
	Correct bool      `json:"correct"`
}

// TrainingState is a point-in-time copy of the controller, safe to hand to
// readers. It never reflects a partially applied epoch.
type TrainingState struct {
	Mode            Mode         `json:"mode"`
	Epoch           int          `json:"epoch"`
	LearningRate    float64      `json:"learning_rate"`
	EpochsPerBurst  int          `json:"epochs_per_burst"`
	RecordingStride int          `json:"recording_stride"`
	Dataset         string       `json:"dataset"`
	InputSize       int          `json:"input_size"`
	Weights         []float64    `json:"weights"`
	Bias            float64      `json:"bias"`
	Errors          []float64    `json:"errors"`
	WeightsHistory  [][]float64  `json:"weights_history"`
	BiasHistory     []float64    `json:"bias_history"`
	Predictions     []Prediction `json:"predictions"`
	Accuracy        float64      `json:"accuracy"`
	ErrorReduction  float64      `json:"error_reduction"`
}

type StateMessage struct {
	CommandType  string        `json:"command_type"`
	SessionState TrainingState `json:"session_state"`
}
