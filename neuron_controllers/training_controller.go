package neuron_controllers

import (
	"math/rand"
	"sync"

	"neuron_trainer/neuron_core"
	"neuron_trainer/neuron_datasets"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	DefaultLearningRate    = 0.1
	DefaultEpochsPerBurst  = 10
	DefaultRecordingStride = 10

	maxObserverWorkers = 4
	predictionCutoff   = 0.5
)

// TrainingController is the only writer of the unit, the dataset and the
// history. Every transition, and every whole burst, runs under mu.
type TrainingController struct {
	mu sync.Mutex

	localRand *rand.Rand
	unit      *neuron_core.Unit
	dataset   neuron_datasets.Dataset
	history   History

	mode            Mode
	epoch           int
	learningRate    float64
	epochsPerBurst  int
	recordingStride int

	observers []Observer
	wake      chan struct{}
	logger    *zap.Logger
}

func NewTrainingController(learningRate float64, epochsPerBurst int, recordingStride int, localRand *rand.Rand, logger *zap.Logger) (*TrainingController, error) {
	if err := validateLearningRate(learningRate); err != nil {
		return nil, err
	}
	if epochsPerBurst <= 0 {
		return nil, errors.Wrapf(ErrInvalidSetting, "epochs per burst must be positive, got %d", epochsPerBurst)
	}
	if recordingStride <= 0 {
		return nil, errors.Wrapf(ErrInvalidSetting, "recording stride must be positive, got %d", recordingStride)
	}
	if localRand == nil {
		return nil, errors.Wrap(ErrInvalidSetting, "a random source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TrainingController{
		localRand:       localRand,
		mode:            Idle,
		learningRate:    learningRate,
		epochsPerBurst:  epochsPerBurst,
		recordingStride: recordingStride,
		wake:            make(chan struct{}, 1),
		logger:          logger,
	}, nil
}

// AddObserver must be called before the controller is shared between goroutines.
func (c *TrainingController) AddObserver(observer Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, observer)
}

// Wake fires once per successful Start.
func (c *TrainingController) Wake() <-chan struct{} {
	return c.wake
}

func (c *TrainingController) LoadDataset(dataset neuron_datasets.Dataset) error {
	if dataset.IsEmpty() {
		return errors.Wrap(neuron_datasets.ErrEmptyDataset, "cannot load dataset")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dataset = dataset
	c.unit = neuron_core.NewUnit(dataset.InputSize(), c.localRand)
	c.history.Clear()
	c.epoch = 0
	c.mode = Stopped

	c.logger.Info("dataset loaded",
		zap.String("dataset", dataset.Name()),
		zap.Int("examples", dataset.Len()),
		zap.Int("inputs", dataset.InputSize()))
	c.notifyLocked(CommandDataset)
	return nil
}

// StepOnce runs exactly one epoch and returns its mean absolute error.
func (c *TrainingController) StepOnce() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == Running {
		return 0, precondition("cannot step while running")
	}
	if c.dataset.IsEmpty() {
		return 0, precondition("no dataset loaded")
	}

	meanError, err := c.advanceLocked()
	if err != nil {
		return 0, err
	}
	c.mode = Stopped
	c.notifyLocked(CommandStep)
	return meanError, nil
}

func (c *TrainingController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case Idle:
		return precondition("no dataset loaded")
	case Running:
		return precondition("already running")
	}

	c.mode = Running
	select {
	case c.wake <- struct{}{}:
	default:
	}
	c.logger.Info("training started", zap.Int("epoch", c.epoch))
	c.notifyLocked(CommandStart)
	return nil
}

// Stop waits for any burst in flight to finish its epochs, then prevents
// the next one from being scheduled.
func (c *TrainingController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != Running {
		return precondition("not running")
	}
	c.mode = Stopped
	c.logger.Info("training stopped", zap.Int("epoch", c.epoch))
	c.notifyLocked(CommandStop)
	return nil
}

func (c *TrainingController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history.Clear()
	c.epoch = 0
	if c.dataset.IsEmpty() {
		c.unit = nil
		c.mode = Idle
	} else {
		c.unit = neuron_core.NewUnit(c.dataset.InputSize(), c.localRand)
		c.mode = Stopped
	}
	c.logger.Info("training reset", zap.String("mode", c.mode.String()))
	c.notifyLocked(CommandReset)
}

// SetLearningRate takes effect from the next epoch on.
func (c *TrainingController) SetLearningRate(learningRate float64) error {
	if err := validateLearningRate(learningRate); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.learningRate = learningRate
	c.notifyLocked(CommandLearningRate)
	return nil
}

func (c *TrainingController) SetEpochsPerBurst(epochsPerBurst int) error {
	if epochsPerBurst <= 0 {
		return errors.Wrapf(ErrInvalidSetting, "epochs per burst must be positive, got %d", epochsPerBurst)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochsPerBurst = epochsPerBurst
	return nil
}

// RunBurst runs one burst of epochs if the controller is Running and reports
// whether another burst should be scheduled.
func (c *TrainingController) RunBurst() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != Running {
		return false, nil
	}

	for i := 0; i < c.epochsPerBurst; i++ {
		if _, err := c.advanceLocked(); err != nil {
			c.mode = Stopped
			c.logger.Error("burst aborted", zap.Int("epoch", c.epoch), zap.Error(err))
			c.notifyLocked(CommandStop)
			return false, err
		}
	}
	c.notifyLocked(CommandBurst)
	return c.mode == Running, nil
}

// advanceLocked runs one epoch, samples it into the history when the epoch
// index falls on the recording stride, and bumps the counter.
func (c *TrainingController) advanceLocked() (float64, error) {
	epochIndex := c.epoch
	meanError, err := c.runEpochLocked()
	if err != nil {
		return 0, err
	}
	if epochIndex%c.recordingStride == 0 {
		c.history.Append(meanError, c.unit.Weights(), c.unit.Bias())
	}
	c.epoch = epochIndex + 1
	return meanError, nil
}

func (c *TrainingController) runEpochLocked() (float64, error) {
	learningRate := c.learningRate
	backup := neuron_core.NewUnitFromWeights(c.unit.Weights(), c.unit.Bias())

	totalError := 0.0
	err := c.dataset.Each(func(input []float64, target float64) error {
		absError, err := c.unit.TrainStep(input, target, learningRate)
		if err != nil {
			return err
		}
		totalError += absError
		return nil
	})
	if err != nil {
		//Widths are checked when the unit is built, so a mismatch here is a bug
		if errors.Is(err, neuron_core.ErrDimensionMismatch) {
			panic(err)
		}
		c.unit = backup
		return 0, errors.Wrapf(err, "epoch %d", c.epoch)
	}
	return totalError / float64(c.dataset.Len()), nil
}

func (c *TrainingController) notifyLocked(command string) {
	if len(c.observers) == 0 {
		return
	}
	message := StateMessage{
		CommandType:  command,
		SessionState: c.stateLocked(),
	}

	observerPool := pool.New().WithMaxGoroutines(maxObserverWorkers)
	for _, observer := range c.observers {
		observer := observer
		observerPool.Go(func() {
			observer.Refresh(message)
		})
	}
	observerPool.Wait()
}

func (c *TrainingController) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *TrainingController) Epoch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *TrainingController) LearningRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.learningRate
}

func (c *TrainingController) EpochsPerBurst() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochsPerBurst
}

func (c *TrainingController) RecordingStride() int {
	return c.recordingStride
}

// Weights is nil while Idle.
func (c *TrainingController) Weights() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unit == nil {
		return nil
	}
	return c.unit.Weights()
}

func (c *TrainingController) Bias() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unit == nil {
		return 0
	}
	return c.unit.Bias()
}

func (c *TrainingController) Dataset() neuron_datasets.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataset
}

func (c *TrainingController) History() History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Clone()
}

func (c *TrainingController) Predict(input []float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unit == nil {
		return 0, precondition("no dataset loaded")
	}
	return c.unit.Predict(input)
}

func (c *TrainingController) State() TrainingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *TrainingController) stateLocked() TrainingState {
	state := TrainingState{
		Mode:            c.mode,
		Epoch:           c.epoch,
		LearningRate:    c.learningRate,
		EpochsPerBurst:  c.epochsPerBurst,
		RecordingStride: c.recordingStride,
		Dataset:         c.dataset.Name(),
		InputSize:       c.dataset.InputSize(),
		Errors:          c.history.Errors(),
		WeightsHistory:  c.history.WeightsSnapshots(),
		BiasHistory:     c.history.BiasSnapshots(),
		ErrorReduction:  c.history.ErrorReduction(),
	}
	if c.unit == nil {
		return state
	}
	state.Weights = c.unit.Weights()
	state.Bias = c.unit.Bias()

	correct := 0
	for _, example := range c.dataset.Examples() {
		output, err := c.unit.Predict(example.Input)
		if err != nil {
			panic(err)
		}
		binary := 0
		if output >= predictionCutoff {
			binary = 1
		}
		isCorrect := float64(binary) == example.Target
		if isCorrect {
			correct++
		}
		state.Predictions = append(state.Predictions, Prediction{
			Input:   example.Input,
			Target:  example.Target,
			Output:  output,
			Binary:  binary,
			Correct: isCorrect,
		})
	}
	state.Accuracy = float64(correct) / float64(c.dataset.Len()) * 100
	return state
}

func validateLearningRate(learningRate float64) error {
	if !neuron_core.IsFinite(learningRate) || learningRate <= 0 {
		return errors.Wrapf(ErrInvalidSetting, "learning rate must be positive and finite, got %v", learningRate)
	}
	return nil
}
