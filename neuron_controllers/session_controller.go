package neuron_controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

type RunStore interface {
	InsertRunRecord(ctx context.Context, record RunRecord) error
}

// SessionController observes the training controller and turns every
// continuous run into a RunRecord. Refresh runs under the controller lock, so
// it only does bookkeeping with the local clock; the NTP correction and the
// store write happen in Run.
type SessionController struct {
	mu        sync.Mutex
	store     RunStore
	ntpServer string
	seed      int64
	logger    *zap.Logger

	openRun   *OpenRun
	lastState TrainingState
	records   []RunRecord
	pending   []RunRecord
	wake      chan struct{}

	now        func() time.Time
	lookupTime func(ntpServer string) (time.Time, error)
}

// NewSessionController accepts a nil store; records are then only kept in memory.
func NewSessionController(store RunStore, ntpServer string, seed int64, logger *zap.Logger) *SessionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionController{
		store:      store,
		ntpServer:  ntpServer,
		seed:       seed,
		logger:     logger,
		wake:       make(chan struct{}, 1),
		now:        time.Now,
		lookupTime: getCurrentTimeFromNTP,
	}
}

func (s *SessionController) Refresh(message StateMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch message.CommandType {
	case CommandStart:
		startTime := s.now()
		s.openRun = &OpenRun{
			Uid:          s.generateToken(startTime, message.SessionState),
			Dataset:      message.SessionState.Dataset,
			StartTime:    startTime,
			StartEpoch:   message.SessionState.Epoch,
			CurrentEpoch: message.SessionState.Epoch,
			LearningRate: message.SessionState.LearningRate,
		}
		s.lastState = message.SessionState
	case CommandBurst, CommandLearningRate:
		if s.openRun != nil {
			s.openRun.CurrentEpoch = message.SessionState.Epoch
			s.openRun.LearningRate = message.SessionState.LearningRate
			s.lastState = message.SessionState
		}
	case CommandStop:
		if s.openRun != nil {
			s.closeRun(message.SessionState, message.CommandType)
		}
	case CommandReset, CommandDataset:
		//The message already shows the fresh unit, so close with the last state seen
		if s.openRun != nil {
			s.closeRun(s.lastState, message.CommandType)
		}
	}
}

func (s *SessionController) closeRun(state TrainingState, reason string) {
	run := s.openRun
	s.openRun = nil

	hostname, err := os.Hostname()
	if err != nil {
		hostname = os.Getenv("HOSTNAME")
	}

	finalError := 0.0
	if len(state.Errors) > 0 {
		finalError = state.Errors[len(state.Errors)-1]
	}

	record := RunRecord{
		Token:          run.Uid,
		Host:           hostname,
		Seed:           s.seed,
		ProgramVersion: runtime.Version(),
		Dataset:        run.Dataset,
		InputSize:      state.InputSize,
		LearningRate:   state.LearningRate,
		StartTime:      run.StartTime,
		EndTime:        s.now(),
		StartEpoch:     run.StartEpoch,
		EndEpoch:       state.Epoch,
		FinalError:     finalError,
		FinalWeights:   state.Weights,
		FinalBias:      state.Bias,
		Accuracy:       state.Accuracy,
		EndReason:      reason,
	}
	s.records = append(s.records, record)

	s.logger.Info("run finished",
		zap.String("token", record.Token),
		zap.String("dataset", record.Dataset),
		zap.Int("epochs", record.EndEpoch-record.StartEpoch),
		zap.Float64("final_error", record.FinalError),
		zap.String("reason", reason))

	if s.store == nil {
		return
	}
	s.pending = append(s.pending, record)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run stores finished runs in the order they were closed. When ctx is
// cancelled it stores whatever is still pending and returns.
func (s *SessionController) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.storePending()
			return nil
		case <-s.wake:
			s.storePending()
		}
	}
}

func (s *SessionController) storePending() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	offset := s.clockOffset()
	for _, record := range batch {
		record.StartTime = record.StartTime.Add(offset)
		record.EndTime = record.EndTime.Add(offset)

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := s.store.InsertRunRecord(ctx, record)
		cancel()
		if err != nil {
			s.logger.Error("failed to store run", zap.String("token", record.Token), zap.Error(err))
		}
	}
}

func (s *SessionController) OpenRuns() []OpenRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openRun == nil {
		return []OpenRun{}
	}
	return []OpenRun{*s.openRun}
}

// Records lists the runs finished by this process, oldest first. Their
// timestamps come from the local clock.
func (s *SessionController) Records() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]RunRecord, len(s.records))
	copy(records, s.records)
	return records
}

func (s *SessionController) HasStore() bool {
	return s.store != nil
}

// clockOffset is how far the local clock lags the NTP server. It is zero when
// no server is configured or the server cannot be reached.
func (s *SessionController) clockOffset() time.Duration {
	if s.ntpServer == "" {
		return 0
	}
	current, err := s.lookupTime(s.ntpServer)
	if err != nil {
		s.logger.Warn("ntp unavailable, using local clock", zap.Error(err))
		return 0
	}
	return current.Sub(s.now())
}

func getCurrentTimeFromNTP(ntpServer string) (time.Time, error) {
	current, err := ntp.Time(ntpServer)
	if err != nil {
		return current, errors.Wrapf(err, "failed to get time from NTP server %s", ntpServer)
	}
	return current, nil
}

func (s *SessionController) generateToken(startTime time.Time, state TrainingState) string {
	idStamp := fmt.Sprintf("%s%d%v%d%s", state.Dataset, state.InputSize, state.LearningRate, s.seed, startTime)
	h := sha256.New()
	h.Write([]byte(idStamp))
	return hex.EncodeToString(h.Sum(nil))
}
