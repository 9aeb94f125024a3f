package neuron_controllers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultBurstDelay = 50 * time.Millisecond

// BurstRunner is the host side of continuous training: after every burst it
// yields for a delay so readers and Stop get a turn, then re-invokes the
// controller until it is no longer Running.
type BurstRunner struct {
	controller *TrainingController
	delay      time.Duration
	logger     *zap.Logger
}

func NewBurstRunner(controller *TrainingController, delay time.Duration, logger *zap.Logger) *BurstRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BurstRunner{
		controller: controller,
		delay:      delay,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled.
func (r *BurstRunner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.controller.Wake():
		}

		if !r.runWhileRunning(ctx) {
			return nil
		}
	}
}

// runWhileRunning returns false once ctx is cancelled.
func (r *BurstRunner) runWhileRunning(ctx context.Context) bool {
	for {
		running, err := r.controller.RunBurst()
		if err != nil {
			r.logger.Error("training halted", zap.Error(err))
			return true
		}
		if !running {
			return true
		}
		if !sleepContext(ctx, r.delay) {
			return false
		}
	}
}

func sleepContext(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
