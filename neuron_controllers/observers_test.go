package neuron_controllers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	messages []StateMessage
}

func (o *recordingObserver) Refresh(message StateMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, message)
}

func (o *recordingObserver) commands() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var commands []string
	for _, message := range o.messages {
		commands = append(commands, message.CommandType)
	}
	return commands
}

func TestObserversSeeEveryTransition(t *testing.T) {
	controller := newTestController(t, 0.1, 1)
	observer := &recordingObserver{}
	var funcCalls int
	controller.AddObserver(observer)
	controller.AddObserver(ObserverFunc(func(message StateMessage) {
		funcCalls++
	}))

	loadPreset(t, controller, "OR")
	_, err := controller.StepOnce()
	require.NoError(t, err)
	require.NoError(t, controller.SetLearningRate(0.4))
	require.NoError(t, controller.Start())
	_, err = controller.RunBurst()
	require.NoError(t, err)
	require.NoError(t, controller.Stop())
	controller.Reset()

	expected := []string{CommandDataset, CommandStep, CommandLearningRate, CommandStart, CommandBurst, CommandStop, CommandReset}
	assert.Equal(t, expected, observer.commands())
	assert.Equal(t, len(expected), funcCalls)
}

func TestObserversNeverSeePartialEpochs(t *testing.T) {
	controller := newTestController(t, 0.3, 1)
	observer := &recordingObserver{}
	controller.AddObserver(observer)
	loadPreset(t, controller, "NAND")

	require.NoError(t, controller.Start())
	for i := 0; i < 5; i++ {
		_, err := controller.RunBurst()
		require.NoError(t, err)
	}

	for _, message := range observer.messages {
		state := message.SessionState
		assert.Len(t, state.WeightsHistory, len(state.Errors))
		assert.Len(t, state.BiasHistory, len(state.Errors))
		if message.CommandType == CommandBurst {
			assert.Equal(t, 0, state.Epoch%DefaultEpochsPerBurst)
			require.NotEmpty(t, state.WeightsHistory)
		}
	}
	last := observer.messages[len(observer.messages)-1].SessionState
	assert.Equal(t, controller.Weights(), last.Weights)
	assert.Equal(t, 50, last.Epoch)
}

func TestStateBroadcaster(t *testing.T) {
	broadcaster := NewStateBroadcaster()
	_, ok := broadcaster.Latest()
	assert.False(t, ok)

	first, cancelFirst := broadcaster.Subscribe()
	second, cancelSecond := broadcaster.Subscribe()
	assert.Equal(t, 2, broadcaster.SubscriberCount())

	broadcaster.Refresh(StateMessage{CommandType: CommandStep})
	assert.Equal(t, CommandStep, (<-first).CommandType)
	assert.Equal(t, CommandStep, (<-second).CommandType)

	cancelFirst()
	cancelFirst()
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, broadcaster.SubscriberCount())

	latest, ok := broadcaster.Latest()
	assert.True(t, ok)
	assert.Equal(t, CommandStep, latest.CommandType)
	cancelSecond()
}

func TestStateBroadcasterDropsForSlowSubscribers(t *testing.T) {
	broadcaster := NewStateBroadcaster()
	channel, cancel := broadcaster.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3*subscriberBufferSize; i++ {
			broadcaster.Refresh(StateMessage{CommandType: CommandBurst})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster blocked on a slow subscriber")
	}
	assert.Len(t, channel, subscriberBufferSize)
}

func TestBurstRunner(t *testing.T) {
	controller := newTestController(t, 0.1, 1)
	loadPreset(t, controller, "OR")
	runner := NewBurstRunner(controller, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() {
		finished <- runner.Run(ctx)
	}()

	require.NoError(t, controller.Start())
	assert.Eventually(t, func() bool {
		return controller.Epoch() >= 5*DefaultEpochsPerBurst
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, controller.Stop())
	stoppedAt := controller.Epoch()
	assert.Equal(t, 0, stoppedAt%DefaultEpochsPerBurst)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stoppedAt, controller.Epoch())

	require.NoError(t, controller.Start())
	assert.Eventually(t, func() bool {
		return controller.Epoch() > stoppedAt
	}, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after cancel")
	}
}
