package neuron_controllers

import "sync"

// Observer receives a snapshot after every transition. Refresh is called
// while the controller is locked, so it must not call back into it.
type Observer interface {
	Refresh(message StateMessage)
}

type ObserverFunc func(message StateMessage)

func (f ObserverFunc) Refresh(message StateMessage) {
	f(message)
}

const subscriberBufferSize = 10

// StateBroadcaster fans snapshots out to any number of subscribers. A
// subscriber that falls behind loses messages instead of stalling training.
type StateBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]chan StateMessage
	nextID      int
	latest      *StateMessage
}

func NewStateBroadcaster() *StateBroadcaster {
	return &StateBroadcaster{
		subscribers: make(map[int]chan StateMessage),
	}
}

func (b *StateBroadcaster) Refresh(message StateMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = &message
	for _, channel := range b.subscribers {
		select {
		case channel <- message:
		default:
		}
	}
}

func (b *StateBroadcaster) Subscribe() (<-chan StateMessage, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	channel := make(chan StateMessage, subscriberBufferSize)
	b.subscribers[id] = channel

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(channel)
		})
	}
	return channel, cancel
}

func (b *StateBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *StateBroadcaster) Latest() (StateMessage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return StateMessage{}, false
	}
	return *b.latest, true
}
