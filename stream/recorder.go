package stream

import "sync"

// ActionConsumer receives recorded actions.
type ActionConsumer interface {
	ConsumeAction(action Action)
}

// EventRecorder fans recorded actions out to its consumers.
type EventRecorder struct {
	mu        sync.RWMutex
	consumers []ActionConsumer
}

// NewEventRecorder creates an EventRecorder without consumers.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{
		consumers: make([]ActionConsumer, 0),
	}
}

// Record delivers the action to every consumer in registration order.
func (r *EventRecorder) Record(action Action) {
	r.mu.RLock()
	consumers := make([]ActionConsumer, len(r.consumers))
	copy(consumers, r.consumers)
	r.mu.RUnlock()

	for _, c := range consumers {
		c.ConsumeAction(action)
	}
}

// AddConsumer registers a consumer. Adding the same consumer twice is a no-op.
func (r *EventRecorder) AddConsumer(c ActionConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.consumers {
		if existing == c {
			return
		}
	}
	r.consumers = append(r.consumers, c)
}

// RemoveConsumer unregisters a consumer.
func (r *EventRecorder) RemoveConsumer(c ActionConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.consumers {
		if existing == c {
			r.consumers = append(r.consumers[:i], r.consumers[i+1:]...)
			return
		}
	}
}
