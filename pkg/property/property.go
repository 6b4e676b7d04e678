// Package property provides observable values with change listeners.
package property

import "sync"

// Listener is notified with the previous and the new value.
type Listener[T any] func(old, new T)

// Property holds a value and notifies listeners when it changes.
type Property[T comparable] struct {
	mu        sync.RWMutex
	value     T
	nextID    int
	listeners map[int]Listener[T]
}

// New creates a Property with an initial value.
func New[T comparable](value T) *Property[T] {
	return &Property[T]{
		value:     value,
		listeners: make(map[int]Listener[T]),
	}
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores the value. Listeners run on the calling goroutine, outside the
// lock, and only when the value changed.
func (p *Property[T]) Set(value T) {
	p.mu.Lock()
	old := p.value
	if old == value {
		p.mu.Unlock()
		return
	}
	p.value = value
	listeners := make([]Listener[T], 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if l, ok := p.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(old, value)
	}
}

// AddListener registers a listener and returns a function removing it.
func (p *Property[T]) AddListener(l Listener[T]) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.listeners, id)
		})
	}
}

// Listeners returns the number of registered listeners.
func (p *Property[T]) Listeners() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.listeners)
}
