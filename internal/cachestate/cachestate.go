// Package cachestate implements the process-wide Cache State Bus: a
// two-state (enabled/disabled) machine with synchronous observer
// notification after each real transition.
package cachestate

import (
	"sync"

	"github.com/standardbeagle/samuraizer-go/internal/debug"
)

// Observer is notified after the bus commits a state transition. Panics
// inside an observer are recovered and logged; they never block or
// prevent the transition.
type Observer func(disabled bool)

// Bus is the process-wide cache enabled/disabled state holder. The zero
// value starts enabled (disabled == false).
type Bus struct {
	mu        sync.Mutex
	disabled  bool
	observers []Observer
}

// New returns a Bus starting in the enabled state.
func New() *Bus {
	return &Bus{}
}

// Disabled reports the current state.
func (b *Bus) Disabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

// Subscribe registers an observer, invoked after future transitions. It
// does not fire for the bus's current state.
func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// SetDisabled transitions the bus. Same-state writes are silently
// dropped; only a real transition commits and notifies observers.
func (b *Bus) SetDisabled(disabled bool) {
	b.mu.Lock()
	if b.disabled == disabled {
		b.mu.Unlock()
		return
	}
	b.disabled = disabled
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.Unlock()

	for _, o := range observers {
		notify(o, disabled)
	}
}

func notify(o Observer, disabled bool) {
	defer func() {
		if r := recover(); r != nil {
			debug.LogCache("cache state observer panicked: %v", r)
		}
	}()
	o(disabled)
}
