package cachestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartsEnabled(t *testing.T) {
	b := New()
	assert.False(t, b.Disabled())
}

func TestSetDisabledNotifiesOnRealTransition(t *testing.T) {
	b := New()
	var notified []bool
	b.Subscribe(func(disabled bool) { notified = append(notified, disabled) })

	b.SetDisabled(true)
	assert.True(t, b.Disabled())
	assert.Equal(t, []bool{true}, notified)
}

func TestSameStateWriteDropped(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe(func(bool) { calls++ })

	b.SetDisabled(false) // already enabled==!disabled, no-op
	assert.Equal(t, 0, calls)

	b.SetDisabled(true)
	b.SetDisabled(true) // no-op, already disabled
	assert.Equal(t, 1, calls)
}

func TestObserverPanicDoesNotBlockTransition(t *testing.T) {
	b := New()
	b.Subscribe(func(bool) { panic("boom") })

	assert.NotPanics(t, func() { b.SetDisabled(true) })
	assert.True(t, b.Disabled())
}

func TestMultipleObserversAllNotified(t *testing.T) {
	b := New()
	var a, c bool
	b.Subscribe(func(d bool) { a = d })
	b.Subscribe(func(d bool) { c = d })

	b.SetDisabled(true)
	assert.True(t, a)
	assert.True(t, c)
}
