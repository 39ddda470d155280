package streambridge

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/samuraizer-go/internal/cancellation"
	"github.com/standardbeagle/samuraizer-go/internal/model"
)

func TestCapacityFromEnvDefault(t *testing.T) {
	os.Unsetenv(CapacityEnvVar)
	assert.Equal(t, DefaultCapacity, CapacityFromEnv())
}

func TestCapacityFromEnvOverride(t *testing.T) {
	os.Setenv(CapacityEnvVar, "12")
	defer os.Unsetenv(CapacityEnvVar)
	assert.Equal(t, 12, CapacityFromEnv())
}

func TestCapacityFromEnvInvalidIgnored(t *testing.T) {
	os.Setenv(CapacityEnvVar, "not-a-number")
	defer os.Unsetenv(CapacityEnvVar)
	assert.Equal(t, DefaultCapacity, CapacityFromEnv())

	os.Setenv(CapacityEnvVar, "-5")
	assert.Equal(t, DefaultCapacity, CapacityFromEnv())
}

func TestBridgeForwardsPayloadsInOrder(t *testing.T) {
	src := make(chan model.Payload, 3)
	src <- model.Payload{Entries: []model.FileEntry{{Filename: "a"}}}
	src <- model.Payload{Entries: []model.FileEntry{{Filename: "b"}}}
	close(src)

	token := cancellation.NewSource()
	b := New(token.Token())
	b.Start(src)

	first, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, "a", first.Entries[0].Filename)

	second, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, "b", second.Entries[0].Filename)

	_, ok = b.Next()
	assert.False(t, ok, "queue must close once producer drains an exhausted source")
}

func TestBridgeStopDrainsAndClosesQueue(t *testing.T) {
	src := make(chan model.Payload)
	token := cancellation.NewSource()
	b := New(token.Token())
	b.Start(src)

	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	_, ok := b.Next()
	assert.False(t, ok)
}

func TestBridgeCancellationUnblocksPendingPut(t *testing.T) {
	src := make(chan model.Payload)
	token := cancellation.NewSource()
	b := New(token.Token())
	b.Start(src)

	// Fill the bounded queue via the running producer so the next send
	// forces it to block inside put()'s poll loop.
	for i := 0; i < cap(b.queue); i++ {
		src <- model.Payload{}
	}

	token.Cancel()
	// Wake the producer's select; it observes cancellation on the next
	// poll tick and exits without accepting this payload.
	select {
	case src <- model.Payload{}:
	case <-time.After(2 * time.Second):
	}

	// The queue still holds the cap(b.queue) payloads buffered before
	// cancellation, so the close is observed on the read after those.
	for i := 0; i <= cap(b.queue); i++ {
		if _, ok := b.Next(); !ok {
			return
		}
	}
	t.Fatal("bridge queue never closed after cancellation")
}
