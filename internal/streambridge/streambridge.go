// Package streambridge exposes the blocking Chunk Pipeline to a cooperative
// consumer: a bounded queue buffers payloads produced by a worker goroutine,
// with cancellation observed within a bounded poll interval even while the
// consumer isn't pulling.
package streambridge

import (
	"os"
	"strconv"
	"time"

	"github.com/standardbeagle/samuraizer-go/internal/cancellation"
	"github.com/standardbeagle/samuraizer-go/internal/model"
)

const (
	// DefaultCapacity is the bridge queue's capacity when the environment
	// override is absent or invalid.
	DefaultCapacity = 256

	// CapacityEnvVar overrides the bridge queue capacity.
	CapacityEnvVar = "SAMURAIZER_ASYNC_STREAM_CHUNK"

	// pollInterval bounds how long a blocked producer waits before
	// re-checking cancellation, so cancellation is observed within about
	// 100ms.
	pollInterval = 100 * time.Millisecond
)

// CapacityFromEnv resolves the bridge queue capacity from CapacityEnvVar,
// falling back to DefaultCapacity when the variable is unset or invalid.
func CapacityFromEnv() int {
	v := os.Getenv(CapacityEnvVar)
	if v == "" {
		return DefaultCapacity
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DefaultCapacity
	}
	return n
}

// Bridge buffers payloads from a blocking producer channel into a bounded
// queue for a cooperative consumer to pull from via Next. A closed queue
// (Next returning ok=false) is the Go-idiomatic equivalent of the sentinel
// end-of-stream value described by the bridge's design.
type Bridge struct {
	queue chan model.Payload
	stop  chan struct{}
	token cancellation.Token
}

// New constructs a Bridge with capacity resolved from CapacityFromEnv.
func New(token cancellation.Token) *Bridge {
	return &Bridge{
		queue: make(chan model.Payload, CapacityFromEnv()),
		stop:  make(chan struct{}),
		token: token,
	}
}

// Start launches the producer goroutine, copying src into the bounded
// queue until src closes, cancellation is observed, or Stop is called.
func (b *Bridge) Start(src <-chan model.Payload) {
	go b.produce(src)
}

func (b *Bridge) produce(src <-chan model.Payload) {
	defer close(b.queue)
	for {
		select {
		case payload, ok := <-src:
			if !ok {
				return
			}
			if !b.put(payload) {
				return
			}
		case <-b.stop:
			return
		}
	}
}

// put blocks the producer until the queue accepts payload, Stop is called,
// or cancellation is observed at a pollInterval cadence.
func (b *Bridge) put(payload model.Payload) bool {
	for {
		select {
		case b.queue <- payload:
			return true
		case <-b.stop:
			return false
		case <-time.After(pollInterval):
			if b.token.IsCancellationRequested() {
				return false
			}
		}
	}
}

// Next blocks until a payload is available, the stream has ended, or the
// bridge was stopped. ok is false once the queue is drained and closed.
func (b *Bridge) Next() (model.Payload, bool) {
	p, ok := <-b.queue
	return p, ok
}

// Stop halts the producer and drains any buffered payloads so the producer
// goroutine can exit even if nothing else reads from the bridge.
func (b *Bridge) Stop() {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	for range b.queue {
	}
}
