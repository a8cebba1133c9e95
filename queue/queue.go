// Package queue provides named, bounded, first-in-first-out byte-frame
// queues. A queue is a unidirectional channel between exactly one producer
// and one consumer, resolved by identifier through a Registry.
package queue

import (
	"log"
	"time"

	"github.com/zeroasic/umilink/hookable"
)

// HookPosPush marks when a frame is pushed into a queue.
var HookPosPush = &hookable.HookPos{Name: "Queue Push"}

// HookPosPop marks when a frame is popped from a queue.
var HookPosPop = &hookable.HookPos{Name: "Queue Pop"}

// A Role states which end of a queue a handle drives.
type Role int

// The two ends of a queue.
const (
	RoleProducer Role = iota
	RoleConsumer
)

func (r Role) String() string {
	if r == RoleProducer {
		return "producer"
	}

	return "consumer"
}

// A Queue is one end of a named byte-frame channel. Push is only legal on a
// producer handle and Pop on a consumer handle. A handle must not be driven
// from multiple goroutines without external synchronization.
type Queue interface {
	hookable.Hookable

	Name() string
	Role() Role

	// Push enqueues one frame, blocking while the queue is full. A zero
	// timeout makes the push non-blocking.
	Push(frame []byte, timeout time.Duration) error

	// Pop dequeues one frame, blocking while the queue is empty. A zero
	// timeout makes the pop non-blocking, failing with ErrEmpty instead
	// of ErrTimeout.
	Pop(timeout time.Duration) ([]byte, error)

	// Depth returns the number of frames currently queued.
	Depth() int

	// Capacity returns the maximum number of frames the queue can hold.
	Capacity() int

	// Close releases the handle's end of the queue so that another
	// handle can claim the role. Frames already queued stay queued.
	Close() error
}

// namedQueue is the shared state behind the producer and consumer handles of
// one identifier.
type namedQueue struct {
	name     string
	capacity int

	frames  chan []byte
	defunct chan struct{}

	producerTaken bool
	consumerTaken bool
}

type handle struct {
	hookable.HookableBase

	q      *namedQueue
	reg    *Registry
	role   Role
	closed bool
}

func (h *handle) Name() string {
	return h.q.name
}

func (h *handle) Role() Role {
	return h.role
}

func (h *handle) Push(frame []byte, timeout time.Duration) error {
	if h.role != RoleProducer {
		log.Panicf("push on %s handle of queue %s", h.role, h.q.name)
	}

	if len(frame) == 0 {
		log.Panicf("pushing empty frame into queue %s", h.q.name)
	}

	if h.closed {
		return ErrQueueUnavailable
	}

	select {
	case <-h.q.defunct:
		return ErrQueueUnavailable
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	if timeout == 0 {
		select {
		case h.q.frames <- frame:
		case <-h.q.defunct:
			return ErrQueueUnavailable
		default:
			return ErrTimeout
		}
	} else {
		select {
		case h.q.frames <- frame:
		case <-h.q.defunct:
			return ErrQueueUnavailable
		case <-expired:
			return ErrTimeout
		}
	}

	if h.NumHooks() > 0 {
		h.InvokeHook(hookable.HookCtx{
			Domain: h,
			Pos:    HookPosPush,
			Item:   frame,
		})
	}

	return nil
}

func (h *handle) Pop(timeout time.Duration) ([]byte, error) {
	if h.role != RoleConsumer {
		log.Panicf("pop on %s handle of queue %s", h.role, h.q.name)
	}

	if h.closed {
		return nil, ErrQueueUnavailable
	}

	select {
	case <-h.q.defunct:
		return nil, ErrQueueUnavailable
	default:
	}

	var frame []byte

	if timeout == 0 {
		select {
		case frame = <-h.q.frames:
		case <-h.q.defunct:
			return nil, ErrQueueUnavailable
		default:
			return nil, ErrEmpty
		}
	} else {
		t := time.NewTimer(timeout)
		defer t.Stop()

		select {
		case frame = <-h.q.frames:
		case <-h.q.defunct:
			return nil, ErrQueueUnavailable
		case <-t.C:
			return nil, ErrTimeout
		}
	}

	if h.NumHooks() > 0 {
		h.InvokeHook(hookable.HookCtx{
			Domain: h,
			Pos:    HookPosPop,
			Item:   frame,
		})
	}

	return frame, nil
}

func (h *handle) Depth() int {
	return len(h.q.frames)
}

func (h *handle) Capacity() int {
	return h.q.capacity
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}

	h.closed = true
	h.reg.release(h.q, h.role)

	return nil
}
