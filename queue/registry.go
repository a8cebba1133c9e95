package queue

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultCapacity is the number of frames a queue can hold unless the
// registry is configured otherwise.
const DefaultCapacity = 64

// A Registry resolves queue identifiers to queues and enforces the
// single-producer, single-consumer ownership rule. Every queue identifier
// names an independent unidirectional channel.
type Registry struct {
	mu       sync.Mutex
	capacity int
	queues   map[string]*namedQueue
}

// NewRegistry creates a registry whose queues hold DefaultCapacity frames.
func NewRegistry() *Registry {
	return &Registry{
		capacity: DefaultCapacity,
		queues:   make(map[string]*namedQueue),
	}
}

// WithCapacity sets the frame capacity used for queues the registry creates
// from now on.
func (r *Registry) WithCapacity(capacity int) *Registry {
	if capacity <= 0 {
		panic(fmt.Sprintf("queue capacity %d is not positive", capacity))
	}

	r.mu.Lock()
	r.capacity = capacity
	r.mu.Unlock()

	return r
}

// Open attaches to the named queue in the given role, creating the queue if
// it does not exist yet. Open fails with ErrQueueInUse if the role is
// already owned, and with ErrQueueUnavailable if the identifier is not a
// valid queue name.
func (r *Registry) Open(id string, role Role) (Queue, error) {
	if !identifierIsValid(id) {
		return nil, fmt.Errorf("%w: bad identifier %q", ErrQueueUnavailable, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[id]
	if !ok {
		q = &namedQueue{
			name:     id,
			capacity: r.capacity,
			frames:   make(chan []byte, r.capacity),
			defunct:  make(chan struct{}),
		}
		r.queues[id] = q
	}

	switch role {
	case RoleProducer:
		if q.producerTaken {
			return nil, fmt.Errorf("%w: %s already has a producer",
				ErrQueueInUse, id)
		}
		q.producerTaken = true
	case RoleConsumer:
		if q.consumerTaken {
			return nil, fmt.Errorf("%w: %s already has a consumer",
				ErrQueueInUse, id)
		}
		q.consumerTaken = true
	}

	return &handle{q: q, reg: r, role: role}, nil
}

// Reset drops the named queue and every frame it still holds. Handles that
// are still attached become unusable. Resetting a queue that does not exist
// is a no-op, so a reset can always run before a session starts.
func (r *Registry) Reset(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[id]
	if !ok {
		return
	}

	close(q.defunct)
	for len(q.frames) > 0 {
		<-q.frames
	}

	delete(r.queues, id)
}

func (r *Registry) release(q *namedQueue, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if role == RoleProducer {
		q.producerTaken = false
	} else {
		q.consumerTaken = false
	}
}

// A Status is a point-in-time snapshot of one queue, for monitoring.
type Status struct {
	ID       string `json:"id"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}

// Statuses snapshots every queue the registry currently holds.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.queues))
	for id, q := range r.queues {
		statuses = append(statuses, Status{
			ID:       id,
			Depth:    len(q.frames),
			Capacity: q.capacity,
		})
	}

	return statuses
}

func identifierIsValid(id string) bool {
	if id == "" {
		return false
	}

	return !strings.ContainsAny(id, " \t\n")
}

var defaultRegistry *Registry
var defaultRegistryOnce sync.Once

// GetDefaultRegistry returns the process-wide registry. Sessions that need
// isolation should create their own registry instead.
func GetDefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})

	return defaultRegistry
}
