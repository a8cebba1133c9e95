package memdev

import (
	"fmt"
	"time"

	"github.com/zeroasic/umilink/queue"
)

// A Builder can build memory devices.
type Builder struct {
	name         string
	topology     string
	registry     *queue.Registry
	rxID         string
	txID         string
	pollInterval time.Duration
	pushTimeout  time.Duration
}

// MakeBuilder returns a Builder with default configurations.
func MakeBuilder() Builder {
	return Builder{
		name:         "MemDev",
		topology:     "2d",
		pollInterval: 10 * time.Millisecond,
		pushTimeout:  time.Second,
	}
}

// WithName sets the name of the device.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithTopology sets the link topology, "2d" or "3d".
func (b Builder) WithTopology(topology string) Builder {
	b.topology = topology
	return b
}

// WithRegistry sets the queue registry the device resolves its queues
// through.
func (b Builder) WithRegistry(reg *queue.Registry) Builder {
	b.registry = reg
	return b
}

// WithRxQueue sets the identifier of the queue the device receives requests
// on.
func (b Builder) WithRxQueue(id string) Builder {
	b.rxID = id
	return b
}

// WithTxQueue sets the identifier of the queue the device sends responses
// on.
func (b Builder) WithTxQueue(id string) Builder {
	b.txID = id
	return b
}

// WithPollInterval sets how long the service loop waits for a request
// before checking for a stop.
func (b Builder) WithPollInterval(d time.Duration) Builder {
	b.pollInterval = d
	return b
}

// Build creates the device attached to its two queues. The device does not
// serve traffic until Start is called.
func (b Builder) Build() (*Comp, error) {
	if b.topology != "2d" && b.topology != "3d" {
		return nil, fmt.Errorf("invalid topology %q", b.topology)
	}

	reg := b.registry
	if reg == nil {
		reg = queue.GetDefaultRegistry()
	}

	rx, err := reg.Open(b.rxID, queue.RoleConsumer)
	if err != nil {
		return nil, fmt.Errorf("attaching rx queue: %w", err)
	}

	tx, err := reg.Open(b.txID, queue.RoleProducer)
	if err != nil {
		_ = rx.Close()
		return nil, fmt.Errorf("attaching tx queue: %w", err)
	}

	return &Comp{
		name:         b.name,
		topology:     b.topology,
		storage:      NewStorage(),
		rx:           rx,
		tx:           tx,
		pollInterval: b.pollInterval,
		pushTimeout:  b.pushTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}
