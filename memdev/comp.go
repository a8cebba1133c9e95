package memdev

import (
	"errors"
	"log"
	"time"

	"github.com/zeroasic/umilink/queue"
	"github.com/zeroasic/umilink/umi"
)

// A Comp is a memory device behind a queue pair. It pops request packets
// from its rx queue, applies them to its storage, and pushes response
// packets for non-posted reads onto its tx queue, routed to the request's
// source address.
type Comp struct {
	name     string
	topology string
	storage  *Storage

	rx queue.Queue
	tx queue.Queue

	pollInterval time.Duration
	pushTimeout  time.Duration

	stop chan struct{}
	done chan struct{}
}

// Name returns the name of the device.
func (c *Comp) Name() string {
	return c.name
}

// Topology returns the link topology the device was built for, "2d" or "3d".
func (c *Comp) Topology() string {
	return c.topology
}

// Start launches the device's service loop. The loop runs until Stop is
// called.
func (c *Comp) Start() {
	go c.serve()
}

// Stop terminates the service loop and waits for it to drain.
func (c *Comp) Stop() {
	close(c.stop)
	<-c.done
}

func (c *Comp) serve() {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		frame, err := c.rx.Pop(c.pollInterval)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) {
				continue
			}

			log.Printf("%s: rx queue failed: %v, stopping", c.name, err)

			return
		}

		c.handleFrame(frame)
	}
}

func (c *Comp) handleFrame(frame []byte) {
	p, err := umi.Decode(frame)
	if err != nil {
		log.Printf("%s: dropping frame: %v", c.name, err)
		return
	}

	switch p.Opcode {
	case umi.OpWrite, umi.OpWritePosted:
		c.storage.Write(p.Address, p.Payload)
	case umi.OpReadRequest:
		c.respond(p)
	default:
		log.Printf("%s: dropping unexpected %s packet", c.name, p.Opcode)
	}
}

func (c *Comp) respond(req *umi.Packet) {
	rsp := umi.MakePacketBuilder().
		WithOpcode(umi.OpReadResponse).
		WithAddress(req.SrcAddr).
		WithSrcAddr(req.Address).
		WithPayload(c.storage.Read(req.Address, uint64(req.Length))).
		Build()

	frame, err := rsp.Encode()
	if err != nil {
		log.Printf("%s: cannot encode response: %v", c.name, err)
		return
	}

	if err := c.tx.Push(frame, c.pushTimeout); err != nil {
		log.Printf("%s: dropping response for 0x%x: %v",
			c.name, req.Address, err)
	}
}
