// Package txrx implements the host side of the transaction protocol: an
// endpoint that owns a matched pair of queues and issues memory reads and
// writes over them.
package txrx

import (
	"fmt"
	"time"

	"github.com/zeroasic/umilink/queue"
	"github.com/zeroasic/umilink/umi"
)

// DefaultTimeout bounds every blocking operation of an endpoint unless the
// builder overrides it.
const DefaultTimeout = 5 * time.Second

// A TxRx is one endpoint of a point-to-point link. It sends request packets
// on its tx queue and receives response packets on its rx queue.
//
// A TxRx is not safe for concurrent use. At most one read may be in flight
// per source address; responses are matched in FIFO order.
type TxRx struct {
	registry *queue.Registry
	timeout  time.Duration

	tx, rx queue.Queue

	used   bool
	closed bool
}

// A Builder can build endpoints.
type Builder struct {
	registry *queue.Registry
	timeout  time.Duration
	txID     string
	rxID     string
}

// MakeBuilder returns a Builder with the default timeout and the process-wide
// queue registry.
func MakeBuilder() Builder {
	return Builder{timeout: DefaultTimeout}
}

// WithRegistry sets the queue registry the endpoint resolves its queues
// through.
func (b Builder) WithRegistry(reg *queue.Registry) Builder {
	b.registry = reg
	return b
}

// WithTimeout sets the bound on blocking pushes and response waits.
func (b Builder) WithTimeout(timeout time.Duration) Builder {
	b.timeout = timeout
	return b
}

// WithTxQueue sets the identifier of the outbound queue.
func (b Builder) WithTxQueue(id string) Builder {
	b.txID = id
	return b
}

// WithRxQueue sets the identifier of the inbound queue.
func (b Builder) WithRxQueue(id string) Builder {
	b.rxID = id
	return b
}

// Build creates the endpoint. When both queue identifiers are set the
// endpoint binds immediately; otherwise it stays deferred until Bind.
func (b Builder) Build() (*TxRx, error) {
	t := &TxRx{
		registry: b.registry,
		timeout:  b.timeout,
	}

	if t.registry == nil {
		t.registry = queue.GetDefaultRegistry()
	}

	if b.txID == "" && b.rxID == "" {
		return t, nil
	}

	if err := t.Bind(b.txID, b.rxID); err != nil {
		return nil, err
	}

	return t, nil
}

// Open creates an endpoint bound to the two named queues.
func Open(reg *queue.Registry, txID, rxID string) (*TxRx, error) {
	return MakeBuilder().
		WithRegistry(reg).
		WithTxQueue(txID).
		WithRxQueue(rxID).
		Build()
}

// OpenDeferred creates an endpoint that must be bound with Bind before use.
func OpenDeferred(reg *queue.Registry) *TxRx {
	t, _ := MakeBuilder().WithRegistry(reg).Build()
	return t
}

// Bind attaches the endpoint to its two queues. An endpoint may be re-bound
// as long as it has not carried traffic yet; afterwards Bind fails with
// ErrAlreadyBound.
func (t *TxRx) Bind(txID, rxID string) error {
	if t.closed {
		return ErrEndpointClosed
	}

	if t.used {
		return ErrAlreadyBound
	}

	tx, err := t.registry.Open(txID, queue.RoleProducer)
	if err != nil {
		return fmt.Errorf("binding tx queue: %w", err)
	}

	rx, err := t.registry.Open(rxID, queue.RoleConsumer)
	if err != nil {
		_ = tx.Close()
		return fmt.Errorf("binding rx queue: %w", err)
	}

	t.unbind()
	t.tx = tx
	t.rx = rx

	return nil
}

// Close releases both queue handles. Operations after Close fail with
// ErrEndpointClosed.
func (t *TxRx) Close() error {
	if t.closed {
		return nil
	}

	t.closed = true
	t.unbind()

	return nil
}

func (t *TxRx) unbind() {
	if t.tx != nil {
		_ = t.tx.Close()
		t.tx = nil
	}

	if t.rx != nil {
		_ = t.rx.Close()
		t.rx = nil
	}
}

// TxQueue exposes the outbound queue handle, mainly so that tracers and
// monitors can attach to it. It is nil while the endpoint is deferred.
func (t *TxRx) TxQueue() queue.Queue {
	return t.tx
}

// RxQueue exposes the inbound queue handle. It is nil while the endpoint is
// deferred.
func (t *TxRx) RxQueue() queue.Queue {
	return t.rx
}

func (t *TxRx) usable() error {
	if t.closed {
		return ErrEndpointClosed
	}

	if t.tx == nil || t.rx == nil {
		return ErrNotBound
	}

	return nil
}

// Write sends the buffer to the given address. Buffers larger than one
// packet payload are split into packets at increasing addresses, in program
// order. Writes never await a response; posted only selects the opcode the
// peer sees.
//
// A partial failure reports the offset of the packet that failed. Packets
// already sent are not rolled back.
func (t *TxRx) Write(
	addr uint64,
	data []byte,
	srcAddr uint64,
	posted bool,
) error {
	if err := t.usable(); err != nil {
		return err
	}

	if len(data) == 0 {
		return umi.InvalidLengthErr{Length: 0}
	}

	t.used = true

	opcode := umi.OpWrite
	if posted {
		opcode = umi.OpWritePosted
	}

	for offset := 0; offset < len(data); offset += umi.MaxPayloadBytes {
		end := offset + umi.MaxPayloadBytes
		if end > len(data) {
			end = len(data)
		}

		p := umi.MakePacketBuilder().
			WithOpcode(opcode).
			WithAddress(addr + uint64(offset)).
			WithSrcAddr(srcAddr).
			WithEOM(end == len(data)).
			WithPayload(data[offset:end]).
			Build()

		frame, err := p.Encode()
		if err != nil {
			return fmt.Errorf("write at offset 0x%x: %w", offset, err)
		}

		if err := t.tx.Push(frame, t.timeout); err != nil {
			return fmt.Errorf("write at offset 0x%x: %w", offset, err)
		}
	}

	return nil
}

// Read fetches n bytes from the given address, blocking until the peer
// responds or the endpoint timeout expires. srcAddr is the return route the
// peer sends the response to. Transfers larger than one packet payload are
// issued as sequential requests at increasing addresses.
func (t *TxRx) Read(addr uint64, n int, srcAddr uint64) ([]byte, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}

	if n <= 0 {
		return nil, umi.InvalidLengthErr{Length: n}
	}

	t.used = true

	data := make([]byte, 0, n)

	for offset := 0; offset < n; offset += umi.MaxPayloadBytes {
		want := n - offset
		if want > umi.MaxPayloadBytes {
			want = umi.MaxPayloadBytes
		}

		chunk, err := t.readOne(addr+uint64(offset), want, srcAddr)
		if err != nil {
			return nil, fmt.Errorf("read at offset 0x%x: %w", offset, err)
		}

		data = append(data, chunk...)
	}

	return data, nil
}

// readOne issues a single read request and waits for its response. Response
// packets that do not belong to this read, such as the late response of a
// read that already timed out, are discarded.
func (t *TxRx) readOne(addr uint64, n int, srcAddr uint64) ([]byte, error) {
	req := umi.MakePacketBuilder().
		WithOpcode(umi.OpReadRequest).
		WithAddress(addr).
		WithSrcAddr(srcAddr).
		WithLength(n).
		Build()

	frame, err := req.Encode()
	if err != nil {
		return nil, err
	}

	if err := t.tx.Push(frame, t.timeout); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, queue.ErrTimeout
		}

		rspFrame, err := t.rx.Pop(remaining)
		if err != nil {
			return nil, err
		}

		rsp, err := umi.Decode(rspFrame)
		if err != nil {
			return nil, err
		}

		if rsp.Opcode != umi.OpReadResponse || rsp.Address != srcAddr {
			continue
		}

		if rsp.Length != n {
			return nil, ProtocolMismatchErr{
				Reason: "response length",
				Want:   n,
				Got:    rsp.Length,
			}
		}

		return rsp.Payload, nil
	}
}
