// Package umi defines the memory-transaction packets that travel between the
// host and a device, and their wire encoding.
package umi

import (
	"encoding/binary"

	"github.com/rs/xid"
)

// An Opcode identifies the kind of transaction a packet carries.
type Opcode uint8

// Opcodes of the transactions that the protocol supports.
const (
	OpWrite Opcode = iota
	OpWritePosted
	OpReadRequest
	OpReadResponse
)

func (o Opcode) String() string {
	switch o {
	case OpWrite:
		return "Write"
	case OpWritePosted:
		return "WritePosted"
	case OpReadRequest:
		return "ReadRequest"
	case OpReadResponse:
		return "ReadResponse"
	}

	return "Unknown"
}

// IsValid tells if the opcode is one that the protocol defines.
func (o Opcode) IsValid() bool {
	return o <= OpReadResponse
}

const (
	// HeaderBytes is the size of the fixed packet header on the wire.
	HeaderBytes = 20

	// MaxPayloadBytes is the largest payload a single packet can carry. A
	// transfer larger than this is split into multiple packets at
	// increasing addresses.
	MaxPayloadBytes = 32

	flagEOM = 1 << 0
)

// A Packet is one memory transaction as it appears on a queue. The ID is
// local bookkeeping for tracing and is not encoded on the wire.
//
// Length is the number of bytes the transaction touches. For data-bearing
// opcodes it must equal len(Payload); a read request carries no payload and
// Length states how many bytes the peer should return.
type Packet struct {
	ID      string
	Opcode  Opcode
	Address uint64
	SrcAddr uint64
	EOM     bool
	Length  int
	Payload []byte
}

// Encode serializes the packet into its wire representation. All multi-byte
// fields are little-endian.
func (p *Packet) Encode() ([]byte, error) {
	if p.Opcode == OpReadRequest && len(p.Payload) != 0 {
		return nil, MalformedPacketErr{
			Reason: "read request carries payload",
			Got:    len(p.Payload),
		}
	}

	if p.Opcode != OpReadRequest && p.Length != len(p.Payload) {
		return nil, MalformedPacketErr{
			Reason: "length does not match payload size",
			Got:    len(p.Payload),
		}
	}

	if err := validateLength(p.Length); err != nil {
		return nil, err
	}

	buf := make([]byte, HeaderBytes+len(p.Payload))
	buf[0] = byte(p.Opcode)
	if p.EOM {
		buf[1] |= flagEOM
	}
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.Length))
	binary.LittleEndian.PutUint64(buf[4:12], p.Address)
	binary.LittleEndian.PutUint64(buf[12:20], p.SrcAddr)
	copy(buf[HeaderBytes:], p.Payload)

	return buf, nil
}

// Decode parses one frame back into a Packet. The frame must contain exactly
// one packet: a header followed by the number of payload bytes the header
// declares, or the bare header for a read request.
func Decode(frame []byte) (*Packet, error) {
	if len(frame) < HeaderBytes {
		return nil, MalformedPacketErr{
			Reason: "frame shorter than header",
			Got:    len(frame),
		}
	}

	opcode := Opcode(frame[0])
	if !opcode.IsValid() {
		return nil, MalformedPacketErr{
			Reason: "unknown opcode",
			Got:    int(frame[0]),
		}
	}

	length := int(binary.LittleEndian.Uint16(frame[2:4]))
	if err := validateLength(length); err != nil {
		return nil, MalformedPacketErr{
			Reason: "declared length out of range",
			Got:    length,
		}
	}

	payloadBytes := length
	if opcode == OpReadRequest {
		payloadBytes = 0
	}

	if len(frame) != HeaderBytes+payloadBytes {
		return nil, MalformedPacketErr{
			Reason: "frame size does not match declared length",
			Got:    len(frame) - HeaderBytes,
		}
	}

	p := &Packet{
		ID:      xid.New().String(),
		Opcode:  opcode,
		Address: binary.LittleEndian.Uint64(frame[4:12]),
		SrcAddr: binary.LittleEndian.Uint64(frame[12:20]),
		EOM:     frame[1]&flagEOM != 0,
		Length:  length,
		Payload: append([]byte{}, frame[HeaderBytes:]...),
	}

	return p, nil
}

func validateLength(n int) error {
	if n <= 0 || n > MaxPayloadBytes {
		return InvalidLengthErr{Length: n}
	}

	return nil
}

// A PacketBuilder can build packets.
type PacketBuilder struct {
	opcode  Opcode
	address uint64
	srcAddr uint64
	eom     bool
	length  int
	payload []byte
}

// MakePacketBuilder returns a builder with an end-of-message packet as the
// default.
func MakePacketBuilder() PacketBuilder {
	return PacketBuilder{eom: true}
}

// WithOpcode sets the opcode of the packet to build.
func (b PacketBuilder) WithOpcode(op Opcode) PacketBuilder {
	b.opcode = op
	return b
}

// WithAddress sets the destination address of the packet to build.
func (b PacketBuilder) WithAddress(addr uint64) PacketBuilder {
	b.address = addr
	return b
}

// WithSrcAddr sets the source address used to route the response of the
// packet to build.
func (b PacketBuilder) WithSrcAddr(addr uint64) PacketBuilder {
	b.srcAddr = addr
	return b
}

// WithEOM marks whether the packet to build ends a message.
func (b PacketBuilder) WithEOM(eom bool) PacketBuilder {
	b.eom = eom
	return b
}

// WithPayload sets the payload of the packet to build, along with its
// length. The slice is not copied.
func (b PacketBuilder) WithPayload(payload []byte) PacketBuilder {
	b.payload = payload
	b.length = len(payload)
	return b
}

// WithLength sets the byte count of a packet that carries no payload, such
// as a read request.
func (b PacketBuilder) WithLength(length int) PacketBuilder {
	b.length = length
	return b
}

// Build creates a new Packet.
func (b PacketBuilder) Build() *Packet {
	return &Packet{
		ID:      xid.New().String(),
		Opcode:  b.opcode,
		Address: b.address,
		SrcAddr: b.srcAddr,
		EOM:     b.eom,
		Length:  b.length,
		Payload: b.payload,
	}
}
