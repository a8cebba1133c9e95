package txrx

import "github.com/zeroasic/umilink/umi"

// The scalar wrappers move 1-, 2-, 4-, and 8-byte values as exact bit
// patterns; no sign extension or widening takes place.

// Write8 writes a single byte.
func (t *TxRx) Write8(addr uint64, value uint8, srcAddr uint64, posted bool) error {
	return t.writeScalar(addr, uint64(value), 1, srcAddr, posted)
}

// Write16 writes a 16-bit value, little-endian.
func (t *TxRx) Write16(addr uint64, value uint16, srcAddr uint64, posted bool) error {
	return t.writeScalar(addr, uint64(value), 2, srcAddr, posted)
}

// Write32 writes a 32-bit value, little-endian.
func (t *TxRx) Write32(addr uint64, value uint32, srcAddr uint64, posted bool) error {
	return t.writeScalar(addr, uint64(value), 4, srcAddr, posted)
}

// Write64 writes a 64-bit value, little-endian.
func (t *TxRx) Write64(addr uint64, value uint64, srcAddr uint64, posted bool) error {
	return t.writeScalar(addr, value, 8, srcAddr, posted)
}

// Read8 reads a single byte.
func (t *TxRx) Read8(addr uint64, srcAddr uint64) (uint8, error) {
	v, err := t.readScalar(addr, 1, srcAddr)
	return uint8(v), err
}

// Read16 reads a 16-bit value, little-endian.
func (t *TxRx) Read16(addr uint64, srcAddr uint64) (uint16, error) {
	v, err := t.readScalar(addr, 2, srcAddr)
	return uint16(v), err
}

// Read32 reads a 32-bit value, little-endian.
func (t *TxRx) Read32(addr uint64, srcAddr uint64) (uint32, error) {
	v, err := t.readScalar(addr, 4, srcAddr)
	return uint32(v), err
}

// Read64 reads a 64-bit value, little-endian.
func (t *TxRx) Read64(addr uint64, srcAddr uint64) (uint64, error) {
	return t.readScalar(addr, 8, srcAddr)
}

func (t *TxRx) writeScalar(
	addr, value uint64,
	width int,
	srcAddr uint64,
	posted bool,
) error {
	data, err := umi.EncodeScalar(value, width)
	if err != nil {
		return err
	}

	return t.Write(addr, data, srcAddr, posted)
}

func (t *TxRx) readScalar(addr uint64, width int, srcAddr uint64) (uint64, error) {
	data, err := t.Read(addr, width, srcAddr)
	if err != nil {
		return 0, err
	}

	return umi.DecodeScalar(data)
}
