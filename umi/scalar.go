package umi

import "encoding/binary"

// IsScalarWidth tells if n bytes is a width the scalar read/write path
// supports.
func IsScalarWidth(n int) bool {
	return n == 1 || n == 2 || n == 4 || n == 8
}

// EncodeScalar packs the low `width` bytes of value into a little-endian
// buffer. Fails with ErrInvalidLength if width is not 1, 2, 4, or 8.
func EncodeScalar(value uint64, width int) ([]byte, error) {
	if !IsScalarWidth(width) {
		return nil, InvalidLengthErr{Length: width}
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)

	return append([]byte{}, buf[:width]...), nil
}

// DecodeScalar interprets a 1-, 2-, 4-, or 8-byte little-endian buffer as an
// unsigned integer. No sign extension takes place.
func DecodeScalar(data []byte) (uint64, error) {
	if !IsScalarWidth(len(data)) {
		return 0, InvalidLengthErr{Length: len(data)}
	}

	var buf [8]byte
	copy(buf[:], data)

	return binary.LittleEndian.Uint64(buf[:]), nil
}
