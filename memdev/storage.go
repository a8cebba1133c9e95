// Package memdev provides an in-process memory device that serves the
// transaction protocol over a queue pair, standing in for a simulated piece
// of hardware.
package memdev

// A Storage holds the byte content of the device's full 64-bit address
// space. Pages are allocated lazily, so sparse traffic such as a small
// window at a very high address costs only the pages it touches.
type Storage struct {
	pageSize uint64
	pages    map[uint64][]byte
}

// NewStorage creates an empty storage. Untouched bytes read as zero.
func NewStorage() *Storage {
	return &Storage{
		pageSize: 4096,
		pages:    make(map[uint64][]byte),
	}
}

func (s *Storage) page(addr uint64) []byte {
	base := addr - addr%s.pageSize

	p, ok := s.pages[base]
	if !ok {
		p = make([]byte, s.pageSize)
		s.pages[base] = p
	}

	return p
}

// Read copies n bytes starting at addr.
func (s *Storage) Read(addr, n uint64) []byte {
	res := make([]byte, n)

	for copied := uint64(0); copied < n; {
		cur := addr + copied
		inPage := cur % s.pageSize

		chunk := s.pageSize - inPage
		if left := n - copied; left < chunk {
			chunk = left
		}

		p := s.page(cur)
		copy(res[copied:copied+chunk], p[inPage:inPage+chunk])
		copied += chunk
	}

	return res
}

// Write stores data starting at addr.
func (s *Storage) Write(addr uint64, data []byte) {
	n := uint64(len(data))

	for copied := uint64(0); copied < n; {
		cur := addr + copied
		inPage := cur % s.pageSize

		chunk := s.pageSize - inPage
		if left := n - copied; left < chunk {
			chunk = left
		}

		p := s.page(cur)
		copy(p[inPage:inPage+chunk], data[copied:copied+chunk])
		copied += chunk
	}
}
