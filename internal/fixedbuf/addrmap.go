package fixedbuf

// AddrMap is a fixed-capacity map from address to int32 value, used by the
// walker to map class-node addresses to descriptor indices. Same open
// addressing scheme as AddrSet; never rehashes.
type AddrMap struct {
	keys []uint64
	vals []int32
	used int
	max  int
}

// NewAddrMap allocates a map that can hold up to capacity entries.
func NewAddrMap(capacity int) *AddrMap {
	if capacity < 1 {
		capacity = 1
	}
	n := 1
	for n < capacity*2 {
		n <<= 1
	}
	return &AddrMap{keys: make([]uint64, n), vals: make([]int32, n), max: capacity}
}

// Put inserts or updates addr -> v.
func (m *AddrMap) Put(addr uint64, v int32) error {
	if addr == 0 {
		Halt("fixedbuf: zero address in AddrMap")
	}
	i := m.probe(addr)
	if m.keys[i] != addr {
		if m.used == m.max {
			return ErrCapacityExceeded
		}
		m.keys[i] = addr
		m.used++
	}
	m.vals[i] = v
	return nil
}

// Get returns the value for addr and whether it is present.
func (m *AddrMap) Get(addr uint64) (int32, bool) {
	if addr == 0 {
		return 0, false
	}
	i := m.probe(addr)
	if m.keys[i] != addr {
		return 0, false
	}
	return m.vals[i], true
}

// Len returns the number of entries.
func (m *AddrMap) Len() int { return m.used }

// Cap returns the fixed capacity.
func (m *AddrMap) Cap() int { return m.max }

func (m *AddrMap) probe(addr uint64) int {
	mask := uint64(len(m.keys) - 1)
	h := (addr * 0x9e3779b97f4a7c15) >> 32
	i := h & mask
	for m.keys[i] != 0 && m.keys[i] != addr {
		i = (i + 1) & mask
	}
	return int(i)
}
