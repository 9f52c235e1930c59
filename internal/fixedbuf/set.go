package fixedbuf

// AddrSet is a fixed-capacity set of addresses, used by the reflection walker
// to bound traversal of self-referential metadata. Open addressing with
// linear probing; the table is sized at 2x the requested capacity so probe
// chains stay short, and it never rehashes.
type AddrSet struct {
	slots []uint64
	used  int
	max   int
}

// NewAddrSet allocates a set that can hold up to capacity non-zero addresses.
func NewAddrSet(capacity int) *AddrSet {
	if capacity < 1 {
		capacity = 1
	}
	n := 1
	for n < capacity*2 {
		n <<= 1
	}
	return &AddrSet{slots: make([]uint64, n), max: capacity}
}

// Add inserts addr. The first return is false when addr was already present.
// Adding address 0 is a caller defect and routes to the fatal halt.
func (s *AddrSet) Add(addr uint64) (bool, error) {
	if addr == 0 {
		Halt("fixedbuf: zero address in AddrSet")
	}
	i := s.probe(addr)
	if s.slots[i] == addr {
		return false, nil
	}
	if s.used == s.max {
		return false, ErrCapacityExceeded
	}
	s.slots[i] = addr
	s.used++
	return true, nil
}

// Contains reports whether addr is in the set.
func (s *AddrSet) Contains(addr uint64) bool {
	if addr == 0 {
		return false
	}
	return s.slots[s.probe(addr)] == addr
}

// Len returns the number of addresses added.
func (s *AddrSet) Len() int { return s.used }

// Cap returns the fixed capacity.
func (s *AddrSet) Cap() int { return s.max }

// probe returns the slot index holding addr, or the first empty slot on its
// probe chain. The table is never more than half full, so an empty slot
// always exists.
func (s *AddrSet) probe(addr uint64) int {
	mask := uint64(len(s.slots) - 1)
	// Fibonacci hashing spreads pointer-aligned addresses.
	h := (addr * 0x9e3779b97f4a7c15) >> 32
	i := h & mask
	for s.slots[i] != 0 && s.slots[i] != addr {
		i = (i + 1) & mask
	}
	return int(i)
}
