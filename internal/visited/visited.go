// Package visited tracks which graph nodes a traversal has touched.
package visited

// Set is a bitset with a dirty list so it can be cleared in time
// proportional to the nodes visited rather than the graph size.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New returns a Set sized for capacity nodes. It grows on demand.
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks id and reports whether it was newly marked.
func (s *Set) Visit(id uint32) bool {
	w := int(id >> 6)
	mask := uint64(1) << (id & 63)
	if w >= len(s.bits) {
		s.grow(w + 1)
	}
	if s.bits[w]&mask != 0 {
		return false
	}
	s.bits[w] |= mask
	s.dirty = append(s.dirty, id)
	return true
}

// Visited reports whether id is marked.
func (s *Set) Visited(id uint32) bool {
	w := int(id >> 6)
	if w >= len(s.bits) {
		return false
	}
	return s.bits[w]&(uint64(1)<<(id&63)) != 0
}

// Len returns the number of marked nodes.
func (s *Set) Len() int { return len(s.dirty) }

// Reset clears every mark.
func (s *Set) Reset() {
	for _, id := range s.dirty {
		s.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	s.dirty = s.dirty[:0]
}

func (s *Set) grow(words int) {
	n := max(len(s.bits)*2, words)
	bits := make([]uint64, n)
	copy(bits, s.bits)
	s.bits = bits
}
