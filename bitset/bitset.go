// Package bitset provides row filters for search.
//
// A set bit marks a row as excluded. A nil View excludes nothing.
package bitset

import (
	"math/bits"
)

// View is a read-only row filter queried once per candidate during search.
type View interface {
	// IsExcluded reports whether row id must be skipped. It runs in O(1).
	IsExcluded(id int64) bool
	// Count returns the number of excluded rows.
	Count() int
}

// Excluded reports whether id is excluded by v. A nil v excludes nothing.
func Excluded(v View, id int64) bool {
	return v != nil && v.IsExcluded(id)
}

// Bitset is a dense, word-backed View. Rows at or beyond its length are
// never excluded.
//
// Writes are not synchronized; finish building a Bitset before searching
// with it.
type Bitset struct {
	words []uint64
	n     int
}

var _ View = (*Bitset)(nil)

// New returns a Bitset covering n rows with nothing excluded.
func New(n int) *Bitset {
	if n < 0 {
		n = 0
	}
	return &Bitset{
		words: make([]uint64, (n+63)/64),
		n:     n,
	}
}

// FromBytes wraps a raw little-endian bitmap without copying: row i is
// bit i%8 of byte i/8. The caller must not modify b while it is in use.
func FromBytes(b []byte) *Bytes {
	return &Bytes{data: b}
}

// Len returns the number of rows covered.
func (b *Bitset) Len() int { return b.n }

// Set excludes row id. It panics if id is out of range.
func (b *Bitset) Set(id int) {
	b.words[id>>6] |= 1 << (uint(id) & 63)
}

// Clear re-includes row id. It panics if id is out of range.
func (b *Bitset) Clear(id int) {
	b.words[id>>6] &^= 1 << (uint(id) & 63)
}

// Test reports whether row id is excluded.
func (b *Bitset) Test(id int) bool {
	if id < 0 || id >= b.n {
		return false
	}
	return b.words[id>>6]&(1<<(uint(id)&63)) != 0
}

// IsExcluded implements View.
func (b *Bitset) IsExcluded(id int64) bool {
	if id < 0 || id >= int64(b.n) {
		return false
	}
	return b.Test(int(id))
}

// Count implements View.
func (b *Bitset) Count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Bytes is a View over a caller-owned byte bitmap.
type Bytes struct {
	data []byte
}

var _ View = (*Bytes)(nil)

// IsExcluded implements View.
func (b *Bytes) IsExcluded(id int64) bool {
	if id < 0 || id>>3 >= int64(len(b.data)) {
		return false
	}
	return b.data[id>>3]&(1<<(uint(id)&7)) != 0
}

// Count implements View.
func (b *Bytes) Count() int {
	c := 0
	for _, x := range b.data {
		c += bits.OnesCount8(x)
	}
	return c
}
