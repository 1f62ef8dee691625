package bitset

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Roaring is a compressed View for sparse or very large id spaces, such as
// tombstones over 64-bit labels.
type Roaring struct {
	bm *roaring64.Bitmap
}

var _ View = (*Roaring)(nil)

// NewRoaring returns a Roaring view excluding ids.
func NewRoaring(ids ...int64) *Roaring {
	r := &Roaring{bm: roaring64.New()}
	for _, id := range ids {
		r.Add(id)
	}
	return r
}

// WrapRoaring uses bm directly. The caller must not modify bm while it is
// in use.
func WrapRoaring(bm *roaring64.Bitmap) *Roaring {
	return &Roaring{bm: bm}
}

// Add excludes id. Negative ids are ignored.
func (r *Roaring) Add(id int64) {
	if id >= 0 {
		r.bm.Add(uint64(id))
	}
}

// Remove re-includes id.
func (r *Roaring) Remove(id int64) {
	if id >= 0 {
		r.bm.Remove(uint64(id))
	}
}

// IsExcluded implements View.
func (r *Roaring) IsExcluded(id int64) bool {
	return id >= 0 && r.bm.Contains(uint64(id))
}

// Count implements View.
func (r *Roaring) Count() int { return int(r.bm.GetCardinality()) }

// Bitmap returns the underlying bitmap.
func (r *Roaring) Bitmap() *roaring64.Bitmap { return r.bm }
