package flat

import (
	"fmt"
	"io"

	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

func init() {
	register[float32]()
	register[uint8]()
}

func register[E space.Element]() {
	index.RegisterLoader[E](persistence.IndexTypeFlat, func(r *persistence.Reader) (index.Algorithm[E], error) {
		return read[E](r)
	})
	index.RegisterMappedLoader[E](persistence.IndexTypeFlat, func(r *persistence.SliceReader) (index.Algorithm[E], error) {
		return view[E](r)
	})
}

// Load decodes a flat index written by SaveIndex.
func Load[E space.Element](r io.Reader) (*Flat[E], error) {
	return index.Decode[E](r, persistence.IndexTypeFlat, read[E])
}

// LoadMmap decodes a flat index whose rows alias data. The index is
// read-only and data must stay mapped while it is in use.
func LoadMmap[E space.Element](data []byte) (*Flat[E], error) {
	return index.DecodeMapped[E](data, persistence.IndexTypeFlat, view[E])
}

func newFromHeader[E space.Element](h persistence.FileHeader) (*Flat[E], int, int, error) {
	sp, err := index.SpaceFromHeader[E](h)
	if err != nil {
		return nil, 0, 0, err
	}
	n := int(h.Count)
	if uint64(n) != h.Count || n < 0 {
		return nil, 0, 0, fmt.Errorf("%w: row count %d", persistence.ErrInvalidLength, h.Count)
	}
	f := &Flat[E]{sp: sp, opts: Options{Dim: sp.Dim(), Metric: sp.Metric(), Compression: h.Compression}}
	return f, n, n * sp.Dim(), nil
}

func read[E space.Element](r *persistence.Reader) (*Flat[E], error) {
	f, rows, elems, err := newFromHeader[E](r.Header())
	if err != nil {
		return nil, err
	}
	if f.data, err = persistence.ReadSlice[E](r, elems); err != nil {
		return nil, err
	}
	if f.labels, err = persistence.ReadSlice[int64](r, rows); err != nil {
		return nil, err
	}
	return f, nil
}

func view[E space.Element](r *persistence.SliceReader) (*Flat[E], error) {
	f, rows, elems, err := newFromHeader[E](r.Header())
	if err != nil {
		return nil, err
	}
	if f.data, err = persistence.ViewSlice[E](r, elems); err != nil {
		return nil, err
	}
	if f.labels, err = persistence.ViewSlice[int64](r, rows); err != nil {
		return nil, err
	}
	f.readOnly = true
	return f, nil
}
