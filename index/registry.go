package index

import (
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

// StreamLoader decodes a backend body from r. The header has already been
// read and checked.
type StreamLoader[E space.Element] func(r *persistence.Reader) (Algorithm[E], error)

// MappedLoader decodes a backend body viewed in place from a mapping.
type MappedLoader[E space.Element] func(r *persistence.SliceReader) (Algorithm[E], error)

type loaderKey struct {
	typ  persistence.IndexType
	elem persistence.ElemKind
}

var (
	registryMu    sync.RWMutex
	streamLoaders = make(map[loaderKey]any)
	mappedLoaders = make(map[loaderKey]any)
)

// RegisterLoader registers the stream loader for typ and element type E.
// Backends call it from init.
func RegisterLoader[E space.Element](typ persistence.IndexType, l StreamLoader[E]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	streamLoaders[loaderKey{typ, persistence.ElemKindOf[E]()}] = l
}

// RegisterMappedLoader registers the mapped loader for typ and element type E.
func RegisterMappedLoader[E space.Element](typ persistence.IndexType, l MappedLoader[E]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	mappedLoaders[loaderKey{typ, persistence.ElemKindOf[E]()}] = l
}

func lookup[L any](m map[loaderKey]any, h persistence.FileHeader) (L, error) {
	registryMu.RLock()
	v, ok := m[loaderKey{h.IndexType, h.ElemKind}]
	registryMu.RUnlock()

	var zero L
	if !ok {
		return zero, fmt.Errorf("%w: no loader for %s index over %s", ErrIncompatibleIndex, h.IndexType, h.ElemKind)
	}
	return v.(L), nil
}

// Load decodes any registered index type written by SaveIndex.
func Load[E space.Element](r io.Reader) (Algorithm[E], error) {
	pr, err := persistence.NewReader(r)
	if err != nil {
		return nil, Corrupt(err)
	}
	h := pr.Header()
	if err := checkElem[E](h); err != nil {
		return nil, err
	}
	l, err := lookup[StreamLoader[E]](streamLoaders, h)
	if err != nil {
		return nil, err
	}
	a, err := l(pr)
	if err != nil {
		return nil, Corrupt(err)
	}
	if err := pr.Finish(); err != nil {
		return nil, Corrupt(err)
	}
	return a, nil
}

// LoadMapped decodes any registered index type from data, aliasing vector
// storage into it. data must outlive the returned index.
func LoadMapped[E space.Element](data []byte) (Algorithm[E], error) {
	sr, err := persistence.NewSliceReader(data)
	if err != nil {
		return nil, Corrupt(err)
	}
	h := sr.Header()
	if err := checkElem[E](h); err != nil {
		return nil, err
	}
	l, err := lookup[MappedLoader[E]](mappedLoaders, h)
	if err != nil {
		return nil, err
	}
	a, err := l(sr)
	if err != nil {
		return nil, Corrupt(err)
	}
	if err := sr.Finish(); err != nil {
		return nil, Corrupt(err)
	}
	return a, nil
}

// Decode reads a single backend's stream: it checks the header against
// typ and E, runs read on the body, and verifies the trailer.
func Decode[E space.Element, A any](r io.Reader, typ persistence.IndexType, read func(*persistence.Reader) (A, error)) (A, error) {
	var zero A
	pr, err := persistence.NewReader(r)
	if err != nil {
		return zero, Corrupt(err)
	}
	if err := checkHeader[E](pr.Header(), typ); err != nil {
		return zero, err
	}
	a, err := read(pr)
	if err != nil {
		return zero, Corrupt(err)
	}
	if err := pr.Finish(); err != nil {
		return zero, Corrupt(err)
	}
	return a, nil
}

// DecodeMapped is Decode over an in-memory file.
func DecodeMapped[E space.Element, A any](data []byte, typ persistence.IndexType, view func(*persistence.SliceReader) (A, error)) (A, error) {
	var zero A
	sr, err := persistence.NewSliceReader(data)
	if err != nil {
		return zero, Corrupt(err)
	}
	if err := checkHeader[E](sr.Header(), typ); err != nil {
		return zero, err
	}
	a, err := view(sr)
	if err != nil {
		return zero, Corrupt(err)
	}
	if err := sr.Finish(); err != nil {
		return zero, Corrupt(err)
	}
	return a, nil
}

// Encode writes h, the body produced by write, and the checksum trailer.
func Encode(w io.Writer, h persistence.FileHeader, write func(*persistence.Writer) error) error {
	pw, err := persistence.NewWriter(w, h)
	if err != nil {
		return err
	}
	if err := write(pw); err != nil {
		return err
	}
	return pw.Close()
}

// SpaceFromHeader rebuilds the distance space recorded in h.
func SpaceFromHeader[E space.Element](h persistence.FileHeader) (space.Space[E], error) {
	sp, err := space.New[E](h.Metric, int(h.Dim))
	if err != nil {
		return nil, Corrupt(err)
	}
	return sp, nil
}

func checkHeader[E space.Element](h persistence.FileHeader, typ persistence.IndexType) error {
	if h.IndexType != typ {
		return fmt.Errorf("%w: file holds a %s index, want %s", ErrIncompatibleIndex, h.IndexType, typ)
	}
	return checkElem[E](h)
}

func checkElem[E space.Element](h persistence.FileHeader) error {
	if want := persistence.ElemKindOf[E](); h.ElemKind != want {
		return fmt.Errorf("%w: file holds %s vectors, want %s", ErrIncompatibleIndex, h.ElemKind, want)
	}
	return nil
}
