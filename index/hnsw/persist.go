package hnsw

import (
	"fmt"
	"io"

	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

// Body layout after the file header:
//
//	params    M u32, efConstruction u32, seed u64, flags u32,
//	          maxLevel+1 u32, entryPoint u32
//	vectors   [Count*Dim]E
//	labels    [Count]int64
//	levels    [Count]uint8
//	lists     u64 n, [n]u32 neighbor count per (node, level)
//	edges     u64 m, [m]u32 neighbor ids
//
// Neighbor lists are stored node by node, level 0 first.

const flagHeuristic = 1 << 0

func init() {
	register[float32]()
	register[uint8]()
}

func register[E space.Element]() {
	index.RegisterLoader[E](persistence.IndexTypeHNSW, func(r *persistence.Reader) (index.Algorithm[E], error) {
		return read[E](r)
	})
	index.RegisterMappedLoader[E](persistence.IndexTypeHNSW, func(r *persistence.SliceReader) (index.Algorithm[E], error) {
		return view[E](r)
	})
}

// Load decodes an HNSW index written by SaveIndex.
func Load[E space.Element](r io.Reader) (*HNSW[E], error) {
	return index.Decode[E](r, persistence.IndexTypeHNSW, read[E])
}

// LoadMmap decodes an HNSW index whose vectors and adjacency alias data.
// The index is read-only and data must stay mapped while it is in use.
func LoadMmap[E space.Element](data []byte) (*HNSW[E], error) {
	return index.DecodeMapped[E](data, persistence.IndexTypeHNSW, view[E])
}

func (h *HNSW[E]) encode(w io.Writer) error {
	n := len(h.labels)
	hdr := persistence.FileHeader{
		IndexType:   persistence.IndexTypeHNSW,
		ElemKind:    persistence.ElemKindOf[E](),
		Metric:      h.sp.Metric(),
		Compression: h.opts.Compression,
		Dim:         uint32(h.dim),
		Count:       uint64(n),
	}

	counts := make([]uint32, 0, n)
	edges := 0
	for _, node := range h.links {
		for _, l := range node {
			counts = append(counts, uint32(len(l)))
			edges += len(l)
		}
	}
	flat := make([]uint32, 0, edges)
	for _, node := range h.links {
		for _, l := range node {
			flat = append(flat, l...)
		}
	}

	var flags uint32
	if h.opts.Heuristic {
		flags |= flagHeuristic
	}

	return index.Encode(w, hdr, func(pw *persistence.Writer) error {
		for _, v := range []uint32{uint32(h.opts.M), uint32(h.opts.EFConstruction)} {
			if err := pw.WriteUint32(v); err != nil {
				return err
			}
		}
		if err := pw.WriteUint64(uint64(h.opts.Seed)); err != nil {
			return err
		}
		for _, v := range []uint32{flags, uint32(h.maxLevel + 1), h.entryPoint} {
			if err := pw.WriteUint32(v); err != nil {
				return err
			}
		}
		if err := persistence.WriteSlice(pw, h.data); err != nil {
			return err
		}
		if err := persistence.WriteSlice(pw, h.labels); err != nil {
			return err
		}
		if err := persistence.WriteSlice(pw, h.levels); err != nil {
			return err
		}
		if err := pw.WriteUint64(uint64(len(counts))); err != nil {
			return err
		}
		if err := persistence.WriteSlice(pw, counts); err != nil {
			return err
		}
		if err := pw.WriteUint64(uint64(len(flat))); err != nil {
			return err
		}
		return persistence.WriteSlice(pw, flat)
	})
}

// body abstracts the stream and mapped readers.
type body interface {
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)
}

type params struct {
	m, efConstruction uint32
	seed              uint64
	flags             uint32
	maxLevel          int
	entryPoint        uint32
}

func readParams(r body) (params, error) {
	var p params
	var err error
	if p.m, err = r.ReadUint32(); err != nil {
		return p, err
	}
	if p.efConstruction, err = r.ReadUint32(); err != nil {
		return p, err
	}
	if p.seed, err = r.ReadUint64(); err != nil {
		return p, err
	}
	if p.flags, err = r.ReadUint32(); err != nil {
		return p, err
	}
	lv, err := r.ReadUint32()
	if err != nil {
		return p, err
	}
	p.maxLevel = int(lv) - 1
	if p.entryPoint, err = r.ReadUint32(); err != nil {
		return p, err
	}
	if p.m < minimumM || p.efConstruction < 1 {
		return p, fmt.Errorf("%w: M %d, efConstruction %d", persistence.ErrInvalidLength, p.m, p.efConstruction)
	}
	return p, nil
}

func newFromHeader[E space.Element](h persistence.FileHeader, p params) (*HNSW[E], int, error) {
	sp, err := index.SpaceFromHeader[E](h)
	if err != nil {
		return nil, 0, err
	}
	n := int(h.Count)
	if uint64(n) != h.Count || n < 0 || h.Count > 1<<32 {
		return nil, 0, fmt.Errorf("%w: node count %d", persistence.ErrInvalidLength, h.Count)
	}
	opts := Options{
		Dim:            sp.Dim(),
		Metric:         sp.Metric(),
		M:              int(p.m),
		EFConstruction: int(p.efConstruction),
		Seed:           int64(p.seed),
		Heuristic:      p.flags&flagHeuristic != 0,
		Compression:    h.Compression,
	}
	g := newWithSpace(sp, opts)
	g.maxLevel = p.maxLevel
	g.entryPoint = p.entryPoint
	return g, n, nil
}

// readCount reads a section length prefix and checks it against want.
func readCount(r body, want int, what string) error {
	got, err := r.ReadUint64()
	if err != nil {
		return err
	}
	if want >= 0 && got != uint64(want) {
		return fmt.Errorf("%w: %s has %d entries, want %d", persistence.ErrInvalidLength, what, got, want)
	}
	return nil
}

func read[E space.Element](r *persistence.Reader) (*HNSW[E], error) {
	p, err := readParams(r)
	if err != nil {
		return nil, err
	}
	g, n, err := newFromHeader[E](r.Header(), p)
	if err != nil {
		return nil, err
	}
	if g.data, err = persistence.ReadSlice[E](r, n*g.dim); err != nil {
		return nil, err
	}
	if g.labels, err = persistence.ReadSlice[int64](r, n); err != nil {
		return nil, err
	}
	if g.levels, err = persistence.ReadSlice[uint8](r, n); err != nil {
		return nil, err
	}
	lists := listCount(g.levels)
	if err := readCount(r, lists, "neighbor lists"); err != nil {
		return nil, err
	}
	counts, err := persistence.ReadSlice[uint32](r, lists)
	if err != nil {
		return nil, err
	}
	m, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if m != sum(counts) || m > 1<<40 {
		return nil, fmt.Errorf("%w: edge count %d", persistence.ErrInvalidLength, m)
	}
	edges, err := persistence.ReadSlice[uint32](r, int(m))
	if err != nil {
		return nil, err
	}
	if err := g.attach(counts, edges); err != nil {
		return nil, err
	}
	return g, nil
}

func view[E space.Element](r *persistence.SliceReader) (*HNSW[E], error) {
	p, err := readParams(r)
	if err != nil {
		return nil, err
	}
	g, n, err := newFromHeader[E](r.Header(), p)
	if err != nil {
		return nil, err
	}
	if g.data, err = persistence.ViewSlice[E](r, n*g.dim); err != nil {
		return nil, err
	}
	if g.labels, err = persistence.ViewSlice[int64](r, n); err != nil {
		return nil, err
	}
	if g.levels, err = persistence.ViewSlice[uint8](r, n); err != nil {
		return nil, err
	}
	lists := listCount(g.levels)
	if err := readCount(r, lists, "neighbor lists"); err != nil {
		return nil, err
	}
	counts, err := persistence.ViewSlice[uint32](r, lists)
	if err != nil {
		return nil, err
	}
	m, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if m != sum(counts) || m > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: edge count %d", persistence.ErrInvalidLength, m)
	}
	edges, err := persistence.ViewSlice[uint32](r, int(m))
	if err != nil {
		return nil, err
	}
	if err := g.attach(counts, edges); err != nil {
		return nil, err
	}
	g.readOnly = true
	return g, nil
}

func listCount(levels []uint8) int {
	n := 0
	for _, l := range levels {
		n += int(l) + 1
	}
	return n
}

func sum(counts []uint32) uint64 {
	var s uint64
	for _, c := range counts {
		s += uint64(c)
	}
	return s
}

// attach slices edges into per-node neighbor lists and validates the
// graph. Each list is capped at its length, so a later append on a
// writable index reallocates instead of overwriting its successor.
func (h *HNSW[E]) attach(counts, edges []uint32) error {
	n := len(h.labels)
	if n == 0 {
		if h.maxLevel != -1 {
			return fmt.Errorf("%w: empty graph with max level %d", persistence.ErrInvalidLength, h.maxLevel)
		}
		return nil
	}
	if int(h.entryPoint) >= n || h.maxLevel != int(h.levels[h.entryPoint]) {
		return fmt.Errorf("%w: entry point %d at level %d", persistence.ErrInvalidLength, h.entryPoint, h.maxLevel)
	}

	h.links = make([][][]uint32, n)
	li, off := 0, 0
	for id := range n {
		lv := int(h.levels[id])
		if lv > maxLevelCap || lv > h.maxLevel {
			return fmt.Errorf("%w: node %d has level %d", persistence.ErrInvalidLength, id, lv)
		}
		node := make([][]uint32, lv+1)
		for l := range node {
			c := int(counts[li])
			li++
			list := edges[off : off+c : off+c]
			off += c
			for _, nb := range list {
				if int(nb) >= n {
					return fmt.Errorf("%w: node %d links to %d", persistence.ErrInvalidLength, id, nb)
				}
			}
			node[l] = list
		}
		h.links[id] = node
	}
	return nil
}
