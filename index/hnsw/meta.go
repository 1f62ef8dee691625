package hnsw

import "github.com/hupe1980/annkit/feder"

// Meta returns an overview of the top levels of the graph, at most
// levels of them, with node ids and neighbors reported as labels.
func (h *HNSW[E]) Meta(levels int) *feder.HNSWMeta {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := &feder.HNSWMeta{
		EFConstruction: h.opts.EFConstruction,
		M:              h.opts.M,
		NumElem:        len(h.labels),
		MaxLevel:       h.maxLevel,
		EntryPoint:     -1,
		Levels:         []feder.LevelMeta{},
	}
	if h.maxLevel < 0 {
		return m
	}
	m.EntryPoint = h.labels[h.entryPoint]

	lowest := max(h.maxLevel-levels+1, 0)
	for l := h.maxLevel; l >= lowest; l-- {
		lm := feder.LevelMeta{Level: l, Nodes: []feder.Node{}}
		for id, lv := range h.levels {
			if int(lv) < l {
				continue
			}
			conns := h.links[id][l]
			nb := make([]int64, len(conns))
			for i, c := range conns {
				nb[i] = h.labels[c]
			}
			lm.Nodes = append(lm.Nodes, feder.Node{ID: h.labels[id], Neighbors: nb})
		}
		m.Levels = append(m.Levels, lm)
	}
	return m
}
