package hnsw

import (
	"fmt"
	"strings"

	"github.com/hupe1980/annkit/space"
)

// Stats describes the shape of an HNSW graph.
type Stats struct {
	Count       int
	Dim         int
	Metric      space.Metric
	M           int
	MaxLevel    int
	ReadOnly    bool
	MemoryBytes int64

	// NodesPerLevel[l] is the number of nodes present on level l.
	NodesPerLevel []int
	// AvgConnections[l] is the mean out-degree on level l.
	AvgConnections []float64
}

// Stats returns statistics about the HNSW graph.
func (h *HNSW[E]) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	levels := max(h.maxLevel+1, 0)
	nodes := make([]int, levels)
	conns := make([]int, levels)
	var edges int64
	for id, lv := range h.levels {
		for l := 0; l <= int(lv) && l < levels; l++ {
			nodes[l]++
			c := len(h.links[id][l])
			conns[l] += c
			edges += int64(c)
		}
	}

	avg := make([]float64, levels)
	for l := range avg {
		if nodes[l] > 0 {
			avg[l] = float64(conns[l]) / float64(nodes[l])
		}
	}

	n := int64(len(h.labels))
	return Stats{
		Count:          len(h.labels),
		Dim:            h.dim,
		Metric:         h.sp.Metric(),
		M:              h.opts.M,
		MaxLevel:       h.maxLevel,
		ReadOnly:       h.readOnly,
		MemoryBytes:    n*int64(h.sp.DataSize()) + n*9 + edges*4,
		NodesPerLevel:  nodes,
		AvgConnections: avg,
	}
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hnsw: %d nodes, dim %d, %s, M %d, %d bytes\n", s.Count, s.Dim, s.Metric, s.M, s.MemoryBytes)
	for l := len(s.NodesPerLevel) - 1; l >= 0; l-- {
		fmt.Fprintf(&b, "  level %d: %d nodes, %.2f avg connections\n", l, s.NodesPerLevel[l], s.AvgConnections[l])
	}
	return b.String()
}
