package feder

import gojson "github.com/goccy/go-json"

// Node is a graph node and its neighbors on one level.
type Node struct {
	ID        int64   `json:"id"`
	Neighbors []int64 `json:"links"`
}

// LevelMeta describes one level of a layered graph.
type LevelMeta struct {
	Level int    `json:"level"`
	Nodes []Node `json:"nodes"`
}

// HNSWMeta is an overview of a layered graph index, covering its top
// levels.
type HNSWMeta struct {
	EFConstruction int         `json:"ef_construction"`
	M              int         `json:"M"`
	NumElem        int         `json:"num_elem"`
	MaxLevel       int         `json:"max_level"`
	EntryPoint     int64       `json:"entry_point"`
	Levels         []LevelMeta `json:"overview"`
}

// JSON encodes m.
func (m *HNSWMeta) JSON() ([]byte, error) {
	return gojson.Marshal(m)
}
