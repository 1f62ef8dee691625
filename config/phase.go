package config

import (
	"fmt"
	"strings"
)

// Phase selects which subset of parameters is validated for a call.
// Phases form a bitmask and may be combined with |.
type Phase uint32

const (
	// PhaseTrain covers index construction.
	PhaseTrain Phase = 1 << iota
	// PhaseSearch covers k-nearest-neighbor queries.
	PhaseSearch
	// PhaseRangeSearch covers radius queries.
	PhaseRangeSearch
	// PhaseFeder covers debug-trace and index overview requests.
	PhaseFeder
	// PhaseDeserialize covers loading an index from a byte stream.
	PhaseDeserialize
	// PhaseDeserializeFromFile covers loading an index from a file path.
	PhaseDeserializeFromFile
)

// PhaseTrainAndSearch is the mask shared by parameters that shape both the
// index layout and every query against it.
const PhaseTrainAndSearch = PhaseTrain | PhaseSearch | PhaseRangeSearch

var phaseNames = []struct {
	p    Phase
	name string
}{
	{PhaseTrain, "TRAIN"},
	{PhaseSearch, "SEARCH"},
	{PhaseRangeSearch, "RANGE_SEARCH"},
	{PhaseFeder, "FEDER"},
	{PhaseDeserialize, "DESERIALIZE"},
	{PhaseDeserializeFromFile, "DESERIALIZE_FROM_FILE"},
}

// Has reports whether p and q share at least one phase bit.
func (p Phase) Has(q Phase) bool { return p&q != 0 }

// String renders the mask as a |-separated list, e.g. "TRAIN|SEARCH".
func (p Phase) String() string {
	if p == 0 {
		return "NONE"
	}

	var parts []string
	for _, pn := range phaseNames {
		if p&pn.p != 0 {
			parts = append(parts, pn.name)
		}
	}
	if rest := p &^ (PhaseTrain | PhaseSearch | PhaseRangeSearch | PhaseFeder | PhaseDeserialize | PhaseDeserializeFromFile); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParsePhase parses a |-separated, case-insensitive list of phase names.
// Both "RANGE_SEARCH" and "range-search" spellings are accepted.
func ParsePhase(s string) (Phase, error) {
	var p Phase
	for _, part := range strings.Split(s, "|") {
		name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(part), "-", "_"))
		found := false
		for _, pn := range phaseNames {
			if pn.name == name {
				p |= pn.p
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("config: unknown phase %q", part)
		}
	}
	return p, nil
}
