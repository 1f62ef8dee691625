package space

import (
	"fmt"
	"strings"
)

// Metric identifies a distance function.
type Metric uint8

const (
	// L2 is the squared Euclidean distance.
	L2 Metric = iota + 1
	// IP is inner product, reported as distance 1 - <a,b>.
	IP
	// Cosine is cosine similarity, reported as distance 1 - cos(a,b).
	// Vectors are normalized on insert and query.
	Cosine
	// Hamming counts differing bits of binary vectors.
	Hamming
	// Jaccard is 1 - |a AND b| / |a OR b| over binary vectors.
	Jaccard
)

func (m Metric) String() string {
	switch m {
	case L2:
		return "L2"
	case IP:
		return "IP"
	case Cosine:
		return "COSINE"
	case Hamming:
		return "HAMMING"
	case Jaccard:
		return "JACCARD"
	default:
		return fmt.Sprintf("Metric(%d)", uint8(m))
	}
}

// ParseMetric parses a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L2":
		return L2, nil
	case "IP":
		return IP, nil
	case "COSINE":
		return Cosine, nil
	case "HAMMING":
		return Hamming, nil
	case "JACCARD":
		return Jaccard, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// IsSimilarity reports whether users think of the metric as a similarity
// (larger is closer). Internally every metric is a distance.
func (m Metric) IsSimilarity() bool { return m == IP || m == Cosine }

// IsBinary reports whether the metric operates on packed bit vectors.
func (m Metric) IsBinary() bool { return m == Hamming || m == Jaccard }

// ToScore converts an internal distance to the value reported to users.
func (m Metric) ToScore(dist float32) float32 {
	if m.IsSimilarity() {
		return 1 - dist
	}
	return dist
}

// FromScore converts a user-facing score or bound to an internal distance.
func (m Metric) FromScore(score float32) float32 {
	if m.IsSimilarity() {
		return 1 - score
	}
	return score
}
