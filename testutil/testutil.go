package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/annkit/space"
)

// RNG is a seeded, mutex-guarded random source.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG returns an RNG seeded with seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Intn returns a value in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a value in [0, 1).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with values in [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors returns num vectors with values in [0, 1), sharing one
// backing array.
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	return r.vectors(num, dim, func() float32 { return r.rand.Float32() })
}

// GaussianVectors returns num vectors drawn from a standard normal.
func (r *RNG) GaussianVectors(num, dim int) [][]float32 {
	return r.vectors(num, dim, func() float32 { return float32(r.rand.NormFloat64()) })
}

// UnitVectors returns num L2-normalized vectors, uniform on the sphere.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	vecs := r.GaussianVectors(num, dim)
	for _, v := range vecs {
		if !space.NormalizeL2InPlace(v) {
			v[0] = 1
		}
	}
	return vecs
}

// ClusteredVectors returns num vectors scattered with Gaussian noise of
// the given spread around clusters random unit centroids.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)
	i := 0
	return r.vectors(num, dim, func() float32 {
		c := centroids[(i/dim)%clusters]
		v := c[i%dim] + float32(r.rand.NormFloat64())*spread
		i++
		return v
	})
}

// BinaryVectors returns num packed bit vectors of dim bits each.
func (r *RNG) BinaryVectors(num, dim int) [][]uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()

	width := (dim + 7) / 8
	data := make([]uint8, num*width)
	for i := range data {
		data[i] = uint8(r.rand.Intn(256))
	}
	out := make([][]uint8, num)
	for i := range out {
		out[i] = data[i*width : (i+1)*width]
	}
	return out
}

func (r *RNG) vectors(num, dim int, next func() float32) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	for i := range data {
		data[i] = next()
	}
	out := make([][]float32, num)
	for i := range out {
		out[i] = data[i*dim : (i+1)*dim]
	}
	return out
}

// Sequence returns the labels 0..n-1.
func Sequence(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

// ExactTopK returns the row indices of the k rows of data nearest to
// query under sp, nearest first. Cosine queries and rows are normalized
// first, matching how indexes store them.
func ExactTopK[E space.Element](sp space.Space[E], data [][]E, query []E, k int) []int64 {
	type scored struct {
		id   int64
		dist float32
	}
	q, err := sp.Prepare(query)
	if err != nil {
		return nil
	}
	fn, param := sp.DistFunc(), sp.DistFuncParam()

	all := make([]scored, 0, len(data))
	for i, v := range data {
		p, err := sp.Prepare(v)
		if err != nil {
			continue
		}
		all = append(all, scored{id: int64(i), dist: fn(q, p, param)})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	out := make([]int64, min(k, len(all)))
	for i := range out {
		out[i] = all[i].id
	}
	return out
}

// Recall returns the fraction of truth found in approx, as recall@len(truth).
func Recall(truth, approx []int64) float64 {
	if len(truth) == 0 {
		if len(approx) == 0 {
			return 1
		}
		return 0
	}
	set := make(map[int64]struct{}, len(truth))
	for _, id := range truth {
		set[id] = struct{}{}
	}
	hits := 0
	for _, id := range approx {
		if _, ok := set[id]; ok {
			hits++
			delete(set, id)
		}
	}
	return float64(hits) / float64(len(truth))
}

// MeanRecall averages Recall over query batches.
func MeanRecall(truth, approx [][]int64) float64 {
	if len(truth) == 0 {
		return 1
	}
	var sum float64
	for i := range truth {
		var a []int64
		if i < len(approx) {
			a = approx[i]
		}
		sum += Recall(truth[i], a)
	}
	return sum / float64(len(truth))
}

// Finite reports whether every value of v is finite.
func Finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}
