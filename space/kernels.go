package space

import (
	"encoding/binary"
	"math"
	"math/bits"
	"sync"

	"gonum.org/v1/gonum/blas/gonum"

	"github.com/hupe1980/annkit/internal/cpu"
)

// blasMinDim is the dimension from which the BLAS kernels beat the
// unrolled loops.
const blasMinDim = 32

var blas = gonum.Implementation{}

// diffPool holds scratch buffers for the BLAS-backed L2 kernel.
var diffPool = sync.Pool{
	New: func() any {
		s := make([]float32, 0, 1024)
		return &s
	},
}

func useBLAS(n int) bool {
	return n >= blasMinDim && cpu.Get().Accelerated()
}

func squaredL2(a, b []float32, p *Param) float32 {
	n := dimOf(len(a), p)
	if useBLAS(n) {
		return squaredL2BLAS(a[:n], b[:n])
	}
	return squaredL2Generic(a[:n], b[:n])
}

func innerProductDistance(a, b []float32, p *Param) float32 {
	n := dimOf(len(a), p)
	if useBLAS(n) {
		return 1 - blas.Sdot(n, a, 1, b, 1)
	}
	return 1 - dotGeneric(a[:n], b[:n])
}

func squaredL2BLAS(a, b []float32) float32 {
	bufp := diffPool.Get().(*[]float32)
	diff := append((*bufp)[:0], a...)
	blas.Saxpy(len(b), -1, b, 1, diff, 1)
	d := blas.Sdot(len(diff), diff, 1, diff, 1)
	*bufp = diff
	diffPool.Put(bufp)
	return d
}

func squaredL2Generic(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < len(a); i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return s0 + s1 + s2 + s3
}

func dotGeneric(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

func hamming(a, b []uint8, p *Param) float32 {
	n := dimOf(len(a), p)
	return float32(xorCount(a[:n], b[:n]))
}

func jaccard(a, b []uint8, p *Param) float32 {
	n := dimOf(len(a), p)
	inter, union := andOrCount(a[:n], b[:n])
	if union == 0 {
		return 0
	}
	return 1 - float32(inter)/float32(union)
}

func xorCount(a, b []uint8) int {
	cnt := 0
	i := 0
	for ; i+8 <= len(a); i += 8 {
		x := binary.LittleEndian.Uint64(a[i:]) ^ binary.LittleEndian.Uint64(b[i:])
		cnt += bits.OnesCount64(x)
	}
	for ; i < len(a); i++ {
		cnt += bits.OnesCount8(a[i] ^ b[i])
	}
	return cnt
}

func andOrCount(a, b []uint8) (inter, union int) {
	i := 0
	for ; i+8 <= len(a); i += 8 {
		x := binary.LittleEndian.Uint64(a[i:])
		y := binary.LittleEndian.Uint64(b[i:])
		inter += bits.OnesCount64(x & y)
		union += bits.OnesCount64(x | y)
	}
	for ; i < len(a); i++ {
		inter += bits.OnesCount8(a[i] & b[i])
		union += bits.OnesCount8(a[i] | b[i])
	}
	return inter, union
}

func dimOf(n int, p *Param) int {
	if p != nil && p.Dim > 0 && p.Dim < n {
		return p.Dim
	}
	return n
}

// NormalizeL2InPlace scales v to unit length. It returns false for a zero
// vector, which is left unchanged.
func NormalizeL2InPlace(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return true
}
