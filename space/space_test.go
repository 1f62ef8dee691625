package space

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	for _, m := range []Metric{L2, IP, Cosine, Hamming, Jaccard} {
		got, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMetric("cosine")
	require.NoError(t, err)
	assert.Equal(t, Cosine, got)

	_, err = ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestNewRejectsMismatchedElement(t *testing.T) {
	_, err := New[uint8](L2, 8)
	assert.ErrorIs(t, err, ErrMetricElementMismatch)

	_, err = New[float32](Hamming, 8)
	assert.ErrorIs(t, err, ErrMetricElementMismatch)

	_, err = New[float32](L2, 0)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestSpaceLayout(t *testing.T) {
	s := MustNew[float32](L2, 16)
	assert.Equal(t, 64, s.DataSize())
	assert.Equal(t, 16, s.DistFuncParam().Dim)
	assert.Equal(t, L2, s.Metric())

	b := MustNew[uint8](Hamming, 16)
	assert.Equal(t, 16, b.DataSize())
}

func TestFloatDistances(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{2, 2, 1, 4, 3}

	l2 := MustNew[float32](L2, len(a))
	assert.InDelta(t, 9.0, l2.DistFunc()(a, b, l2.DistFuncParam()), 1e-6)
	assert.InDelta(t, 0.0, l2.DistFunc()(a, a, l2.DistFuncParam()), 1e-6)

	ip := MustNew[float32](IP, len(a))
	assert.InDelta(t, 1-(2+4+3+16+15), ip.DistFunc()(a, b, ip.DistFuncParam()), 1e-4)
}

func TestBLASMatchesGeneric(t *testing.T) {
	a := make([]float32, 128)
	b := make([]float32, 128)
	for i := range a {
		a[i] = float32(i%7) * 0.25
		b[i] = float32((i*3)%11) * 0.125
	}

	assert.InDelta(t, squaredL2Generic(a, b), squaredL2BLAS(a, b), 1e-3)
	assert.InDelta(t, dotGeneric(a, b), blas.Sdot(len(a), a, 1, b, 1), 1e-3)
}

func TestCosinePrepare(t *testing.T) {
	s := MustNew[float32](Cosine, 2)
	v := []float32{3, 4}

	p, err := s.Prepare(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, p[0], 1e-6)
	assert.InDelta(t, 0.8, p[1], 1e-6)
	assert.Equal(t, float32(3), v[0], "input must not be modified")

	assert.InDelta(t, 0.0, s.DistFunc()(p, p, s.DistFuncParam()), 1e-6)

	_, err = s.Prepare([]float32{0, 0})
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestBinaryDistances(t *testing.T) {
	a := []uint8{0b1111_0000, 0xFF, 0, 0, 0, 0, 0, 0, 0b1}
	b := []uint8{0b0000_1111, 0xFF, 0, 0, 0, 0, 0, 0, 0b1}

	h := MustNew[uint8](Hamming, len(a))
	assert.Equal(t, float32(8), h.DistFunc()(a, b, h.DistFuncParam()))

	j := MustNew[uint8](Jaccard, len(a))
	// intersection 9 bits, union 17 bits
	assert.InDelta(t, 1-9.0/17.0, j.DistFunc()(a, b, j.DistFuncParam()), 1e-6)

	zero := make([]uint8, len(a))
	assert.Equal(t, float32(0), j.DistFunc()(zero, zero, j.DistFuncParam()))
}

func TestBinaryKernelsAtOddOffsets(t *testing.T) {
	buf := make([]uint8, 64)
	for i := range buf {
		buf[i] = uint8(i*37 + 11)
	}
	for off := 1; off < 8; off++ {
		a, b := buf[off:off+21], buf[off+30:off+51]
		wantX, wantI, wantU := 0, 0, 0
		for i := range a {
			wantX += bits.OnesCount8(a[i] ^ b[i])
			wantI += bits.OnesCount8(a[i] & b[i])
			wantU += bits.OnesCount8(a[i] | b[i])
		}
		assert.Equal(t, wantX, xorCount(a, b), "offset %d", off)
		inter, union := andOrCount(a, b)
		assert.Equal(t, wantI, inter, "offset %d", off)
		assert.Equal(t, wantU, union, "offset %d", off)
	}
}

func TestScoreConversion(t *testing.T) {
	assert.Equal(t, float32(0.25), IP.ToScore(0.75))
	assert.Equal(t, float32(0.75), IP.FromScore(0.25))
	assert.Equal(t, float32(2), L2.ToScore(2))
	assert.True(t, Cosine.IsSimilarity())
	assert.False(t, Hamming.IsSimilarity())
	assert.True(t, Jaccard.IsBinary())
}
