package persistence

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annkit/space"
)

func testHeader(c CompressionType) FileHeader {
	return FileHeader{
		IndexType:   IndexTypeFlat,
		ElemKind:    ElemFloat32,
		Metric:      space.L2,
		Compression: c,
		Dim:         4,
		Count:       2,
	}
}

func writeSample(t *testing.T, c CompressionType) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, testHeader(c))
	require.NoError(t, err)

	require.NoError(t, w.WriteUint32(7))
	require.NoError(t, WriteSlice(w, []uint8{1, 2, 3}))
	require.NoError(t, WriteSlice(w, []float32{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, WriteSlice(w, []int64{-1, 42}))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterReader_RoundTrip(t *testing.T) {
	for _, c := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data := writeSample(t, c)

			r, err := NewReader(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, testHeader(c).Dim, r.Header().Dim)
			assert.Equal(t, c, r.Header().Compression)

			v, err := r.ReadUint32()
			require.NoError(t, err)
			assert.Equal(t, uint32(7), v)

			u8, err := ReadSlice[uint8](r, 3)
			require.NoError(t, err)
			assert.Equal(t, []uint8{1, 2, 3}, u8)

			f32, err := ReadSlice[float32](r, 8)
			require.NoError(t, err)
			assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, f32)

			i64, err := ReadSlice[int64](r, 2)
			require.NoError(t, err)
			assert.Equal(t, []int64{-1, 42}, i64)

			require.NoError(t, r.Finish())
		})
	}
}

func TestWriterReader_LargeCompressedBody(t *testing.T) {
	vals := make([]float32, 3*blockSize/4)
	for i := range vals {
		vals[i] = float32(i % 17)
	}

	var buf bytes.Buffer
	h := testHeader(CompressionZSTD)
	w, err := NewWriter(&buf, h)
	require.NoError(t, err)
	require.NoError(t, WriteSlice(w, vals))
	require.NoError(t, w.Close())
	assert.Less(t, buf.Len(), len(vals)*4)

	r, err := NewReader(&buf)
	require.NoError(t, err)
	got, err := ReadSlice[float32](r, len(vals))
	require.NoError(t, err)
	assert.Equal(t, vals, got)
	require.NoError(t, r.Finish())
}

func TestReader_ChecksumMismatch(t *testing.T) {
	data := writeSample(t, CompressionNone)
	data[HeaderSize+1] ^= 0xff

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = r.ReadUint32()
	require.NoError(t, err)
	_, _ = ReadSlice[uint8](r, 3)
	_, _ = ReadSlice[float32](r, 8)
	_, _ = ReadSlice[int64](r, 2)

	err = r.Finish()
	assert.True(t, IsChecksumMismatch(err))
}

func TestReader_Truncated(t *testing.T) {
	data := writeSample(t, CompressionNone)

	r, err := NewReader(bytes.NewReader(data[:HeaderSize+6]))
	require.NoError(t, err)
	_, err = r.ReadUint32()
	require.NoError(t, err)
	_, err = ReadSlice[float32](r, 8)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_InvalidLength(t *testing.T) {
	data := writeSample(t, CompressionNone)
	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = ReadSlice[float32](r, -1)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestHeader_Validation(t *testing.T) {
	data := writeSample(t, CompressionNone)

	h, err := PeekHeader(data)
	require.NoError(t, err)
	assert.Equal(t, IndexTypeFlat, h.IndexType)
	assert.Equal(t, uint64(2), h.Count)

	bad := bytes.Clone(data)
	bad[0] = 'X'
	_, err = PeekHeader(bad)
	assert.ErrorIs(t, err, ErrInvalidMagic)

	bad = bytes.Clone(data)
	bad[6] = 9
	_, err = PeekHeader(bad)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	bad = bytes.Clone(data)
	bad[4] = 2
	_, err = PeekHeader(bad)
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = PeekHeader(data[:10])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestSliceReader_Views(t *testing.T) {
	data := writeSample(t, CompressionNone)
	// Copy into an 8-byte aligned buffer, as a mapping would be.
	aligned := make([]uint64, (len(data)+7)/8)
	buf := asBytes(aligned)[:len(data)]
	copy(buf, data)

	r, err := NewSliceReader(buf)
	require.NoError(t, err)

	v, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)

	u8, err := ViewSlice[uint8](r, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, u8)

	f32, err := ViewSlice[float32](r, 8)
	require.NoError(t, err)
	assert.Equal(t, float32(8), f32[7])

	i64, err := CopySlice[int64](r, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{-1, 42}, i64)
	require.NoError(t, r.Finish())
}

func TestSliceReader_Rejects(t *testing.T) {
	data := writeSample(t, CompressionLZ4)
	_, err := NewSliceReader(data)
	assert.ErrorIs(t, err, ErrCompressedLayout)

	data = writeSample(t, CompressionNone)
	data[len(data)-1] ^= 0x1
	_, err = NewSliceReader(data)
	assert.True(t, IsChecksumMismatch(err))
}

func TestSaveLoadMmapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.ank")
	data := writeSample(t, CompressionNone)

	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}))

	var loaded []byte
	require.NoError(t, LoadFromFile(path, func(r io.Reader) error {
		var err error
		loaded, err = io.ReadAll(r)
		return err
	}))
	assert.Equal(t, data, loaded)

	m, err := MmapFile(path)
	require.NoError(t, err)
	defer m.Close()
	_, err = NewSliceReader(m.Bytes())
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)

	_, err = ParseCompression("snappy")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}
