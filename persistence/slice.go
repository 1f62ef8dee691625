package persistence

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SliceReader reads an uncompressed index file held in memory, typically
// a memory mapping. Views it returns alias the underlying bytes.
type SliceReader struct {
	header FileHeader
	body   []byte
	off    int
}

// NewSliceReader validates the header and checksum of data and positions
// the reader at the start of the body.
func NewSliceReader(data []byte) (*SliceReader, error) {
	if len(data) < HeaderSize+TrailerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	r := &SliceReader{}
	if err := r.header.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if r.header.Compression != CompressionNone {
		return nil, ErrCompressedLayout
	}
	end := len(data) - TrailerSize
	if err := verify(binary.LittleEndian.Uint32(data[end:]), Checksum(data[:end])); err != nil {
		return nil, err
	}
	r.body = data[HeaderSize:end]
	return r, nil
}

// Header returns the decoded file header.
func (r *SliceReader) Header() FileHeader { return r.header }

// Offset returns the body offset of the next read.
func (r *SliceReader) Offset() int { return r.off }

// Remaining returns the number of unread body bytes.
func (r *SliceReader) Remaining() int { return len(r.body) - r.off }

// Bytes returns the next n body bytes without copying.
func (r *SliceReader) Bytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, %d left", ErrTruncated, n, r.off, r.Remaining())
	}
	b := r.body[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Align skips padding up to a multiple of n.
func (r *SliceReader) Align(n int) error {
	_, err := r.Bytes(padding(int64(r.off), n))
	return err
}

func (r *SliceReader) ReadUint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *SliceReader) ReadUint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *SliceReader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// Finish reports an error if body bytes remain unread.
func (r *SliceReader) Finish() error {
	if n := r.Remaining(); n != 0 {
		return fmt.Errorf("%w: %d unread body bytes", ErrInvalidLength, n)
	}
	return nil
}

// ViewSlice returns the next n values as a slice aliasing the data.
func ViewSlice[T Scalar](r *SliceReader, n int) ([]T, error) {
	size := sizeOf[T]()
	if err := checkLength(n, size); err != nil {
		return nil, err
	}
	if err := r.Align(size); err != nil {
		return nil, err
	}
	b, err := r.Bytes(n * size)
	if err != nil {
		return nil, err
	}
	if err := checkAligned[T](b); err != nil {
		return nil, err
	}
	return asSlice[T](b, n), nil
}

// CopySlice is like ViewSlice but returns an independent copy.
func CopySlice[T Scalar](r *SliceReader, n int) ([]T, error) {
	v, err := ViewSlice[T](r, n)
	if err != nil || v == nil {
		return nil, err
	}
	return append([]T(nil), v...), nil
}
