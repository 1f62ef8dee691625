package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxSectionBytes bounds the allocation a corrupt length can cause.
const maxSectionBytes = 1 << 40

var zeroPad [8]byte

// Writer writes one index file: header, body and checksum trailer.
type Writer struct {
	crc    *ChecksumWriter
	blocks *blockWriter
	body   io.Writer
	off    int64
	closed bool
}

// NewWriter writes h to w and returns a Writer for the body.
func NewWriter(w io.Writer, h FileHeader) (*Writer, error) {
	if h.Version == 0 {
		h.Version = Version
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	crc := NewChecksumWriter(w)
	hdr, _ := h.MarshalBinary()
	if _, err := crc.Write(hdr); err != nil {
		return nil, err
	}

	bw := &Writer{crc: crc, body: crc}
	if h.Compression != CompressionNone {
		bw.blocks = newBlockWriter(crc, h.Compression)
		bw.body = bw.blocks
	}
	return bw, nil
}

// Write appends raw bytes to the body.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.body.Write(p)
	w.off += int64(n)
	return n, err
}

// Offset returns the number of body bytes written so far.
func (w *Writer) Offset() int64 { return w.off }

// Align pads the body with zeros up to a multiple of n.
func (w *Writer) Align(n int) error {
	pad := padding(w.off, n)
	if pad == 0 {
		return nil
	}
	_, err := w.Write(zeroPad[:pad])
	return err
}

func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (w *Writer) WriteUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (w *Writer) WriteFloat32(v float32) error {
	return w.WriteUint32(math.Float32bits(v))
}

// Close ends the body and appends the checksum trailer. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.blocks != nil {
		if err := w.blocks.Close(); err != nil {
			return err
		}
	}
	var b [TrailerSize]byte
	binary.LittleEndian.PutUint32(b[:], w.crc.Sum())
	_, err := w.crc.w.Write(b[:])
	return err
}

// WriteSlice writes s as raw little-endian values, aligned to its element
// size.
func WriteSlice[T Scalar](w *Writer, s []T) error {
	if err := w.Align(sizeOf[T]()); err != nil {
		return err
	}
	_, err := w.Write(asBytes(s))
	return err
}

// Reader reads an index file written by Writer.
type Reader struct {
	src    io.Reader
	crc    *ChecksumReader
	blocks *blockReader
	body   io.Reader
	header FileHeader
	off    int64
}

// NewReader reads and validates the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	src := r
	if _, ok := r.(*bufio.Reader); !ok {
		src = bufio.NewReaderSize(r, 256*1024)
	}
	crc := NewChecksumReader(src)

	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(crc, hdr); err != nil {
		return nil, unexpected(err)
	}
	br := &Reader{src: src, crc: crc, body: crc}
	if err := br.header.UnmarshalBinary(hdr); err != nil {
		return nil, err
	}
	if br.header.Compression != CompressionNone {
		br.blocks = newBlockReader(crc, br.header.Compression)
		br.body = br.blocks
	}
	return br, nil
}

// Header returns the decoded file header.
func (r *Reader) Header() FileHeader { return r.header }

// Read reads raw body bytes.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	r.off += int64(n)
	return n, err
}

func (r *Reader) readFull(p []byte) error {
	if _, err := io.ReadFull(r, p); err != nil {
		return unexpected(err)
	}
	return nil
}

// Align skips the padding written by Writer.Align.
func (r *Reader) Align(n int) error {
	pad := padding(r.off, n)
	if pad == 0 {
		return nil
	}
	var b [8]byte
	return r.readFull(b[:pad])
}

func (r *Reader) ReadUint32() (uint32, error) {
	var b [4]byte
	if err := r.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	var b [8]byte
	if err := r.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// Finish checks that the body was fully consumed and verifies the
// checksum trailer.
func (r *Reader) Finish() error {
	if r.blocks != nil {
		if err := r.blocks.finish(); err != nil {
			return err
		}
	}
	sum := r.crc.Sum()
	var b [TrailerSize]byte
	if _, err := io.ReadFull(r.src, b[:]); err != nil {
		return unexpected(err)
	}
	return verify(binary.LittleEndian.Uint32(b[:]), sum)
}

// ReadSlice reads n values written by WriteSlice into a new slice.
func ReadSlice[T Scalar](r *Reader, n int) ([]T, error) {
	size := sizeOf[T]()
	if err := checkLength(n, size); err != nil {
		return nil, err
	}
	if err := r.Align(size); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]T, n)
	if err := r.readFull(asBytes(out)); err != nil {
		return nil, err
	}
	return out, nil
}

func checkLength(n, size int) error {
	if n < 0 || int64(n)*int64(size) > maxSectionBytes {
		return fmt.Errorf("%w: %d elements", ErrInvalidLength, n)
	}
	return nil
}

func padding(off int64, n int) int {
	if n <= 1 {
		return 0
	}
	return int((int64(n) - off%int64(n)) % int64(n))
}
