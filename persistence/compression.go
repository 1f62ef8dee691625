package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects how the file body is stored.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0
	CompressionLZ4  CompressionType = 1
	CompressionZSTD CompressionType = 2
)

var ErrUnknownCompression = errors.New("unknown compression")

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("CompressionType(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

const (
	// blockSize is the uncompressed size of a body block.
	blockSize = 256 * 1024
	// maxBlockSize bounds the allocation a corrupt block header can cause.
	maxBlockSize = 64 << 20
	// Block layout: [uncompressed u32][stored u32, 0 = raw][data]. A block
	// with both sizes zero ends the body.
	blockHeaderSize = 8
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func compressBlock(c CompressionType, src []byte) ([]byte, error) {
	switch c {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlock(src, dst, nil)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(src, nil), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}

func decompressBlock(c CompressionType, src []byte, rawLen int) ([]byte, error) {
	dst := make([]byte, rawLen)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 block is %d bytes, want %d", ErrTruncated, n, rawLen)
		}
		return dst, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return nil, err
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: zstd block is %d bytes, want %d", ErrTruncated, len(out), rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}

// blockWriter buffers the body and emits compressed blocks. Blocks that
// do not shrink below 90% are stored raw.
type blockWriter struct {
	w   io.Writer
	c   CompressionType
	buf []byte
}

func newBlockWriter(w io.Writer, c CompressionType) *blockWriter {
	return &blockWriter{w: w, c: c, buf: make([]byte, 0, blockSize)}
}

func (b *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := min(len(p), blockSize-len(b.buf))
		b.buf = append(b.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(b.buf) == blockSize {
			if err := b.flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (b *blockWriter) flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	packed, err := compressBlock(b.c, b.buf)
	if err != nil {
		return err
	}
	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(b.buf)))
	payload := b.buf
	if len(packed) > 0 && float64(len(packed)) <= float64(len(b.buf))*0.9 {
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(packed)))
		payload = packed
	}
	if _, err := b.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := b.w.Write(payload); err != nil {
		return err
	}
	b.buf = b.buf[:0]
	return nil
}

// Close flushes pending data and writes the end-of-body block.
func (b *blockWriter) Close() error {
	if err := b.flush(); err != nil {
		return err
	}
	var end [blockHeaderSize]byte
	_, err := b.w.Write(end[:])
	return err
}

// blockReader is the streaming inverse of blockWriter.
type blockReader struct {
	r    io.Reader
	c    CompressionType
	cur  []byte
	done bool
}

func newBlockReader(r io.Reader, c CompressionType) *blockReader {
	return &blockReader{r: r, c: c}
}

func (b *blockReader) Read(p []byte) (int, error) {
	for len(b.cur) == 0 {
		if b.done {
			return 0, io.EOF
		}
		if err := b.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.cur)
	b.cur = b.cur[n:]
	return n, nil
}

func (b *blockReader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(b.r, hdr[:]); err != nil {
		return unexpected(err)
	}
	rawLen := binary.LittleEndian.Uint32(hdr[0:4])
	stored := binary.LittleEndian.Uint32(hdr[4:8])
	if rawLen == 0 && stored == 0 {
		b.done = true
		return nil
	}
	if rawLen > maxBlockSize || stored > maxBlockSize {
		return fmt.Errorf("%w: block of %d bytes", ErrInvalidLength, max(rawLen, stored))
	}
	if stored == 0 {
		raw := make([]byte, rawLen)
		if _, err := io.ReadFull(b.r, raw); err != nil {
			return unexpected(err)
		}
		b.cur = raw
		return nil
	}
	packed := make([]byte, stored)
	if _, err := io.ReadFull(b.r, packed); err != nil {
		return unexpected(err)
	}
	raw, err := decompressBlock(b.c, packed, int(rawLen))
	if err != nil {
		return err
	}
	b.cur = raw
	return nil
}

// finish consumes the end-of-body block, failing if body data remains.
func (b *blockReader) finish() error {
	if len(b.cur) > 0 {
		return fmt.Errorf("%w: %d unread body bytes", ErrInvalidLength, len(b.cur))
	}
	if !b.done {
		if err := b.next(); err != nil {
			return err
		}
		if !b.done {
			return fmt.Errorf("%w: trailing body block", ErrInvalidLength)
		}
	}
	return nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrTruncated, io.ErrUnexpectedEOF)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}
