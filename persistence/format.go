package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/annkit/space"
)

const (
	// HeaderSize is the fixed size of FileHeader on disk.
	HeaderSize = 64
	// TrailerSize is the size of the CRC32 trailer.
	TrailerSize = 4
	// Version is the current file format version.
	Version uint16 = 1
)

// Magic identifies annkit index files.
var Magic = [4]byte{'A', 'N', 'K', '0'}

var (
	ErrInvalidMagic     = errors.New("invalid magic number")
	ErrInvalidVersion   = errors.New("unsupported version")
	ErrInvalidIndex     = errors.New("invalid index type")
	ErrInvalidElemKind  = errors.New("invalid element kind")
	ErrTruncated        = errors.New("truncated index data")
	ErrInvalidLength    = errors.New("invalid section length")
	ErrCompressedLayout = errors.New("compressed index cannot be memory-mapped")
)

// IndexType identifies the backend that wrote a file.
type IndexType uint8

const (
	IndexTypeFlat IndexType = 1
	IndexTypeHNSW IndexType = 2
)

func (t IndexType) String() string {
	switch t {
	case IndexTypeFlat:
		return "FLAT"
	case IndexTypeHNSW:
		return "HNSW"
	default:
		return fmt.Sprintf("IndexType(%d)", uint8(t))
	}
}

// ElemKind identifies the vector element type.
type ElemKind uint8

const (
	ElemFloat32 ElemKind = 1
	ElemUint8   ElemKind = 2
)

func (k ElemKind) String() string {
	switch k {
	case ElemFloat32:
		return "float32"
	case ElemUint8:
		return "uint8"
	default:
		return fmt.Sprintf("ElemKind(%d)", uint8(k))
	}
}

// Size returns the byte width of one element.
func (k ElemKind) Size() int {
	if k == ElemUint8 {
		return 1
	}
	return 4
}

// ElemKindOf returns the ElemKind for E.
func ElemKindOf[E space.Element]() ElemKind {
	var zero E
	if _, ok := any(zero).(uint8); ok {
		return ElemUint8
	}
	return ElemFloat32
}

// FileHeader is the fixed header at the start of every index file.
//
//	0:4   magic "ANK0"
//	4:6   version
//	6     index type
//	7     element kind
//	8     metric
//	9     body compression
//	10:12 flags
//	12:16 dimension
//	16:24 row count
//	24:64 reserved
type FileHeader struct {
	Version     uint16
	IndexType   IndexType
	ElemKind    ElemKind
	Metric      space.Metric
	Compression CompressionType
	Flags       uint16
	Dim         uint32
	Count       uint64
}

// MarshalBinary encodes h into its on-disk form.
func (h *FileHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	h.encode(b)
	return b, nil
}

func (h *FileHeader) encode(b []byte) {
	copy(b[0:4], Magic[:])
	v := h.Version
	if v == 0 {
		v = Version
	}
	binary.LittleEndian.PutUint16(b[4:6], v)
	b[6] = byte(h.IndexType)
	b[7] = byte(h.ElemKind)
	b[8] = byte(h.Metric)
	b[9] = byte(h.Compression)
	binary.LittleEndian.PutUint16(b[10:12], h.Flags)
	binary.LittleEndian.PutUint32(b[12:16], h.Dim)
	binary.LittleEndian.PutUint64(b[16:24], h.Count)
}

// UnmarshalBinary decodes and validates a header.
func (h *FileHeader) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(b))
	}
	if [4]byte(b[0:4]) != Magic {
		return fmt.Errorf("%w: got %q", ErrInvalidMagic, b[0:4])
	}
	*h = FileHeader{
		Version:     binary.LittleEndian.Uint16(b[4:6]),
		IndexType:   IndexType(b[6]),
		ElemKind:    ElemKind(b[7]),
		Metric:      space.Metric(b[8]),
		Compression: CompressionType(b[9]),
		Flags:       binary.LittleEndian.Uint16(b[10:12]),
		Dim:         binary.LittleEndian.Uint32(b[12:16]),
		Count:       binary.LittleEndian.Uint64(b[16:24]),
	}
	return h.validate()
}

func (h *FileHeader) validate() error {
	if h.Version != Version {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	if h.IndexType != IndexTypeFlat && h.IndexType != IndexTypeHNSW {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, uint8(h.IndexType))
	}
	if h.ElemKind != ElemFloat32 && h.ElemKind != ElemUint8 {
		return fmt.Errorf("%w: %d", ErrInvalidElemKind, uint8(h.ElemKind))
	}
	if _, err := space.ParseMetric(h.Metric.String()); err != nil {
		return err
	}
	if h.Compression > CompressionZSTD {
		return fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(h.Compression))
	}
	return nil
}

// PeekHeader decodes the header at the start of data without consuming
// anything.
func PeekHeader(data []byte) (*FileHeader, error) {
	var h FileHeader
	if err := h.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &h, nil
}
