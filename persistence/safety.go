package persistence

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrBigEndian is returned when a zero-copy view is requested on a
	// big-endian host.
	ErrBigEndian = errors.New("big-endian systems are not supported")
	// ErrUnalignedAccess is returned when a section is not aligned for its
	// element type.
	ErrUnalignedAccess = errors.New("unaligned memory access")
)

// Scalar is any fixed-width type stored in a section.
type Scalar interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int32 | ~int64 | ~float32 | ~float64
}

var littleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func checkAligned[T Scalar](b []byte) error {
	if !littleEndian {
		return ErrBigEndian
	}
	if len(b) == 0 {
		return nil
	}
	var zero T
	if p := uintptr(unsafe.Pointer(&b[0])); p%unsafe.Alignof(zero) != 0 {
		return fmt.Errorf("%w: %T section at 0x%x", ErrUnalignedAccess, zero, p)
	}
	return nil
}

// asBytes reinterprets s as raw bytes.
func asBytes[T Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// asSlice reinterprets b as n values of T. The caller checks alignment.
func asSlice[T Scalar](b []byte, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

func sizeOf[T Scalar]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
