// Package persistence implements the binary file format shared by every
// index backend.
//
// A file is a 64-byte FileHeader, a body written by the backend, and a
// 4-byte CRC32 trailer covering everything before it. The body may be
// split into LZ4 or ZSTD compressed blocks; uncompressed bodies can be
// memory-mapped and viewed in place.
//
// Zero-copy views require a little-endian host and naturally aligned
// sections. Writers pad with Align so readers can view sections directly.
package persistence
