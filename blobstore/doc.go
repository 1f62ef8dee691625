// Package blobstore provides the storage abstraction serialized indexes
// are saved to and loaded from.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process maps, for tests
//   - LocalStore: local filesystem with mmap-backed blobs
//   - CachingStore: block cache in front of a remote store
//   - s3.Store, s3.DDBCommitStore: Amazon S3, optionally with a DynamoDB
//     commit log for the CURRENT pointer
//   - minio.Store: MinIO and other S3-compatible services
//
// # Snapshots
//
// Published snapshots are ordinary blobs. The CURRENT blob holds the name
// of the latest one; ReadCurrent and WriteCurrent access it. Stores that
// need atomic pointer updates, such as s3.DDBCommitStore, intercept writes
// to CURRENT.
package blobstore
