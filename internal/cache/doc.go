// Package cache provides an LRU cache for fixed-size blocks of remote
// blobs. Cached bytes are charged against a resource.Controller when one
// is given.
package cache
