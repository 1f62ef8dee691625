// Package index defines the contract every ANN backend implements and the
// helpers they share: exhaustive scans, result merging, batch insertion,
// query validation and persisted-format dispatch.
//
// Backends live in subpackages:
//
//   - flat: exact search over a contiguous row arena
//   - hnsw: approximate search over a hierarchical navigable small world graph
//
// Distances are always "smaller is closer". Similarity metrics (IP,
// COSINE) are represented internally as 1 - similarity; callers convert
// with space.Metric.ToScore.
package index
