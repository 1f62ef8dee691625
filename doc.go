// Package annkit builds and queries approximate-nearest-neighbor indexes
// over float32 or packed binary vectors.
//
// Every operation takes a JSON parameter document that is validated
// against the index kind's schema for the operation's phase before the
// index is touched. Parameters that do not belong to the phase are
// ignored, absent parameters take their defaults, and the first invalid
// parameter is reported with a one-line message.
//
// # Index Kinds
//
//   - FLAT: exhaustive scan, exact results
//   - HNSW: hierarchical navigable small world graph
//
// # Quick Start
//
//	ctx := context.Background()
//	ix, err := annkit.New[float32]("HNSW")
//	if err != nil {
//	    panic(err)
//	}
//	defer ix.Close()
//
//	err = ix.Build(ctx, annkit.Dataset[float32]{Vectors: vectors},
//	    config.MustParseDocument(`{"metric_type": "L2", "M": 16, "efConstruction": 200}`))
//
//	res, err := ix.Search(ctx, queries, config.MustParseDocument(`{"k": 10, "ef": 64}`), nil)
//	for i := range queries {
//	    labels, dists := res.Row(i)
//	    fmt.Println(labels, dists)
//	}
//
// # Range Search
//
// For distance metrics (L2, HAMMING, JACCARD) a range search returns
// rows with range_filter <= distance <= radius. For similarity metrics
// (IP, COSINE) it returns rows with radius <= score <= range_filter.
//
//	res, err := ix.RangeSearch(ctx, queries, config.MustParseDocument(`{"radius": 4.5}`), nil)
//
// # Persistence
//
// Indexes serialize to a checksummed binary format, optionally block
// compressed with LZ4 or Zstandard. Uncompressed files can be memory
// mapped with enable_mmap. Snapshots can be published to any
// blobstore.BlobStore (local disk, memory, S3, MinIO) behind a CURRENT
// pointer:
//
//	name, err := ix.Publish(ctx, store)
//	err = replica.OpenLatest(ctx, store, config.MustParseDocument(`{"enable_mmap": true}`))
package annkit
