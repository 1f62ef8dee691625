// Package s3 stores index snapshots in Amazon S3.
//
// Store is a blobstore.BlobStore over one bucket prefix:
//
//	store, err := s3.NewFromEnv(ctx, "my-bucket", "indexes/")
//	if err != nil { ... }
//	name, err := ix.Publish(ctx, store)
//
// Reads use ranged GETs, large writes go through the multipart uploader,
// and listings follow continuation tokens.
//
// S3 has no compare-and-swap, so two publishers can silently overwrite
// each other's CURRENT pointer. DDBCommitStore moves CURRENT into a
// DynamoDB commit log where each publish claims the next version:
//
//	cs := s3.NewDDBCommitStoreFromConfig(cfg, store, "annkit-commits")
//	if _, err := ix.Publish(ctx, cs); errors.Is(err, s3.ErrCommitConflict) { ... }
//	head, err := cs.Head(ctx) // head.Version, head.Snapshot
package s3
