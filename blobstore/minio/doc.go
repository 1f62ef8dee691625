// Package minio provides a BlobStore backed by the MinIO client, for
// MinIO and other S3-compatible servers (Ceph, Garage, SeaweedFS).
//
//	store, err := minioblob.NewFromEndpoint("localhost:9000", "minioadmin", "minioadmin", false, "indexes", "prod/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = ix.Publish(ctx, store, "snapshot-0001.ank")
//
// Writes to CURRENT are plain PUTs. Use the s3 package's DynamoDB commit
// store when several publishers race on the same prefix.
package minio
