// Package s3 provides Amazon S3 implementations of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", "deltas/", s3.WithRegion("us-east-1"))
//
// Store keeps CURRENT as a plain object. When more than one publisher can
// move CURRENT, wrap the store in a DDBCommitStore so updates are ordered by
// DynamoDB conditional writes:
//
//	commits := s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), "kvquery-commits", "s3://my-bucket/deltas/")
//
// # Features
//
//   - Ranged GETs for partial reads
//   - Streaming multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Root prefix for multi-tenant buckets
package s3
