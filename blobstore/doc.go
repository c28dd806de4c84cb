// Package blobstore abstracts where delta files live.
//
// A store holds immutable delta files named by commit time plus a CURRENT
// blob that names the newest fully written file. Writers upload the delta
// first and move CURRENT afterwards; readers list the delta files and stop at
// whatever CURRENT names.
//
// # Implementations
//
//   - MemoryStore: in-process maps, for tests and embedded use
//   - LocalStore: a local directory with mmap reads and atomic renames
//   - s3.Store and s3.DDBCommitStore: Amazon S3, optionally with DynamoDB
//     conditional writes guarding CURRENT
//   - minio.Store: MinIO and other S3 compatible services
//
// All implementations are safe for concurrent use.
package blobstore
