// Package minio provides a BlobStore on the MinIO client, for MinIO and
// other S3 compatible services such as Ceph, SeaweedFS and Garage.
//
// # Usage
//
//	store, err := minio.New(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	}, "kvquery", "deltas/")
//
// Unlike s3.DDBCommitStore there is no conditional write guarding CURRENT;
// use a single publisher per prefix.
package minio
