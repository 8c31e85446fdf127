// Package s3 provides an Amazon S3 implementation of the blobstore.Store
// interface, for tiering search checkpoints into object storage.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil { ... }
//
//	store := s3.NewStore(s3.NewFromConfig(cfg), "my-bucket", "checkpoints/")
//
//	mgr := checkpoint.NewManager(store)
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large snapshots
//   - CRC32C integrity validation on writes
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// The CommitStore variant adds a DynamoDB-backed CURRENT pointer with
// conditional writes, so concurrent writers cannot silently clobber each
// other's checkpoints.
package s3
