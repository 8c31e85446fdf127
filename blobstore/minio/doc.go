// Package minio stores searcher snapshots in MinIO or any S3-compatible
// object storage using the official MinIO Go client.
//
// It serves deployments that keep snapshots off AWS: self-hosted MinIO,
// Ceph, SeaweedFS, Garage, or any endpoint speaking the S3 protocol.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "snapshots/")
//	mgr := checkpoint.NewManager(store)
//	s, err := mgr.Load(ctx, "searcher")
//
// # Features
//
//   - Native MinIO client, no AWS SDK required
//   - Works with any S3-compatible storage (Ceph, Garage, SeaweedFS)
//   - Streaming uploads for large snapshots
//   - Range reads so loads fetch only what they touch
package minio
