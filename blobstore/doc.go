// Package blobstore abstracts where snapshot bytes live.
//
// A Store holds named immutable blobs. The package ships three families of
// backends: MemoryStore for tests and ephemeral use, LocalStore for
// directory-rooted files with memory-mapped reads, and the cloud backends
// in the s3 and minio subpackages for checkpoint tiering.
//
// # Usage
//
//	store := blobstore.NewLocalStore("/var/lib/rann")
//
//	if err := store.Put(ctx, "refs.rann", data); err != nil { ... }
//
//	blob, err := store.Open(ctx, "refs.rann")
//	if err != nil { ... }
//	defer blob.Close()
//
//	r := io.NewSectionReader(blob, 0, blob.Size())
//
// Blobs implement io.ReaderAt, so they plug straight into section readers
// and the snapshot loading paths. Backends that can expose their bytes
// without copying additionally implement Mappable.
package blobstore
