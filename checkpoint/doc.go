// Package checkpoint versions searcher snapshots in a blob store.
//
// Every save writes an immutable snapshot blob and a JSON manifest
// describing it, both named "<name>-<version>" with a monotonically
// increasing version, then repoints the CURRENT pointer at the new
// manifest. Loads resolve CURRENT, or the latest version of a name,
// and stream the snapshot back into a searcher.
//
// # Basic Usage
//
//	store := blobstore.NewLocalStore("/var/lib/rann")
//	mgr := checkpoint.NewManager(store, func(o *checkpoint.ManagerOptions) {
//	    o.Retain = 3
//	})
//
//	if _, err := mgr.Save(ctx, s, "products"); err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := mgr.Load(ctx, "products")
//
// The manager assumes one writer per checkpoint name. Concurrent
// writers against shared storage need the compare-and-swap CURRENT
// pointer of an s3.CommitStore, which turns lost races into
// ErrConcurrentModification instead of silent overwrites.
package checkpoint
