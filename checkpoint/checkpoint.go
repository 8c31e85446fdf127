package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/rann"
	"github.com/hupe1980/rann/blobstore"
)

// ErrInvalidName is returned when a checkpoint name is empty or
// contains a path separator.
var ErrInvalidName = errors.New("invalid checkpoint name")

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Retain caps how many versions of each checkpoint name survive a
	// save. Zero keeps everything.
	Retain int

	// UploadLimit throttles snapshot bytes written to the store. Nil
	// uploads at full speed.
	UploadLimit *rate.Limiter

	// Logger receives structured operation logs. Nil disables logging.
	Logger *rann.Logger
}

// Manager saves and loads versioned searcher checkpoints in a blob
// store.
type Manager struct {
	store blobstore.Store
	opts  ManagerOptions
}

// NewManager creates a checkpoint manager over store.
func NewManager(store blobstore.Store, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{}
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	if opts.Retain < 0 {
		opts.Retain = 0
	}
	if opts.Logger == nil {
		opts.Logger = rann.NoopLogger()
	}

	return &Manager{store: store, opts: opts}
}

// Save writes a new checkpoint version of s under name and repoints
// CURRENT at it. On stores with a compare-and-swap CURRENT pointer a
// lost race surfaces as the store's conflict error, with the snapshot
// and manifest of the losing version left behind for the next prune.
func (m *Manager) Save(ctx context.Context, s *rann.Searcher, name string, optFns ...func(o *rann.SnapshotOptions)) (*Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	versions, err := m.versions(ctx, name)
	if err != nil {
		return nil, err
	}
	version := uint64(1)
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}

	snapKey := snapshotKey(name, version)

	wc, err := m.store.Create(ctx, snapKey)
	if err != nil {
		return nil, fmt.Errorf("create snapshot blob: %w", err)
	}

	cw := &countingWriter{w: wc}
	var w io.Writer = cw
	if m.opts.UploadLimit != nil {
		w = &limitedWriter{ctx: ctx, w: w, lim: m.opts.UploadLimit}
	}

	if err := s.SaveToWriter(ctx, w, optFns...); err != nil {
		_ = wc.Close()
		m.discard(ctx, snapKey)
		return nil, err
	}
	if err := wc.Close(); err != nil {
		m.discard(ctx, snapKey)
		return nil, fmt.Errorf("finalize snapshot blob: %w", err)
	}

	manifest := &Manifest{
		FormatVersion: manifestFormatVersion,
		Name:          name,
		Version:       version,
		CreatedAt:     time.Now().UTC(),
		Snapshot:      snapKey,
		SnapshotSize:  cw.n,
		Mode:          s.Mode().String(),
		References:    s.NumReferences(),
		Dimension:     s.Dimension(),
		Tau:           s.Tau(),
		Alpha:         s.Alpha(),
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		m.discard(ctx, snapKey)
		return nil, err
	}

	mKey := manifestKey(name, version)
	if err := m.store.Put(ctx, mKey, data); err != nil {
		m.discard(ctx, snapKey)
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := m.store.Put(ctx, currentKey, []byte(mKey)); err != nil {
		return nil, fmt.Errorf("update CURRENT pointer: %w", err)
	}

	m.prune(ctx, name)

	m.opts.Logger.InfoContext(ctx, "checkpoint saved",
		"name", name,
		"version", version,
		"snapshot", snapKey,
		"size", cw.n,
	)

	return manifest, nil
}

// Load restores a searcher from the latest checkpoint of name. An empty
// name resolves through the CURRENT pointer instead. Runtime options
// merge the way rann.LoadFromReader merges them.
func (m *Manager) Load(ctx context.Context, name string, optFns ...func(o *rann.Options)) (*rann.Searcher, error) {
	manifest, err := m.resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	blob, err := m.store.Open(ctx, manifest.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", manifest.Snapshot, err)
	}
	defer func() { _ = blob.Close() }()

	s, err := rann.LoadFromReader(ctx, io.NewSectionReader(blob, 0, blob.Size()), optFns...)
	if err != nil {
		return nil, err
	}

	m.opts.Logger.InfoContext(ctx, "checkpoint loaded",
		"name", manifest.Name,
		"version", manifest.Version,
		"snapshot", manifest.Snapshot,
	)

	return s, nil
}

// Latest returns the manifest of the newest version of name. Missing
// names report blobstore.ErrNotFound.
func (m *Manager) Latest(ctx context.Context, name string) (*Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	versions, err := m.versions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("checkpoint %s: %w", name, blobstore.ErrNotFound)
	}

	return m.readManifest(ctx, manifestKey(name, versions[len(versions)-1]))
}

// List returns every stored manifest, ordered by name then version.
func (m *Manager) List(ctx context.Context) ([]*Manifest, error) {
	keys, err := m.store.List(ctx, manifestPrefix)
	if err != nil {
		return nil, err
	}

	manifests := make([]*Manifest, 0, len(keys))
	for _, key := range keys {
		manifest, err := m.readManifest(ctx, key)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, manifest)
	}

	sort.Slice(manifests, func(i, j int) bool {
		if manifests[i].Name != manifests[j].Name {
			return manifests[i].Name < manifests[j].Name
		}
		return manifests[i].Version < manifests[j].Version
	})

	return manifests, nil
}

// Delete removes every version of the named checkpoint. A CURRENT
// pointer still referring to it resolves to blobstore.ErrNotFound
// afterwards.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	versions, err := m.versions(ctx, name)
	if err != nil {
		return err
	}

	for _, v := range versions {
		for _, key := range []string{manifestKey(name, v), snapshotKey(name, v)} {
			if err := m.store.Delete(ctx, key); err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *Manager) resolve(ctx context.Context, name string) (*Manifest, error) {
	if name != "" {
		return m.Latest(ctx, name)
	}

	blob, err := m.store.Open(ctx, currentKey)
	if err != nil {
		return nil, fmt.Errorf("resolve CURRENT: %w", err)
	}
	defer func() { _ = blob.Close() }()

	key, err := blobstore.ReadAll(blob)
	if err != nil {
		return nil, fmt.Errorf("resolve CURRENT: %w", err)
	}

	return m.readManifest(ctx, string(key))
}

func (m *Manager) readManifest(ctx context.Context, key string) (*Manifest, error) {
	blob, err := m.store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", key, err)
	}
	defer func() { _ = blob.Close() }()

	data, err := blobstore.ReadAll(blob)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", key, err)
	}
	if manifest.FormatVersion != manifestFormatVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", manifest.FormatVersion, manifestFormatVersion)
	}

	return &manifest, nil
}

// versions returns the stored versions of name in ascending order.
func (m *Manager) versions(ctx context.Context, name string) ([]uint64, error) {
	keys, err := m.store.List(ctx, manifestPrefix+name+"-")
	if err != nil {
		return nil, err
	}

	var versions []uint64
	for _, key := range keys {
		if v, ok := parseVersion(key, name, ".json"); ok {
			versions = append(versions, v)
		}
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// prune removes versions beyond the retention limit. Prune failures are
// logged, not returned; the new checkpoint already committed.
func (m *Manager) prune(ctx context.Context, name string) {
	if m.opts.Retain <= 0 {
		return
	}

	versions, err := m.versions(ctx, name)
	if err != nil {
		m.opts.Logger.WarnContext(ctx, "list checkpoints for pruning", "name", name, "error", err)
		return
	}
	if len(versions) <= m.opts.Retain {
		return
	}

	for _, v := range versions[:len(versions)-m.opts.Retain] {
		for _, key := range []string{manifestKey(name, v), snapshotKey(name, v)} {
			if err := m.store.Delete(ctx, key); err != nil {
				m.opts.Logger.WarnContext(ctx, "prune checkpoint", "key", key, "error", err)
			}
		}
	}
}

// discard removes a partially written snapshot blob. It runs on error
// paths, so it survives an already canceled context.
func (m *Manager) discard(ctx context.Context, key string) {
	if err := m.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		m.opts.Logger.WarnContext(ctx, "discard partial snapshot", "key", key, "error", err)
	}
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}

// limitedWriter throttles writes against a token bucket, chunking large
// writes to the limiter's burst.
type limitedWriter struct {
	ctx context.Context
	w   io.Writer
	lim *rate.Limiter
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := len(p) - written
		if burst := w.lim.Burst(); burst > 0 && chunk > burst {
			chunk = burst
		}
		if err := w.lim.WaitN(w.ctx, chunk); err != nil {
			return written, err
		}

		n, err := w.w.Write(p[written : written+chunk])
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}
