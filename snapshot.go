package rann

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/neighbor"
	"github.com/hupe1980/rann/persist"
	"github.com/hupe1980/rann/tree/kdtree"
)

// SnapshotOptions configures how a searcher is serialized.
type SnapshotOptions struct {
	// Compression selects the payload block compression.
	Compression persist.CompressionType

	// Encoding selects the float width of stored coordinates. Lossy
	// encodings are only accepted for naive-mode snapshots, because a
	// requantized point could escape the node bounds a stored tree was
	// built with. Lossy encodings also assume coordinates within the
	// target type's range.
	Encoding persist.FloatEncoding
}

// DefaultSnapshotOptions holds the default snapshot configuration.
var DefaultSnapshotOptions = SnapshotOptions{
	Compression: persist.CompressionZSTD,
	Encoding:    persist.EncodingFloat64,
}

// SaveToWriter serializes the searcher's configuration and reference
// structure to w.
func (s *Searcher) SaveToWriter(ctx context.Context, w io.Writer, optFns ...func(o *SnapshotOptions)) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		s.opts.Metrics.RecordSnapshotSave(time.Since(start), err)
	}()

	opts := DefaultSnapshotOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	kind := persist.SnapshotMatrix
	if s.opts.Mode.usesTree() {
		kind = persist.SnapshotKDTree

		if opts.Encoding != persist.EncodingFloat64 {
			err = fmt.Errorf("%w: tree snapshots require float64 encoding", persist.ErrInvalidEncoding)
			return err
		}
	}

	var payload bytes.Buffer
	pw := persist.NewWriter(&payload)

	if err = s.writeConfig(pw); err != nil {
		return err
	}

	switch kind {
	case persist.SnapshotMatrix:
		var encoded []byte
		if encoded, err = persist.EncodeFloats(s.refData.Data(), opts.Encoding); err != nil {
			return err
		}
		if err = pw.WriteBytes(encoded); err != nil {
			return err
		}
	default:
		kt, ok := s.refTree.(*kdtree.Tree)
		if !ok {
			err = fmt.Errorf("%w: %T", ErrUnsupportedTree, s.refTree)
			return err
		}
		if err = writeFlatTree(pw, kt.Flatten()); err != nil {
			return err
		}
	}

	header := &persist.FileHeader{
		Kind:        kind,
		Compression: opts.Compression,
		Encoding:    opts.Encoding,
		Rows:        uint32(s.refData.Rows()),
		Cols:        uint64(s.refData.Cols()),
	}

	err = persist.WriteSnapshot(w, header, payload.Bytes())
	return err
}

// SaveToFile atomically writes a snapshot to the given path.
func (s *Searcher) SaveToFile(ctx context.Context, filename string, optFns ...func(o *SnapshotOptions)) error {
	err := persist.SaveToFile(filename, func(w io.Writer) error {
		return s.SaveToWriter(ctx, w, optFns...)
	})
	s.opts.Logger.LogSnapshot(ctx, filename, err)
	return err
}

func (s *Searcher) writeConfig(pw *persist.Writer) error {
	if err := pw.WriteUint8(uint8(s.opts.Mode)); err != nil {
		return err
	}
	if err := pw.WriteFloat64(s.opts.Tau); err != nil {
		return err
	}
	if err := pw.WriteFloat64(s.opts.Alpha); err != nil {
		return err
	}
	if err := pw.WriteBool(s.opts.SampleAtLeaves); err != nil {
		return err
	}
	if err := pw.WriteBool(s.opts.FirstLeafExact); err != nil {
		return err
	}
	if err := pw.WriteInt32(int32(s.opts.SingleSampleLimit)); err != nil {
		return err
	}
	if err := pw.WriteString(s.opts.Metric.Name()); err != nil {
		return err
	}
	if err := pw.WriteString(s.opts.SortPolicy.Name()); err != nil {
		return err
	}
	if err := pw.WriteInt32(int32(s.opts.LeafSize)); err != nil {
		return err
	}
	return pw.WriteInt64(s.opts.Seed)
}

func writeFlatTree(pw *persist.Writer, f *kdtree.Flat) error {
	if err := pw.WriteInt32(int32(f.LeafSize)); err != nil {
		return err
	}
	if err := pw.WriteString(f.MetricName); err != nil {
		return err
	}
	if err := pw.WriteInt32Slice(toInt32(f.OldFromNew)); err != nil {
		return err
	}
	for _, arena := range [][]int32{f.Begins, f.Ends, f.Lefts, f.Rights} {
		if err := pw.WriteInt32Slice(arena); err != nil {
			return err
		}
	}
	if err := pw.WriteFloat64Slice(f.BoundsMin); err != nil {
		return err
	}
	if err := pw.WriteFloat64Slice(f.BoundsMax); err != nil {
		return err
	}
	return pw.WriteFloat64Slice(f.Data)
}

// LoadFromReader restores a searcher from a snapshot. Structural
// configuration comes from the snapshot; optFns apply on top for runtime
// concerns such as Logger, Metrics, Parallelism and TreeBuilder. A caller
// Seed overrides the stored one.
func LoadFromReader(ctx context.Context, r io.Reader, optFns ...func(o *Options)) (s *Searcher, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := resolveOptions(optFns)

	start := time.Now()
	defer func() {
		opts.Metrics.RecordSnapshotLoad(time.Since(start), err)
	}()

	header, payload, err := persist.ReadSnapshot(r)
	if err != nil {
		return nil, err
	}

	pr := persist.NewReader(bytes.NewReader(payload))

	if err = readConfig(pr, &opts); err != nil {
		return nil, err
	}
	if err = opts.validate(); err != nil {
		return nil, err
	}

	rows := int(header.Rows)
	cols := int(header.Cols)

	switch header.Kind {
	case persist.SnapshotMatrix:
		if opts.Mode.usesTree() {
			return nil, fmt.Errorf("%w: matrix snapshot carries tree mode %s", persist.ErrCorruptedData, opts.Mode)
		}

		raw, rerr := pr.ReadBytes()
		if rerr != nil {
			return nil, rerr
		}
		values, derr := persist.DecodeFloats(raw, rows*cols, header.Encoding)
		if derr != nil {
			return nil, derr
		}
		data, merr := matrix.NewFromData(rows, cols, values)
		if merr != nil {
			return nil, fmt.Errorf("%w: %w", persist.ErrCorruptedData, merr)
		}

		s = &Searcher{opts: opts, refData: data, seed: searchSeed(opts.Seed)}

	case persist.SnapshotKDTree:
		if !opts.Mode.usesTree() {
			return nil, fmt.Errorf("%w: tree snapshot carries naive mode", persist.ErrCorruptedData)
		}

		t, terr := readFlatTree(pr, rows, cols)
		if terr != nil {
			return nil, terr
		}

		s = &Searcher{
			opts:    opts,
			refTree: t,
			refData: t.Dataset(),
			refMap:  t.OldFromNew(),
			seed:    searchSeed(opts.Seed),
		}

	default:
		return nil, fmt.Errorf("%w: %d", persist.ErrInvalidSnapshotKind, header.Kind)
	}

	return s, nil
}

// LoadFromFile restores a searcher from a snapshot file.
func LoadFromFile(ctx context.Context, filename string, optFns ...func(o *Options)) (*Searcher, error) {
	var s *Searcher

	err := persist.LoadFromFile(filename, func(r io.Reader) error {
		loaded, lerr := LoadFromReader(ctx, r, optFns...)
		if lerr != nil {
			return lerr
		}
		s = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.LogSnapshotLoad(ctx, filename, nil)
	return s, nil
}

// readConfig overwrites the structural fields of opts from the snapshot,
// leaving runtime fields as the caller resolved them.
func readConfig(pr *persist.Reader, opts *Options) error {
	rawMode, err := pr.ReadUint8()
	if err != nil {
		return err
	}
	mode := Mode(rawMode)
	if !mode.valid() {
		return fmt.Errorf("%w: unknown mode %d", persist.ErrCorruptedData, rawMode)
	}
	opts.Mode = mode

	if opts.Tau, err = pr.ReadFloat64(); err != nil {
		return err
	}
	if opts.Alpha, err = pr.ReadFloat64(); err != nil {
		return err
	}
	if opts.SampleAtLeaves, err = pr.ReadBool(); err != nil {
		return err
	}
	if opts.FirstLeafExact, err = pr.ReadBool(); err != nil {
		return err
	}

	limit, err := pr.ReadInt32()
	if err != nil {
		return err
	}
	opts.SingleSampleLimit = int(limit)

	metricName, err := pr.ReadString()
	if err != nil {
		return err
	}
	m, err := metric.ByName(metricName)
	if err != nil {
		return fmt.Errorf("%w: %w", persist.ErrCorruptedData, err)
	}
	opts.Metric = m

	policyName, err := pr.ReadString()
	if err != nil {
		return err
	}
	policy, ok := neighbor.ByName(policyName)
	if !ok {
		return fmt.Errorf("%w: unknown sort policy %q", persist.ErrCorruptedData, policyName)
	}
	opts.SortPolicy = policy

	leafSize, err := pr.ReadInt32()
	if err != nil {
		return err
	}
	opts.LeafSize = int(leafSize)

	seed, err := pr.ReadInt64()
	if err != nil {
		return err
	}
	if opts.Seed == 0 {
		opts.Seed = seed
	}

	return nil
}

func readFlatTree(pr *persist.Reader, rows, cols int) (*kdtree.Tree, error) {
	f := &kdtree.Flat{Rows: rows, Cols: cols}

	leafSize, err := pr.ReadInt32()
	if err != nil {
		return nil, err
	}
	f.LeafSize = int(leafSize)

	if f.MetricName, err = pr.ReadString(); err != nil {
		return nil, err
	}

	oldFromNew, err := pr.ReadInt32Slice()
	if err != nil {
		return nil, err
	}
	f.OldFromNew = toInt(oldFromNew)

	for _, arena := range []*[]int32{&f.Begins, &f.Ends, &f.Lefts, &f.Rights} {
		if *arena, err = pr.ReadInt32Slice(); err != nil {
			return nil, err
		}
	}

	if f.BoundsMin, err = pr.ReadFloat64Slice(); err != nil {
		return nil, err
	}
	if f.BoundsMax, err = pr.ReadFloat64Slice(); err != nil {
		return nil, err
	}
	if f.Data, err = pr.ReadFloat64Slice(); err != nil {
		return nil, err
	}

	t, err := kdtree.FromFlat(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", persist.ErrCorruptedData, err)
	}

	return t, nil
}

func toInt32(v []int) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}

func toInt(v []int32) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
