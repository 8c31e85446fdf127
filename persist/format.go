// Package persist implements the binary snapshot format: a fixed file
// header followed by a checksummed, optionally compressed payload of
// serialized sections.
package persist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// MagicNumber identifies snapshot files (ASCII: "RANN").
	MagicNumber = 0x52414E4E
	// FormatVersion is the current snapshot format version (v1.0.0).
	FormatVersion = 0x00010000
)

// SnapshotKind selects which payload layout follows the header.
type SnapshotKind uint8

const (
	// SnapshotMatrix stores the reference dataset as a raw matrix.
	SnapshotMatrix SnapshotKind = 1
	// SnapshotKDTree stores the permuted dataset together with the
	// flattened tree arrays and the old-from-new index mapping.
	SnapshotKDTree SnapshotKind = 2
)

func (k SnapshotKind) String() string {
	switch k {
	case SnapshotMatrix:
		return "matrix"
	case SnapshotKDTree:
		return "kdtree"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrInvalidMagic        = errors.New("invalid magic number")
	ErrInvalidVersion      = errors.New("unsupported format version")
	ErrInvalidSnapshotKind = errors.New("invalid snapshot kind")
	ErrInvalidCompression  = errors.New("invalid compression type")
	ErrInvalidEncoding     = errors.New("invalid float encoding")
	ErrChecksumMismatch    = errors.New("payload checksum mismatch")
	ErrCorruptedData       = errors.New("corrupted snapshot data")
)

// FileHeader is the 64-byte header at the start of every snapshot file.
// All multi-byte fields are little-endian.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	Kind        SnapshotKind
	Compression CompressionType
	Encoding    FloatEncoding
	Padding1    [1]byte
	Rows        uint32 // point dimensionality
	Cols        uint64 // number of reference points
	PayloadSize uint64 // framed payload length in bytes
	Checksum    uint32 // CRC-32 (IEEE) of the framed payload
	Padding2    [4]byte
	Reserved    [24]byte
}

const headerSize = 64

var byteOrder = binary.LittleEndian

// WriteSnapshot frames payload according to h.Compression, completes
// the header (magic, version, size, checksum) and writes both to w.
// Kind, Compression, Encoding, Rows and Cols must be set by the caller.
func WriteSnapshot(w io.Writer, h *FileHeader, payload []byte) error {
	if h.Kind != SnapshotMatrix && h.Kind != SnapshotKDTree {
		return fmt.Errorf("%w: %d", ErrInvalidSnapshotKind, uint8(h.Kind))
	}
	if !h.Compression.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCompression, uint8(h.Compression))
	}
	if h.Encoding.ElemSize() == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEncoding, uint8(h.Encoding))
	}

	framed := payload
	if h.Compression != CompressionNone {
		var buf bytes.Buffer
		bw := NewBlockWriter(&buf, h.Compression, 0)
		if _, err := bw.Write(payload); err != nil {
			return fmt.Errorf("compress payload: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("compress payload: %w", err)
		}
		framed = buf.Bytes()
	}

	h.Magic = MagicNumber
	h.Version = FormatVersion
	h.PayloadSize = uint64(len(framed))
	h.Checksum = crc32.ChecksumIEEE(framed)

	if err := binary.Write(w, byteOrder, h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(framed); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// ReadSnapshot reads and validates a snapshot header, then returns the
// header together with the verified, decompressed payload.
func ReadSnapshot(r io.Reader) (*FileHeader, []byte, error) {
	h := &FileHeader{}
	if err := binary.Read(r, byteOrder, h); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if h.Magic != MagicNumber {
		return nil, nil, fmt.Errorf("%w: got 0x%08X", ErrInvalidMagic, h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, nil, fmt.Errorf("%w: got 0x%08X", ErrInvalidVersion, h.Version)
	}
	if h.Kind != SnapshotMatrix && h.Kind != SnapshotKDTree {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidSnapshotKind, uint8(h.Kind))
	}
	if !h.Compression.valid() {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidCompression, uint8(h.Compression))
	}
	if h.Encoding.ElemSize() == 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidEncoding, uint8(h.Encoding))
	}

	framed := make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, framed); err != nil {
		return nil, nil, fmt.Errorf("read payload: %w", err)
	}
	if sum := crc32.ChecksumIEEE(framed); sum != h.Checksum {
		return nil, nil, fmt.Errorf("%w: stored 0x%08X computed 0x%08X", ErrChecksumMismatch, h.Checksum, sum)
	}

	payload := framed
	if h.Compression != CompressionNone {
		var err error
		payload, err = DecompressAll(framed, h.Compression)
		if err != nil {
			return nil, nil, fmt.Errorf("decompress payload: %w", err)
		}
	}
	return h, payload, nil
}
