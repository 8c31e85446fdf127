package persist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"unsafe"
)

func TestFileHeader_Size(t *testing.T) {
	if size := unsafe.Sizeof(FileHeader{}); size != headerSize {
		t.Fatalf("FileHeader is %d bytes, want %d", size, headerSize)
	}
	if size := binary.Size(FileHeader{}); size != headerSize {
		t.Fatalf("encoded FileHeader is %d bytes, want %d", size, headerSize)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	payload := compressibleData(50_000)

	for _, ct := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(ct.String(), func(t *testing.T) {
			var buf bytes.Buffer
			h := &FileHeader{
				Kind:        SnapshotKDTree,
				Compression: ct,
				Encoding:    EncodingFloat64,
				Rows:        3,
				Cols:        100,
			}
			if err := WriteSnapshot(&buf, h, payload); err != nil {
				t.Fatalf("WriteSnapshot failed: %v", err)
			}
			if h.Magic != MagicNumber || h.Version != FormatVersion {
				t.Fatal("WriteSnapshot did not complete the header")
			}

			got, out, err := ReadSnapshot(&buf)
			if err != nil {
				t.Fatalf("ReadSnapshot failed: %v", err)
			}
			if got.Kind != SnapshotKDTree || got.Rows != 3 || got.Cols != 100 {
				t.Errorf("header mismatch: %+v", got)
			}
			if !bytes.Equal(out, payload) {
				t.Fatalf("payload mismatch: got %d bytes, want %d", len(out), len(payload))
			}
		})
	}
}

func TestReadSnapshot_Validation(t *testing.T) {
	writeValid := func() []byte {
		var buf bytes.Buffer
		h := &FileHeader{
			Kind:        SnapshotMatrix,
			Compression: CompressionNone,
			Encoding:    EncodingFloat64,
			Rows:        2,
			Cols:        4,
		}
		if err := WriteSnapshot(&buf, h, []byte("sections")); err != nil {
			t.Fatalf("WriteSnapshot failed: %v", err)
		}
		return buf.Bytes()
	}

	t.Run("bad magic", func(t *testing.T) {
		data := writeValid()
		data[0] ^= 0xFF
		if _, _, err := ReadSnapshot(bytes.NewReader(data)); !errors.Is(err, ErrInvalidMagic) {
			t.Fatalf("got %v, want ErrInvalidMagic", err)
		}
	})

	t.Run("bad version", func(t *testing.T) {
		data := writeValid()
		data[4] ^= 0xFF
		if _, _, err := ReadSnapshot(bytes.NewReader(data)); !errors.Is(err, ErrInvalidVersion) {
			t.Fatalf("got %v, want ErrInvalidVersion", err)
		}
	})

	t.Run("bad kind", func(t *testing.T) {
		data := writeValid()
		data[8] = 99
		if _, _, err := ReadSnapshot(bytes.NewReader(data)); !errors.Is(err, ErrInvalidSnapshotKind) {
			t.Fatalf("got %v, want ErrInvalidSnapshotKind", err)
		}
	})

	t.Run("payload corruption", func(t *testing.T) {
		data := writeValid()
		data[len(data)-1] ^= 0xFF
		if _, _, err := ReadSnapshot(bytes.NewReader(data)); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("got %v, want ErrChecksumMismatch", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		data := writeValid()
		if _, _, err := ReadSnapshot(bytes.NewReader(data[:len(data)-2])); err == nil {
			t.Fatal("expected error on truncated payload")
		}
	})
}

func TestWriteSnapshot_RejectsInvalid(t *testing.T) {
	var buf bytes.Buffer

	h := &FileHeader{Kind: 0, Compression: CompressionNone, Encoding: EncodingFloat64}
	if err := WriteSnapshot(&buf, h, nil); !errors.Is(err, ErrInvalidSnapshotKind) {
		t.Fatalf("got %v, want ErrInvalidSnapshotKind", err)
	}

	h = &FileHeader{Kind: SnapshotMatrix, Compression: 9, Encoding: EncodingFloat64}
	if err := WriteSnapshot(&buf, h, nil); !errors.Is(err, ErrInvalidCompression) {
		t.Fatalf("got %v, want ErrInvalidCompression", err)
	}

	h = &FileHeader{Kind: SnapshotMatrix, Compression: CompressionNone, Encoding: 9}
	if err := WriteSnapshot(&buf, h, nil); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("got %v, want ErrInvalidEncoding", err)
	}
}
