package persist

import (
	"bytes"
	"io"
	"math"
	"path/filepath"
	"testing"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	floats := []float64{1.5, -2.25, 0, math.Pi}
	ints := []int32{0, -7, 1 << 20}

	if err := w.WriteUint8(42); err != nil {
		t.Fatalf("WriteUint8 failed: %v", err)
	}
	if err := w.WriteBool(true); err != nil {
		t.Fatalf("WriteBool failed: %v", err)
	}
	if err := w.WriteUint32(0xDEADBEEF); err != nil {
		t.Fatalf("WriteUint32 failed: %v", err)
	}
	if err := w.WriteInt64(-123456789); err != nil {
		t.Fatalf("WriteInt64 failed: %v", err)
	}
	if err := w.WriteFloat64(2.75); err != nil {
		t.Fatalf("WriteFloat64 failed: %v", err)
	}
	if err := w.WriteString("l2"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if err := w.WriteFloat64Slice(floats); err != nil {
		t.Fatalf("WriteFloat64Slice failed: %v", err)
	}
	if err := w.WriteInt32Slice(ints); err != nil {
		t.Fatalf("WriteInt32Slice failed: %v", err)
	}
	if err := w.WriteFloat64Slice(nil); err != nil {
		t.Fatalf("WriteFloat64Slice(nil) failed: %v", err)
	}

	r := NewReader(&buf)

	if v, err := r.ReadUint8(); err != nil || v != 42 {
		t.Fatalf("ReadUint8 = %d, %v; want 42", v, err)
	}
	if v, err := r.ReadBool(); err != nil || v != true {
		t.Fatalf("ReadBool = %v, %v; want true", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadUint32 = 0x%X, %v; want 0xDEADBEEF", v, err)
	}
	if v, err := r.ReadInt64(); err != nil || v != -123456789 {
		t.Fatalf("ReadInt64 = %d, %v; want -123456789", v, err)
	}
	if v, err := r.ReadFloat64(); err != nil || v != 2.75 {
		t.Fatalf("ReadFloat64 = %f, %v; want 2.75", v, err)
	}
	if v, err := r.ReadString(); err != nil || v != "l2" {
		t.Fatalf("ReadString = %q, %v; want \"l2\"", v, err)
	}

	gotFloats, err := r.ReadFloat64Slice()
	if err != nil {
		t.Fatalf("ReadFloat64Slice failed: %v", err)
	}
	if len(gotFloats) != len(floats) {
		t.Fatalf("ReadFloat64Slice length = %d, want %d", len(gotFloats), len(floats))
	}
	for i, v := range floats {
		if gotFloats[i] != v {
			t.Errorf("float64 mismatch at %d: got %f, want %f", i, gotFloats[i], v)
		}
	}

	gotInts, err := r.ReadInt32Slice()
	if err != nil {
		t.Fatalf("ReadInt32Slice failed: %v", err)
	}
	for i, v := range ints {
		if gotInts[i] != v {
			t.Errorf("int32 mismatch at %d: got %d, want %d", i, gotInts[i], v)
		}
	}

	empty, err := r.ReadFloat64Slice()
	if err != nil {
		t.Fatalf("ReadFloat64Slice(empty) failed: %v", err)
	}
	if empty != nil {
		t.Errorf("empty slice round-trip = %v, want nil", empty)
	}
}

func TestReader_Truncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFloat64Slice([]float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteFloat64Slice failed: %v", err)
	}

	short := buf.Bytes()[:buf.Len()-8]
	r := NewReader(bytes.NewReader(short))
	if _, err := r.ReadFloat64Slice(); err == nil {
		t.Fatal("expected error reading truncated slice")
	}
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.rann")

	data := []float64{1.1, 2.2, 3.3, 4.4}
	err := SaveToFile(path, func(w io.Writer) error {
		return NewWriter(w).WriteFloat64Slice(data)
	})
	if err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	var loaded []float64
	err = LoadFromFile(path, func(r io.Reader) error {
		var err error
		loaded, err = NewReader(r).ReadFloat64Slice()
		return err
	})
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	for i, v := range data {
		if loaded[i] != v {
			t.Errorf("value mismatch at %d: got %f, want %f", i, loaded[i], v)
		}
	}
}

func TestSaveToFile_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.rann")

	for _, marker := range []uint32{1, 2} {
		err := SaveToFile(path, func(w io.Writer) error {
			return NewWriter(w).WriteUint32(marker)
		})
		if err != nil {
			t.Fatalf("SaveToFile failed: %v", err)
		}
	}

	err := LoadFromFile(path, func(r io.Reader) error {
		v, err := NewReader(r).ReadUint32()
		if err != nil {
			return err
		}
		if v != 2 {
			t.Errorf("loaded marker = %d, want 2", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
}

func BenchmarkWriteFloat64Slice(b *testing.B) {
	vec := make([]float64, 128)
	for i := range vec {
		vec[i] = float64(i)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)

	b.ResetTimer()
	for b.Loop() {
		buf.Reset()
		w.WriteFloat64Slice(vec)
	}
}
