package persist

import (
	"math"
	"testing"
)

func TestEncodeDecodeFloats(t *testing.T) {
	values := []float64{0, 1, -1, 0.5, 3.25, -127.75, 1e-3}

	t.Run("float64 exact", func(t *testing.T) {
		data, err := EncodeFloats(values, EncodingFloat64)
		if err != nil {
			t.Fatalf("EncodeFloats failed: %v", err)
		}
		if len(data) != len(values)*8 {
			t.Fatalf("encoded %d bytes, want %d", len(data), len(values)*8)
		}
		got, err := DecodeFloats(data, len(values), EncodingFloat64)
		if err != nil {
			t.Fatalf("DecodeFloats failed: %v", err)
		}
		for i, v := range values {
			if got[i] != v {
				t.Errorf("value %d: got %v, want %v", i, got[i], v)
			}
		}
	})

	t.Run("float32 near exact", func(t *testing.T) {
		data, err := EncodeFloats(values, EncodingFloat32)
		if err != nil {
			t.Fatalf("EncodeFloats failed: %v", err)
		}
		if len(data) != len(values)*4 {
			t.Fatalf("encoded %d bytes, want %d", len(data), len(values)*4)
		}
		got, err := DecodeFloats(data, len(values), EncodingFloat32)
		if err != nil {
			t.Fatalf("DecodeFloats failed: %v", err)
		}
		for i, v := range values {
			if got[i] != float64(float32(v)) {
				t.Errorf("value %d: got %v, want %v", i, got[i], float64(float32(v)))
			}
		}
	})

	t.Run("float16 lossy", func(t *testing.T) {
		data, err := EncodeFloats(values, EncodingFloat16)
		if err != nil {
			t.Fatalf("EncodeFloats failed: %v", err)
		}
		if len(data) != len(values)*2 {
			t.Fatalf("encoded %d bytes, want %d", len(data), len(values)*2)
		}
		got, err := DecodeFloats(data, len(values), EncodingFloat16)
		if err != nil {
			t.Fatalf("DecodeFloats failed: %v", err)
		}
		for i, v := range values {
			if v == 0 {
				if got[i] != 0 {
					t.Errorf("value %d: got %v, want 0", i, got[i])
				}
				continue
			}
			rel := math.Abs(got[i]-v) / math.Abs(v)
			if rel > 1e-3 {
				t.Errorf("value %d: got %v, want %v within 0.1%%", i, got[i], v)
			}
		}
	})
}

func TestDecodeFloats_LengthMismatch(t *testing.T) {
	data := make([]byte, 10)
	if _, err := DecodeFloats(data, 3, EncodingFloat32); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestEncodingByName(t *testing.T) {
	for name, want := range map[string]FloatEncoding{
		"float64": EncodingFloat64,
		"f64":     EncodingFloat64,
		"":        EncodingFloat64,
		"float32": EncodingFloat32,
		"f16":     EncodingFloat16,
	} {
		got, err := EncodingByName(name)
		if err != nil {
			t.Fatalf("EncodingByName(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("EncodingByName(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := EncodingByName("bfloat16"); err == nil {
		t.Fatal("expected error for unknown encoding name")
	}
}
