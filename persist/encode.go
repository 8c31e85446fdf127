package persist

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/x448/float16"
)

// FloatEncoding selects the on-disk representation of the dataset
// matrix. Narrower encodings trade precision for snapshot size.
type FloatEncoding uint8

const (
	// EncodingFloat64 stores values verbatim.
	EncodingFloat64 FloatEncoding = 0
	// EncodingFloat32 stores values as IEEE 754 single precision.
	EncodingFloat32 FloatEncoding = 1
	// EncodingFloat16 stores values as IEEE 754 half precision.
	EncodingFloat16 FloatEncoding = 2
)

func (e FloatEncoding) String() string {
	switch e {
	case EncodingFloat64:
		return "float64"
	case EncodingFloat32:
		return "float32"
	case EncodingFloat16:
		return "float16"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// ElemSize returns the encoded size of one value in bytes, or 0 for an
// unknown encoding.
func (e FloatEncoding) ElemSize() int {
	switch e {
	case EncodingFloat64:
		return 8
	case EncodingFloat32:
		return 4
	case EncodingFloat16:
		return 2
	default:
		return 0
	}
}

// EncodingByName resolves an encoding name ("float64", "float32",
// "float16").
func EncodingByName(name string) (FloatEncoding, error) {
	switch name {
	case "float64", "f64", "":
		return EncodingFloat64, nil
	case "float32", "f32":
		return EncodingFloat32, nil
	case "float16", "f16":
		return EncodingFloat16, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidEncoding, name)
	}
}

// EncodeFloats converts values to the encoding's wire form. For
// EncodingFloat64 the result is a view of the input's backing array.
func EncodeFloats(values []float64, enc FloatEncoding) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	switch enc {
	case EncodingFloat64:
		if err := validateFloat64SliceAlignment(values); err != nil {
			return nil, err
		}
		return unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*8), nil
	case EncodingFloat32:
		buf := make([]byte, len(values)*4)
		for i, v := range values {
			byteOrder.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
		return buf, nil
	case EncodingFloat16:
		buf := make([]byte, len(values)*2)
		for i, v := range values {
			byteOrder.PutUint16(buf[i*2:], float16.Fromfloat32(float32(v)).Bits())
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidEncoding, uint8(enc))
	}
}

// DecodeFloats parses count values from the encoding's wire form.
func DecodeFloats(data []byte, count int, enc FloatEncoding) ([]float64, error) {
	elem := enc.ElemSize()
	if elem == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEncoding, uint8(enc))
	}
	if len(data) != count*elem {
		return nil, fmt.Errorf("%w: encoded data is %d bytes, want %d", ErrCorruptedData, len(data), count*elem)
	}
	if count == 0 {
		return nil, nil
	}

	values := make([]float64, count)
	switch enc {
	case EncodingFloat64:
		byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), count*8)
		copy(byteSlice, data)
	case EncodingFloat32:
		for i := range values {
			values[i] = float64(math.Float32frombits(byteOrder.Uint32(data[i*4:])))
		}
	case EncodingFloat16:
		for i := range values {
			values[i] = float64(float16.Frombits(byteOrder.Uint16(data[i*2:])).Float32())
		}
	}
	return values, nil
}
