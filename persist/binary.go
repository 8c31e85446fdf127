package persist

import (
	"fmt"
	"io"
	"math"
	"unsafe"
)

// maxSliceElems bounds length prefixes read from untrusted input.
const maxSliceElems = 1 << 40

// Writer serializes snapshot payload sections in little-endian binary
// form. Slice payloads are written through an unsafe byte view of the
// backing array, so no intermediate copy is made.
type Writer struct {
	w       io.Writer
	scratch [8]byte
}

// NewWriter creates a new payload writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (pw *Writer) WriteUint8(v uint8) error {
	pw.scratch[0] = v
	_, err := pw.w.Write(pw.scratch[:1])
	return err
}

func (pw *Writer) WriteBool(v bool) error {
	if v {
		return pw.WriteUint8(1)
	}
	return pw.WriteUint8(0)
}

func (pw *Writer) WriteUint32(v uint32) error {
	byteOrder.PutUint32(pw.scratch[:4], v)
	_, err := pw.w.Write(pw.scratch[:4])
	return err
}

func (pw *Writer) WriteUint64(v uint64) error {
	byteOrder.PutUint64(pw.scratch[:8], v)
	_, err := pw.w.Write(pw.scratch[:8])
	return err
}

func (pw *Writer) WriteInt32(v int32) error {
	return pw.WriteUint32(uint32(v))
}

func (pw *Writer) WriteInt64(v int64) error {
	return pw.WriteUint64(uint64(v))
}

func (pw *Writer) WriteFloat64(v float64) error {
	return pw.WriteUint64(math.Float64bits(v))
}

// WriteString writes a length-prefixed UTF-8 string.
func (pw *Writer) WriteString(s string) error {
	if err := pw.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(pw.w, s)
	return err
}

// WriteBytes writes a length-prefixed byte slice.
func (pw *Writer) WriteBytes(b []byte) error {
	if err := pw.WriteUint64(uint64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := pw.w.Write(b)
	return err
}

// WriteFloat64Slice writes a length-prefixed float64 slice as raw bytes.
// Safety: validates alignment before the unsafe conversion.
func (pw *Writer) WriteFloat64Slice(vec []float64) error {
	if err := pw.WriteUint64(uint64(len(vec))); err != nil {
		return err
	}
	if len(vec) == 0 {
		return nil
	}
	if err := validateFloat64SliceAlignment(vec); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*8)
	_, err := pw.w.Write(byteSlice)
	return err
}

// WriteInt32Slice writes a length-prefixed int32 slice as raw bytes.
// Safety: validates alignment before the unsafe conversion.
func (pw *Writer) WriteInt32Slice(slice []int32) error {
	if err := pw.WriteUint64(uint64(len(slice))); err != nil {
		return err
	}
	if len(slice) == 0 {
		return nil
	}
	if err := validateInt32SliceAlignment(slice); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*4)
	_, err := pw.w.Write(byteSlice)
	return err
}

// Reader parses snapshot payload sections written by Writer.
type Reader struct {
	r       io.Reader
	scratch [8]byte
}

// NewReader creates a new payload reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (pr *Reader) ReadUint8() (uint8, error) {
	if _, err := io.ReadFull(pr.r, pr.scratch[:1]); err != nil {
		return 0, err
	}
	return pr.scratch[0], nil
}

func (pr *Reader) ReadBool() (bool, error) {
	v, err := pr.ReadUint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte %d", ErrCorruptedData, v)
	}
}

func (pr *Reader) ReadUint32() (uint32, error) {
	if _, err := io.ReadFull(pr.r, pr.scratch[:4]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(pr.scratch[:4]), nil
}

func (pr *Reader) ReadUint64() (uint64, error) {
	if _, err := io.ReadFull(pr.r, pr.scratch[:8]); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(pr.scratch[:8]), nil
}

func (pr *Reader) ReadInt32() (int32, error) {
	v, err := pr.ReadUint32()
	return int32(v), err
}

func (pr *Reader) ReadInt64() (int64, error) {
	v, err := pr.ReadUint64()
	return int64(v), err
}

func (pr *Reader) ReadFloat64() (float64, error) {
	v, err := pr.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a length-prefixed UTF-8 string.
func (pr *Reader) ReadString() (string, error) {
	n, err := pr.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if uint64(n) > maxSliceElems {
		return "", fmt.Errorf("%w: string length %d", ErrCorruptedData, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(pr.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBytes reads a length-prefixed byte slice.
func (pr *Reader) ReadBytes() ([]byte, error) {
	n, err := pr.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > maxSliceElems {
		return nil, fmt.Errorf("%w: byte slice length %d", ErrCorruptedData, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(pr.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFloat64Slice reads a length-prefixed float64 slice. The freshly
// allocated destination is read through an unsafe byte view, so no
// intermediate copy is made.
func (pr *Reader) ReadFloat64Slice() ([]float64, error) {
	n, err := pr.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > maxSliceElems {
		return nil, fmt.Errorf("%w: float64 slice length %d", ErrCorruptedData, n)
	}
	vec := make([]float64, n)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), int(n)*8)
	if _, err := io.ReadFull(pr.r, byteSlice); err != nil {
		return nil, err
	}
	return vec, nil
}

// ReadInt32Slice reads a length-prefixed int32 slice.
func (pr *Reader) ReadInt32Slice() ([]int32, error) {
	n, err := pr.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > maxSliceElems {
		return nil, fmt.Errorf("%w: int32 slice length %d", ErrCorruptedData, n)
	}
	slice := make([]int32, n)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), int(n)*4)
	if _, err := io.ReadFull(pr.r, byteSlice); err != nil {
		return nil, err
	}
	return slice, nil
}
