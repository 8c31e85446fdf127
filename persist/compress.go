package persist

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects the payload compression algorithm.
type CompressionType uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD block compression (slower, better ratio).
	CompressionZSTD CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func (c CompressionType) valid() bool {
	return c == CompressionNone || c == CompressionLZ4 || c == CompressionZSTD
}

// CompressionByName resolves a compression name ("none", "lz4", "zstd").
func CompressionByName(name string) (CompressionType, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCompression, name)
	}
}

// ZSTD encoder/decoder pools shared across snapshot operations.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Each block carries an 8-byte header:
// [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 marks a block stored raw.
const blockHeaderSize = 8

const defaultBlockSize = 256 * 1024

// compressBlock compresses one block and prepends its header. Blocks
// that do not shrink below 90% of their input are stored raw.
func compressBlock(data []byte, compressionType CompressionType) ([]byte, error) {
	var compressed []byte
	var err error

	switch compressionType {
	case CompressionLZ4:
		compressed, err = compressBlockLZ4(data)
	case CompressionZSTD:
		compressed, err = compressBlockZSTD(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCompression, uint8(compressionType))
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, blockHeaderSize+len(data))
		byteOrder.PutUint32(result[0:], uint32(len(data)))
		byteOrder.PutUint32(result[4:], 0)
		copy(result[blockHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, blockHeaderSize+len(compressed))
	byteOrder.PutUint32(result[0:], uint32(len(data)))
	byteOrder.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[blockHeaderSize:], compressed)
	return result, nil
}

func compressBlockLZ4(data []byte) ([]byte, error) {
	maxCompressedSize := lz4.CompressBlockBound(len(data))
	compressed := make([]byte, maxCompressedSize)

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return compressed[:n], nil
}

func compressBlockZSTD(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil), nil
}

// BlockWriter splits a payload stream into fixed-size blocks and writes
// each block compressed to the underlying writer.
type BlockWriter struct {
	w               io.Writer
	compressionType CompressionType
	blockSize       int
	buffer          *bytes.Buffer
	written         int64
}

// NewBlockWriter creates a block writer. blockSize <= 0 selects the
// 256KB default.
func NewBlockWriter(w io.Writer, compressionType CompressionType, blockSize int) *BlockWriter {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	return &BlockWriter{
		w:               w,
		compressionType: compressionType,
		blockSize:       blockSize,
		buffer:          bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

// Write buffers p, flushing full blocks as they fill.
func (c *BlockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := c.blockSize - c.buffer.Len()
		if space <= 0 {
			if err := c.FlushBlock(); err != nil {
				return total, err
			}
			space = c.blockSize
		}

		toWrite := len(p)
		if toWrite > space {
			toWrite = space
		}

		n, err := c.buffer.Write(p[:toWrite])
		if err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

// FlushBlock compresses and writes the current block.
func (c *BlockWriter) FlushBlock() error {
	if c.buffer.Len() == 0 {
		return nil
	}

	compressed, err := compressBlock(c.buffer.Bytes(), c.compressionType)
	if err != nil {
		return err
	}

	n, err := c.w.Write(compressed)
	if err != nil {
		return err
	}
	c.written += int64(n)
	c.buffer.Reset()
	return nil
}

// Flush writes any remaining buffered data.
func (c *BlockWriter) Flush() error {
	return c.FlushBlock()
}

// BytesWritten returns the total compressed bytes written.
func (c *BlockWriter) BytesWritten() int64 {
	return c.written
}

// BlockReader walks the blocks of a framed payload held in memory.
type BlockReader struct {
	data            []byte
	offset          int
	compressionType CompressionType
}

// NewBlockReader creates a reader over framed payload bytes.
func NewBlockReader(data []byte, compressionType CompressionType) *BlockReader {
	return &BlockReader{
		data:            data,
		compressionType: compressionType,
	}
}

// ReadBlock reads and decompresses the next block. It returns io.EOF
// once all blocks have been consumed.
func (c *BlockReader) ReadBlock() ([]byte, error) {
	if c.offset >= len(c.data) {
		return nil, io.EOF
	}
	if c.offset+blockHeaderSize > len(c.data) {
		return nil, fmt.Errorf("%w: truncated block header", ErrCorruptedData)
	}

	uncompressedSize := int(byteOrder.Uint32(c.data[c.offset:]))
	compressedSize := int(byteOrder.Uint32(c.data[c.offset+4:]))

	if compressedSize == 0 {
		if c.offset+blockHeaderSize+uncompressedSize > len(c.data) {
			return nil, fmt.Errorf("%w: raw block extends beyond payload", ErrCorruptedData)
		}
		block := c.data[c.offset+blockHeaderSize : c.offset+blockHeaderSize+uncompressedSize]
		c.offset += blockHeaderSize + uncompressedSize
		return block, nil
	}

	if c.offset+blockHeaderSize+compressedSize > len(c.data) {
		return nil, fmt.Errorf("%w: compressed block extends beyond payload", ErrCorruptedData)
	}
	compressedData := c.data[c.offset+blockHeaderSize : c.offset+blockHeaderSize+compressedSize]
	result := make([]byte, uncompressedSize)

	switch c.compressionType {
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressedData, result[:0])
		if err != nil {
			return nil, err
		}
		if len(decoded) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptedData)
		}
		c.offset += blockHeaderSize + compressedSize
		return decoded, nil

	default: // LZ4
		n, err := lz4.UncompressBlock(compressedData, result)
		if err != nil {
			return nil, err
		}
		if n != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptedData)
		}
		c.offset += blockHeaderSize + compressedSize
		return result, nil
	}
}

// DecompressAll reads every block of a framed payload and returns the
// concatenated uncompressed data. CompressionNone payloads are returned
// as-is.
func DecompressAll(data []byte, compressionType CompressionType) ([]byte, error) {
	if compressionType == CompressionNone {
		return data, nil
	}

	reader := NewBlockReader(data, compressionType)
	var result []byte
	for {
		block, err := reader.ReadBlock()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		result = append(result, block...)
	}
	return result, nil
}
