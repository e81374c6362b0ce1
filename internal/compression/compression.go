// Package compression provides the codecs used for the SSTable body.
//
// The body of an SSTable is a single compressed stream holding the
// back-to-back encoded entries. The header carries no codec indicator, so
// the codec is fixed per deployment (an engine option) and must match
// between the process that wrote the file and the one reading it.
//
// Readers are streaming: the iterator pulls decompressed bytes
// incrementally through NewReader without materializing the whole body.
// Compress/Decompress operate on whole buffers and exist for the
// independent verifier and for table builders; their output is framed the
// same way as the streaming variants, so both paths read each other's
// bytes.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type represents a compression codec.
type Type uint8

const (
	// NoCompression stores the body uncompressed.
	NoCompression Type = 0x0

	// SnappyCompression uses the Snappy stream framing format.
	SnappyCompression Type = 0x1

	// LZ4Compression uses the LZ4 frame format.
	LZ4Compression Type = 0x2

	// ZstdCompression uses the Zstandard frame format.
	ZstdCompression Type = 0x3
)

// String returns the human-readable name of the compression type.
func (t Type) String() string {
	switch t {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case LZ4Compression:
		return "lz4"
	case ZstdCompression:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsSupported returns true if the compression type is supported.
func (t Type) IsSupported() bool {
	switch t {
	case NoCompression, SnappyCompression, LZ4Compression, ZstdCompression:
		return true
	default:
		return false
	}
}

// ParseType maps a codec name (as accepted by CLI flags and config) to its
// Type.
func ParseType(name string) (Type, error) {
	switch name {
	case "none":
		return NoCompression, nil
	case "snappy":
		return SnappyCompression, nil
	case "lz4":
		return LZ4Compression, nil
	case "zstd":
		return ZstdCompression, nil
	default:
		return 0, fmt.Errorf("unknown compression codec %q", name)
	}
}

// NewReader wraps r in a streaming decompressor for the given codec.
// The returned reader yields decompressed bytes; Close releases codec
// resources but does not close r.
func NewReader(t Type, r io.Reader) (io.ReadCloser, error) {
	switch t {
	case NoCompression:
		return io.NopCloser(r), nil

	case SnappyCompression:
		return io.NopCloser(snappy.NewReader(r)), nil

	case LZ4Compression:
		return io.NopCloser(lz4.NewReader(r)), nil

	case ZstdCompression:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return &zstdReadCloser{dec}, nil

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

// zstdReadCloser adapts zstd.Decoder's parameterless Close to io.ReadCloser.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Compress compresses data using the specified compression type.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil

	case SnappyCompression:
		var buf bytes.Buffer
		w := snappy.NewBufferedWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("snappy write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("snappy close: %w", err)
		}
		return buf.Bytes(), nil

	case LZ4Compression:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil

	case ZstdCompression:
		var buf bytes.Buffer
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zstd write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("zstd close: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

// Decompress decompresses a whole buffer using the specified compression type.
func Decompress(t Type, data []byte) ([]byte, error) {
	r, err := NewReader(t, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
