package sstable

import (
	"errors"
	"fmt"

	"github.com/yarrowdb/yarrowdb/internal/encoding"
)

const (
	// MagicNumber identifies the SSTable file format. Stored as the first
	// four bytes of every table file (little-endian, "YDB1" on disk).
	MagicNumber uint32 = 0x31424459

	// HeaderSize is the fixed size of the on-disk header in bytes.
	HeaderSize = 36
)

// ErrInvalidMagicNumber indicates the file does not start with the SSTable
// format marker. This is fatal for the file.
var ErrInvalidMagicNumber = errors.New("sstable: invalid magic number")

// Header holds the fixed-size metadata at the front of an SSTable file.
//
// On-disk layout (little-endian):
//
//	[magic number : 4]  format identifier
//	[raw crc      : 4]  CRC-32 of the fully decompressed body
//	[compressed crc: 4] CRC-32 of the body bytes as stored
//	[entry count  : 4]  number of encoded entries in the body
//	[deleted count: 4]  how many of those entries are tombstones
//	[min key      : 8]  smallest key in the table
//	[max key      : 8]  largest key in the table
//
// The zero Header describes a legitimately empty table: files shorter than
// HeaderSize are treated as empty, not as errors.
type Header struct {
	RawChecksum        uint32
	CompressedChecksum uint32
	EntryCount         uint32
	DeletedCount       uint32
	MinKey             uint64
	MaxKey             uint64
}

// decode parses the header fields from buf, validating the magic number.
// REQUIRES: len(buf) >= HeaderSize.
func (h *Header) decode(buf []byte) error {
	if magic := encoding.DecodeFixed32(buf[0:4]); magic != MagicNumber {
		return fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrInvalidMagicNumber, magic, MagicNumber)
	}
	h.RawChecksum = encoding.DecodeFixed32(buf[4:8])
	h.CompressedChecksum = encoding.DecodeFixed32(buf[8:12])
	h.EntryCount = encoding.DecodeFixed32(buf[12:16])
	h.DeletedCount = encoding.DecodeFixed32(buf[16:20])
	h.MinKey = encoding.DecodeFixed64(buf[20:28])
	h.MaxKey = encoding.DecodeFixed64(buf[28:36])
	return nil
}

// appendTo encodes the header (including the magic number) and appends it
// to dst. Used by table builders and by the test fixtures; the layout here
// and in decode must stay in lockstep.
func (h Header) appendTo(dst []byte) []byte {
	dst = encoding.AppendFixed32(dst, MagicNumber)
	dst = encoding.AppendFixed32(dst, h.RawChecksum)
	dst = encoding.AppendFixed32(dst, h.CompressedChecksum)
	dst = encoding.AppendFixed32(dst, h.EntryCount)
	dst = encoding.AppendFixed32(dst, h.DeletedCount)
	dst = encoding.AppendFixed64(dst, h.MinKey)
	dst = encoding.AppendFixed64(dst, h.MaxKey)
	return dst
}
