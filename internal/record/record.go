// Package record implements the binary codec for a single SSTable entry.
//
// An entry pairs a 64-bit ordering key with either a value payload or a
// deletion tombstone. Encoded layout:
//
//	[key: fixed64 LE] [kind: 1 byte] [varint32 value length] [value bytes]
//
// The length prefix and value bytes are present only for kind = value.
// Entries are written back-to-back in the decompressed SSTable body with no
// framing between them, so Decode must be able to tell "this buffer holds a
// partial entry, feed me more bytes" (ErrIncomplete) apart from "these
// bytes are not an entry" (ErrCorrupt).
package record

import (
	"errors"
	"fmt"

	"github.com/yarrowdb/yarrowdb/internal/encoding"
)

const (
	kindValue     = 0x0
	kindTombstone = 0x1

	// keyKindSize is the fixed prefix every entry carries.
	keyKindSize = 9

	// maxValueLength bounds a single value payload. Lengths above this are
	// treated as corruption rather than a request for more bytes.
	maxValueLength = 1 << 30
)

var (
	// ErrIncomplete signals that the buffer ends before the entry does.
	// It is a retry signal, not a data error: callers refill the buffer and
	// decode again.
	ErrIncomplete = errors.New("record: incomplete entry")

	// ErrCorrupt signals bytes that cannot be a valid entry no matter how
	// many more bytes arrive.
	ErrCorrupt = errors.New("record: malformed entry")
)

// Entry is one decoded key/value pair. Tombstone entries mark the key as
// deleted and carry no value.
type Entry struct {
	Key       uint64
	Value     []byte
	Tombstone bool
}

// Append encodes e and appends it to dst, returning the extended slice.
func Append(dst []byte, e Entry) []byte {
	dst = encoding.AppendFixed64(dst, e.Key)
	if e.Tombstone {
		return append(dst, kindTombstone)
	}
	dst = append(dst, kindValue)
	dst = encoding.AppendVarint32(dst, uint32(len(e.Value)))
	return append(dst, e.Value...)
}

// Decode decodes one entry from the front of buf.
// On success it returns the entry and the number of bytes consumed. The
// returned entry's Value is copied and does not alias buf, which the caller
// is free to drain or reuse.
//
// Returns ErrIncomplete when buf holds only a prefix of an entry and
// ErrCorrupt (possibly wrapped) for bytes that can never decode.
func Decode(buf []byte) (Entry, int, error) {
	if len(buf) < keyKindSize {
		return Entry{}, 0, ErrIncomplete
	}

	e := Entry{Key: encoding.DecodeFixed64(buf)}

	switch buf[8] {
	case kindTombstone:
		e.Tombstone = true
		return e, keyKindSize, nil

	case kindValue:
		length, n, err := encoding.DecodeVarint32(buf[keyKindSize:])
		if err != nil {
			if errors.Is(err, encoding.ErrVarintTermination) {
				return Entry{}, 0, ErrIncomplete
			}
			return Entry{}, 0, fmt.Errorf("%w: value length: %v", ErrCorrupt, err)
		}
		if length > maxValueLength {
			return Entry{}, 0, fmt.Errorf("%w: value length %d exceeds limit", ErrCorrupt, length)
		}

		total := keyKindSize + n + int(length)
		if total > len(buf) {
			return Entry{}, 0, ErrIncomplete
		}

		e.Value = make([]byte, length)
		copy(e.Value, buf[keyKindSize+n:total])
		return e, total, nil

	default:
		return Entry{}, 0, fmt.Errorf("%w: unknown entry kind 0x%02x", ErrCorrupt, buf[8])
	}
}

// EncodedLen returns the number of bytes Append will produce for e.
func EncodedLen(e Entry) int {
	if e.Tombstone {
		return keyKindSize
	}
	return keyKindSize + encoding.VarintLength(uint64(len(e.Value))) + len(e.Value)
}
