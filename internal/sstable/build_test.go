package sstable

// Test fixture helpers. The write path lives outside this package (tables
// are produced by flush and compaction), so the tests build files by hand,
// which also makes it easy to produce deliberately broken ones.

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yarrowdb/yarrowdb/internal/checksum"
	"github.com/yarrowdb/yarrowdb/internal/compression"
	"github.com/yarrowdb/yarrowdb/internal/logging"
	"github.com/yarrowdb/yarrowdb/internal/record"
)

// sampleEntries is the canonical three-entry table used across tests:
// a value, a tombstone, and another value.
func sampleEntries() []record.Entry {
	return []record.Entry{
		{Key: 10, Value: []byte("a")},
		{Key: 20, Tombstone: true},
		{Key: 30, Value: []byte("c")},
	}
}

func tablePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "000001.sst")
}

// encodeEntries packs entries back-to-back and counts tombstones.
func encodeEntries(entries []record.Entry) (raw []byte, deleted uint32) {
	for _, e := range entries {
		raw = record.Append(raw, e)
		if e.Tombstone {
			deleted++
		}
	}
	return raw, deleted
}

// writeRawTable writes a file with the given header and body verbatim,
// letting tests craft inconsistent files.
func writeRawTable(t *testing.T, path string, hdr Header, body []byte) {
	t.Helper()
	buf := hdr.appendTo(make([]byte, 0, HeaderSize+len(body)))
	buf = append(buf, body...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
}

// writeTable builds a well-formed SSTable file from entries (which must be
// in non-decreasing key order) and returns the decompressed body bytes.
func writeTable(t *testing.T, path string, codec compression.Type, entries []record.Entry) []byte {
	t.Helper()

	raw, deleted := encodeEntries(entries)
	compressed, err := compression.Compress(codec, raw)
	if err != nil {
		t.Fatalf("compress body: %v", err)
	}

	hdr := Header{
		RawChecksum:        checksum.Value(raw),
		CompressedChecksum: checksum.Value(compressed),
		EntryCount:         uint32(len(entries)),
		DeletedCount:       deleted,
	}
	if len(entries) > 0 {
		hdr.MinKey = entries[0].Key
		hdr.MaxKey = entries[len(entries)-1].Key
	}

	writeRawTable(t, path, hdr, compressed)
	return raw
}

// newTestIter opens an iterator over path with test-friendly defaults.
func newTestIter(t *testing.T, path string, codec compression.Type) *Iter {
	t.Helper()
	it, err := NewIter(NewHandle(path), 0, IterOptions{Codec: codec, Logger: logging.Discard})
	if err != nil {
		t.Fatalf("NewIter: %v", err)
	}
	t.Cleanup(func() { _ = it.Close() })
	return it
}

// collect drains the current pass and returns everything it yielded.
func collect(t *testing.T, it *Iter) []record.Entry {
	t.Helper()
	var out []record.Entry
	for {
		e, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}
