package sstable

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"testing"

	"github.com/yarrowdb/yarrowdb/internal/compression"
	"github.com/yarrowdb/yarrowdb/internal/logging"
	"github.com/yarrowdb/yarrowdb/internal/record"
)

var allCodecs = []compression.Type{
	compression.NoCompression,
	compression.SnappyCompression,
	compression.LZ4Compression,
	compression.ZstdCompression,
}

func TestScanYieldsEntriesInOrder(t *testing.T) {
	for _, codec := range allCodecs {
		t.Run(codec.String(), func(t *testing.T) {
			path := tablePath(t)
			writeTable(t, path, codec, sampleEntries())

			it := newTestIter(t, path, codec)
			hdr := it.Header()
			if hdr.EntryCount != 3 || hdr.DeletedCount != 1 {
				t.Fatalf("header counts = %d/%d, want 3/1", hdr.EntryCount, hdr.DeletedCount)
			}
			if hdr.MinKey != 10 || hdr.MaxKey != 30 {
				t.Fatalf("header key range = [%d, %d], want [10, 30]", hdr.MinKey, hdr.MaxKey)
			}

			if err := it.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			got := collect(t, it)

			want := sampleEntries()
			if len(got) != len(want) {
				t.Fatalf("scan yielded %d entries, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].Key != want[i].Key || got[i].Tombstone != want[i].Tombstone ||
					!bytes.Equal(got[i].Value, want[i].Value) {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
				}
			}

			if it.Status() != ScanComplete {
				t.Errorf("status = %v, want complete", it.Status())
			}
			if it.Cursor() != hdr.EntryCount {
				t.Errorf("cursor = %d, want %d", it.Cursor(), hdr.EntryCount)
			}

			// End-of-sequence is sticky.
			if _, ok := it.Next(); ok {
				t.Error("Next after exhaustion yielded an entry")
			}
		})
	}
}

func TestEmptyFileScan(t *testing.T) {
	path := tablePath(t)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	it := newTestIter(t, path, compression.SnappyCompression)
	if hdr := it.Header(); hdr.EntryCount != 0 {
		t.Fatalf("empty file reported %d entries", hdr.EntryCount)
	}

	if err := it.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := collect(t, it); len(got) != 0 {
		t.Errorf("empty table yielded %d entries", len(got))
	}
	if it.Status() != ScanComplete {
		t.Errorf("status = %v, want complete", it.Status())
	}
}

// TestShortFileIsEmptyTable: anything shorter than the header is a valid,
// legitimately empty table, not an error.
func TestShortFileIsEmptyTable(t *testing.T) {
	path := tablePath(t)
	if err := os.WriteFile(path, []byte("not a table"), 0o644); err != nil {
		t.Fatal(err)
	}

	it := newTestIter(t, path, compression.NoCompression)
	if hdr := it.Header(); hdr.EntryCount != 0 || hdr.RawChecksum != 0 {
		t.Fatalf("short file header = %+v, want zero value", hdr)
	}
	if err := it.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := collect(t, it); len(got) != 0 {
		t.Errorf("short file yielded %d entries", len(got))
	}
}

func TestInvalidMagicNumber(t *testing.T) {
	path := tablePath(t)
	writeTable(t, path, compression.NoCompression, sampleEntries())

	// Zero the magic bytes.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	copy(data[0:4], []byte{0, 0, 0, 0})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = NewIter(NewHandle(path), 0, IterOptions{Logger: logging.Discard})
	if !errors.Is(err, ErrInvalidMagicNumber) {
		t.Fatalf("NewIter err = %v, want ErrInvalidMagicNumber", err)
	}
}

func TestReloadIdempotent(t *testing.T) {
	path := tablePath(t)
	writeTable(t, path, compression.SnappyCompression, sampleEntries())

	it := newTestIter(t, path, compression.SnappyCompression)
	first := it.Header()
	if err := it.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if second := it.Header(); second != first {
		t.Errorf("header changed across Reload: %+v vs %+v", first, second)
	}
}

func TestKeysWithinHeaderBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	entries := make([]record.Entry, 100)
	key := uint64(1000)
	for i := range entries {
		key += uint64(rng.Intn(50))
		entries[i] = record.Entry{Key: key, Value: []byte{byte(i)}}
	}

	path := tablePath(t)
	writeTable(t, path, compression.ZstdCompression, entries)

	it := newTestIter(t, path, compression.ZstdCompression)
	if err := it.Start(); err != nil {
		t.Fatal(err)
	}
	hdr := it.Header()
	prev := uint64(0)
	for _, e := range collect(t, it) {
		if e.Key < hdr.MinKey || e.Key > hdr.MaxKey {
			t.Errorf("key %d outside [%d, %d]", e.Key, hdr.MinKey, hdr.MaxKey)
		}
		if e.Key < prev {
			t.Errorf("keys out of order: %d after %d", e.Key, prev)
		}
		prev = e.Key
	}
	if it.Status() != ScanComplete {
		t.Errorf("status = %v, want complete", it.Status())
	}
}

// TestEntryLargerThanBacklog forces single entries bigger than the backlog's
// initial capacity, exercising incomplete-entry retries and queue growth.
func TestEntryLargerThanBacklog(t *testing.T) {
	big := make([]byte, 8<<10)
	rand.New(rand.NewSource(9)).Read(big)
	entries := []record.Entry{
		{Key: 1, Value: big},
		{Key: 2, Tombstone: true},
		{Key: 3, Value: big},
	}

	path := tablePath(t)
	writeTable(t, path, compression.SnappyCompression, entries)

	// sizeHint 8 gives a deliberately tiny backlog.
	it, err := NewIter(NewHandle(path), 8, IterOptions{
		Codec:  compression.SnappyCompression,
		Logger: logging.Discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = it.Close() }()

	if err := it.Start(); err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)
	if len(got) != 3 {
		t.Fatalf("yielded %d entries, want 3", len(got))
	}
	if !bytes.Equal(got[0].Value, big) || !bytes.Equal(got[2].Value, big) {
		t.Error("large values corrupted in transit")
	}
	if it.Status() != ScanComplete {
		t.Errorf("status = %v, want complete", it.Status())
	}
}

// TestTruncatedBody cuts the file one byte short of the second entry: the
// scan must yield the first entry, then a clean end-of-sequence, with the
// truncation visible in the status.
func TestTruncatedBody(t *testing.T) {
	path := tablePath(t)
	entries := sampleEntries()
	writeTable(t, path, compression.NoCompression, entries)

	cut := HeaderSize + record.EncodedLen(entries[0]) + record.EncodedLen(entries[1]) - 1
	if err := os.Truncate(path, int64(cut)); err != nil {
		t.Fatal(err)
	}

	it := newTestIter(t, path, compression.NoCompression)
	if err := it.Start(); err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)
	if len(got) != 1 || got[0].Key != 10 {
		t.Fatalf("truncated scan yielded %+v, want only key 10", got)
	}
	if it.Status() != ScanTruncated {
		t.Errorf("status = %v, want truncated", it.Status())
	}
	if it.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", it.Cursor())
	}

	// The independent verifier must reject the file outright.
	if _, err := CheckFile(path, compression.NoCompression); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("CheckFile err = %v, want ErrChecksumMismatch", err)
	}
}

// TestCorruptedBody flips one value byte without touching the stored
// checksums: the scan still yields every entry (availability over
// strictness) but the pass ends in a checksum mismatch status.
func TestCorruptedBody(t *testing.T) {
	path := tablePath(t)
	raw := writeTable(t, path, compression.NoCompression, sampleEntries())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Last byte of the body is entry 3's value byte.
	data[HeaderSize+len(raw)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	it := newTestIter(t, path, compression.NoCompression)
	if err := it.Start(); err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)
	if len(got) != 3 {
		t.Fatalf("yielded %d entries, want 3", len(got))
	}
	if it.Status() != ScanChecksumMismatch {
		t.Errorf("status = %v, want checksum-mismatch", it.Status())
	}

	if _, err := CheckFile(path, compression.NoCompression); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("CheckFile err = %v, want ErrChecksumMismatch", err)
	}
}

// TestAnchoredStartEquivalence drives one iterator with anchored starts over
// a non-decreasing key sequence and checks it lands on exactly the entries a
// fresh unconditional scan finds for each target.
func TestAnchoredStartEquivalence(t *testing.T) {
	entries := make([]record.Entry, 50)
	for i := range entries {
		entries[i] = record.Entry{Key: uint64(2 * i), Value: []byte{byte(i)}}
	}
	path := tablePath(t)
	writeTable(t, path, compression.SnappyCompression, entries)

	// firstAtLeast returns the first entry with key >= target from the
	// iterator's current position.
	firstAtLeast := func(it *Iter, target uint64) (record.Entry, bool) {
		for {
			e, ok := it.Next()
			if !ok {
				return record.Entry{}, false
			}
			if e.Key >= target {
				return e, true
			}
		}
	}

	anchored := newTestIter(t, path, compression.SnappyCompression)
	targets := []uint64{0, 1, 5, 5, 20, 21, 60, 97, 98, 99}

	for _, target := range targets {
		if err := anchored.StartAt(target); err != nil {
			t.Fatalf("StartAt(%d): %v", target, err)
		}
		gotEntry, gotOK := firstAtLeast(anchored, target)

		fresh := newTestIter(t, path, compression.SnappyCompression)
		if err := fresh.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		wantEntry, wantOK := firstAtLeast(fresh, target)

		if gotOK != wantOK || gotEntry.Key != wantEntry.Key ||
			!bytes.Equal(gotEntry.Value, wantEntry.Value) {
			t.Errorf("target %d: anchored = (%+v, %v), fresh = (%+v, %v)",
				target, gotEntry, gotOK, wantEntry, wantOK)
		}
	}
}

// TestStartAtFallsBackToRestart: when the last yielded key does not precede
// the target, StartAt must perform a full restart from the beginning.
func TestStartAtFallsBackToRestart(t *testing.T) {
	path := tablePath(t)
	writeTable(t, path, compression.SnappyCompression, sampleEntries())

	it := newTestIter(t, path, compression.SnappyCompression)
	if err := it.Start(); err != nil {
		t.Fatal(err)
	}
	// Consume past key 30.
	if got := collect(t, it); len(got) != 3 {
		t.Fatalf("full scan yielded %d entries", len(got))
	}

	if err := it.StartAt(10); err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)
	if len(got) != 3 || got[0].Key != 10 {
		t.Fatalf("restarted scan yielded %+v, want all three entries", got)
	}
}

func TestRestartAfterExhaustion(t *testing.T) {
	path := tablePath(t)
	writeTable(t, path, compression.LZ4Compression, sampleEntries())

	it := newTestIter(t, path, compression.LZ4Compression)
	for pass := 0; pass < 3; pass++ {
		if err := it.Start(); err != nil {
			t.Fatalf("pass %d Start: %v", pass, err)
		}
		if got := collect(t, it); len(got) != 3 {
			t.Fatalf("pass %d yielded %d entries", pass, len(got))
		}
		if it.Status() != ScanComplete {
			t.Fatalf("pass %d status = %v", pass, it.Status())
		}
	}
}

// TestNextWithoutStart documents the degraded behavior when a caller skips
// the scan initializer on a non-empty table: no entries, no panic.
func TestNextWithoutStart(t *testing.T) {
	path := tablePath(t)
	writeTable(t, path, compression.SnappyCompression, sampleEntries())

	it := newTestIter(t, path, compression.SnappyCompression)
	if _, ok := it.Next(); ok {
		t.Error("Next without Start yielded an entry")
	}
	if it.Status() != ScanTruncated {
		t.Errorf("status = %v, want truncated", it.Status())
	}
}

// TestRefillWithoutAccumulatorPanics: Start is the sole owner of the
// checksum accumulator, so a refill observing none while a stream is active
// is a programming error and must fail fast.
func TestRefillWithoutAccumulatorPanics(t *testing.T) {
	path := tablePath(t)
	writeTable(t, path, compression.SnappyCompression, sampleEntries())

	it := newTestIter(t, path, compression.SnappyCompression)
	if err := it.Start(); err != nil {
		t.Fatal(err)
	}
	it.hasher = nil

	defer func() {
		if recover() == nil {
			t.Error("refill with nil accumulator did not panic")
		}
	}()
	it.Next()
}

func TestCloseIsIdempotent(t *testing.T) {
	path := tablePath(t)
	writeTable(t, path, compression.SnappyCompression, sampleEntries())

	it := newTestIter(t, path, compression.SnappyCompression)
	if err := it.Start(); err != nil {
		t.Fatal(err)
	}
	if _, ok := it.Next(); !ok {
		t.Fatal("expected an entry")
	}

	// Abandon mid-pass; Close twice must be safe.
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestConcurrentScans runs independent iterators over the same file from
// multiple goroutines; cloned handles share nothing mutable.
func TestConcurrentScans(t *testing.T) {
	entries := make([]record.Entry, 200)
	for i := range entries {
		entries[i] = record.Entry{Key: uint64(i), Value: bytes.Repeat([]byte{byte(i)}, 64)}
	}
	path := tablePath(t)
	writeTable(t, path, compression.ZstdCompression, entries)

	handle := NewHandle(path)
	done := make(chan error, 4)
	for g := 0; g < 4; g++ {
		go func() {
			it, err := NewIter(handle.Clone(), 0, IterOptions{
				Codec:  compression.ZstdCompression,
				Logger: logging.Discard,
			})
			if err != nil {
				done <- err
				return
			}
			defer func() { _ = it.Close() }()
			if err := it.Start(); err != nil {
				done <- err
				return
			}
			count := 0
			for {
				if _, ok := it.Next(); !ok {
					break
				}
				count++
			}
			if count != len(entries) || it.Status() != ScanComplete {
				done <- errors.New("incomplete concurrent scan")
				return
			}
			done <- nil
		}()
	}
	for g := 0; g < 4; g++ {
		if err := <-done; err != nil {
			t.Error(err)
		}
	}
}
