// Package sstable implements the read path for yarrowdb's SSTable files:
// loading and validating the fixed-size header, streaming the compressed
// body back as decoded entries in on-disk order, and independently
// verifying a whole file's integrity.
//
// SSTable file layout:
//
//	[header: 36 bytes]   magic, checksums, counts, key range (see Header)
//	[body]               one compressed stream of back-to-back entries
//
// An Iter is the unit of scanning: one logical consumer drives it through
// Start/StartAt and repeated Next calls. It maintains a backlog of
// decompressed bytes, decodes one entry per Next, and checks the body
// checksum when the pass completes. Multiple Iters may scan the same file
// concurrently via cloned handles; a single Iter is not safe for
// concurrent use.
package sstable

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/yarrowdb/yarrowdb/internal/checksum"
	"github.com/yarrowdb/yarrowdb/internal/compression"
	"github.com/yarrowdb/yarrowdb/internal/logging"
	"github.com/yarrowdb/yarrowdb/internal/record"
)

// DefaultBufSize is the backlog capacity used when the caller provides no
// size hint.
const DefaultBufSize = 0x800

// errNoAccumulator reports a refill observing a missing checksum
// accumulator while a stream is active. Start is the sole owner of
// accumulator creation, so this is a programming error, not a recoverable
// state.
var errNoAccumulator = errors.New("sstable: checksum accumulator missing during active scan")

// ScanStatus is the typed outcome of a scanning pass. Next degrades all
// mid-stream integrity failures to a clean end-of-sequence, so callers that
// need strict guarantees read the status after exhaustion (or run
// CheckFile).
type ScanStatus int

const (
	// ScanPending means no pass has been started on this iterator.
	ScanPending ScanStatus = iota

	// ScanActive means a pass is in progress.
	ScanActive

	// ScanComplete means the last pass yielded every entry and the body
	// checksum matched.
	ScanComplete

	// ScanTruncated means the last pass ended before reaching the header's
	// entry count: the stream ran dry or an entry failed to decode. Cursor
	// reports how many entries were yielded.
	ScanTruncated

	// ScanChecksumMismatch means the last pass yielded every entry but the
	// accumulated body checksum did not match the header.
	ScanChecksumMismatch
)

// String returns the name of the scan status.
func (s ScanStatus) String() string {
	switch s {
	case ScanPending:
		return "pending"
	case ScanActive:
		return "active"
	case ScanComplete:
		return "complete"
	case ScanTruncated:
		return "truncated"
	case ScanChecksumMismatch:
		return "checksum-mismatch"
	default:
		return "unknown"
	}
}

// IterOptions configures an Iter.
type IterOptions struct {
	// Codec is the compression codec of the table body. It must match the
	// codec the table was written with; the header does not record it.
	Codec compression.Type

	// Logger receives scan diagnostics. Defaults to a WARN-level stderr
	// logger.
	Logger logging.Logger
}

// Iter streams the entries of one SSTable file in on-disk order.
//
// Lifecycle: NewIter loads the header; Start (or StartAt) opens a
// decompressing stream and begins a pass; Next yields one entry per call
// until it returns false; the iterator can then be restarted for another
// pass. Abandoning an Iter mid-pass only requires Close.
type Iter struct {
	handle Handle
	codec  compression.Type
	logger logging.Logger

	hdr Header

	entryCur  uint32 // entries yielded so far, 0..hdr.EntryCount
	lastKey   uint64 // most recently yielded key, valid when hasLast
	hasLast   bool
	bytesRead int // decompressed bytes consumed this pass

	hasher  *checksum.Accumulator // owned by Start, nil outside a pass
	backlog *byteQueue
	stream  io.ReadCloser // decompressing stream, nil outside a pass
	file    *os.File
	status  ScanStatus
}

// NewIter creates an iterator for the table behind handle and loads its
// header. sizeHint should approximate the table's data size; the backlog
// is pre-sized to twice the hint to reduce reallocation.
func NewIter(handle Handle, sizeHint int, opts IterOptions) (*Iter, error) {
	capacity := DefaultBufSize
	if sizeHint > 0 {
		capacity = sizeHint * 2
	}

	it := &Iter{
		handle:  handle,
		codec:   opts.Codec,
		logger:  logging.OrDefault(opts.Logger),
		backlog: newByteQueue(capacity),
	}

	if err := it.Reload(); err != nil {
		return nil, err
	}
	return it, nil
}

// Reload re-reads the header from the file. A file shorter than HeaderSize
// is a legitimately empty table and leaves all counters at zero. Reload is
// idempotent and may be called again to refresh cached header fields.
func (it *Iter) Reload() error {
	size, err := it.handle.Size()
	if err != nil {
		return err
	}
	if size < HeaderSize {
		it.logger.Debugf(logging.NSTable+"empty table %s", it.handle.Path())
		return nil
	}

	f, err := it.handle.Open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return err
	}
	if err := it.hdr.decode(buf[:]); err != nil {
		return err
	}

	it.logger.Debugf(logging.NSTable+"loaded header of %s: %d entries (%d deleted), keys [%d, %d]",
		it.handle.Path(), it.hdr.EntryCount, it.hdr.DeletedCount, it.hdr.MinKey, it.hdr.MaxKey)
	return nil
}

// Start begins a fresh sequential pass from the first entry: it resets the
// cursor and backlog, allocates a new checksum accumulator, and opens a new
// decompressing stream positioned past the header. Start may be called any
// number of times over the iterator's life.
func (it *Iter) Start() error {
	it.closeStream()
	it.entryCur = 0
	it.lastKey = 0
	it.hasLast = false
	it.bytesRead = 0
	it.backlog.reset()
	it.hasher = checksum.NewAccumulator()

	f, err := it.handle.Clone().Open()
	if err != nil {
		return err
	}
	if _, err := f.Seek(HeaderSize, io.SeekStart); err != nil {
		_ = f.Close()
		return err
	}
	stream, err := compression.NewReader(it.codec, bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return err
	}

	it.file = f
	it.stream = stream
	it.status = ScanActive
	return nil
}

// StartAt positions the iterator for a scan that targets key.
//
// If a previous pass already yielded a key strictly below key, the active
// stream is reused as-is: entries are stored in non-decreasing key order,
// so everything still ahead of the cursor satisfies the target and no
// rewind or re-decompression is needed. Otherwise a full Start is
// performed.
//
// PRECONDITION: callers must issue non-decreasing target keys across calls,
// as the surrounding merge process does. A caller that violates this and
// targets a key behind an already-consumed prefix gets a full restart only
// when the last yielded key is >= the target; the optimization is not a
// general-purpose seek.
func (it *Iter) StartAt(key uint64) error {
	if it.hasLast && it.lastKey < key {
		it.logger.Debugf(logging.NSTable+"continuing scan of %s toward key %d", it.handle.Path(), key)
		return nil
	}
	it.logger.Debugf(logging.NSTable+"starting scan of %s for key %d", it.handle.Path(), key)
	return it.Start()
}

// Next yields the next entry of the current pass, or false at
// end-of-sequence.
//
// End-of-sequence covers three cases, distinguished by Status: the pass
// yielded every entry and the checksum matched (ScanComplete); the body
// checksum did not match (ScanChecksumMismatch, logged); or the stream
// ended or an entry failed to decode before the expected count
// (ScanTruncated, logged). Integrity failures never surface as errors
// here, keeping partial data available; strict callers check Status or
// run CheckFile.
func (it *Iter) Next() (record.Entry, bool) {
	switch it.status {
	case ScanComplete, ScanTruncated, ScanChecksumMismatch:
		return record.Entry{}, false
	}

	if it.entryCur >= it.hdr.EntryCount {
		it.finish()
		return record.Entry{}, false
	}

	for {
		n := it.fetchMore()
		if n == 0 && it.backlog.len() == 0 {
			// Stream ended before the expected entry count.
			it.logger.Warnf(logging.NSTable+"stream of %s ended at entry %d of %d",
				it.handle.Path(), it.entryCur, it.hdr.EntryCount)
			it.endTruncated()
			return record.Entry{}, false
		}

		e, consumed, err := record.Decode(it.backlog.bytes())
		switch {
		case err == nil:
			it.entryCur++
			it.backlog.drain(consumed)
			it.lastKey = e.Key
			it.hasLast = true
			return e, true

		case errors.Is(err, record.ErrIncomplete):
			if n == 0 {
				// No more bytes will arrive; the tail entry is partial.
				it.logger.Warnf(logging.NSTable+"partial entry at end of %s: %d of %d decoded",
					it.handle.Path(), it.entryCur, it.hdr.EntryCount)
				it.endTruncated()
				return record.Entry{}, false
			}
			// Entry straddles a chunk boundary; refill and retry.

		default:
			it.logger.Errorf(logging.NSTable+"decode error in %s at entry %d, offset %d: %v",
				it.handle.Path(), it.entryCur, it.bytesRead, err)
			it.endTruncated()
			return record.Entry{}, false
		}
	}
}

// fetchMore refills the backlog from the decompressing stream and returns
// the number of decompressed bytes obtained; zero means the stream has no
// more data. Every byte received is folded into the running checksum
// before it is appended to the backlog.
func (it *Iter) fetchMore() int {
	if it.stream == nil {
		it.logger.Warnf(logging.NSTable+"no active stream for %s", it.handle.Path())
		return 0
	}
	if it.hasher == nil {
		panic(errNoAccumulator)
	}

	chunk := make([]byte, it.backlog.room())
	n, err := it.stream.Read(chunk)
	if n > 0 {
		it.bytesRead += n
		it.hasher.Update(chunk[:n])
		it.backlog.append(chunk[:n])
	}
	if err != nil && err != io.EOF {
		it.logger.Warnf(logging.NSTable+"read error on %s after %d bytes: %v",
			it.handle.Path(), it.bytesRead, err)
	}
	return n
}

// finish completes a pass that reached the expected entry count: it checks
// the accumulated checksum against the header and releases the stream.
func (it *Iter) finish() {
	it.logger.Debugf(logging.NSTable+"decoded %d bytes (%d/%d) with checksum %08x from %s",
		it.bytesRead, it.entryCur, it.hdr.EntryCount, it.hdr.RawChecksum, it.handle.Path())

	if it.hasher != nil {
		sum := it.hasher.Sum()
		it.hasher = nil
		if sum != it.hdr.RawChecksum {
			it.logger.Errorf(logging.NSTable+"checksum mismatch in %s: expected %08x, got %08x",
				it.handle.Path(), it.hdr.RawChecksum, sum)
			it.status = ScanChecksumMismatch
		} else {
			it.status = ScanComplete
		}
	} else {
		// No pass was started; only legitimate for empty tables.
		it.status = ScanComplete
	}
	it.closeStream()
}

// endTruncated terminates the current pass early.
func (it *Iter) endTruncated() {
	it.status = ScanTruncated
	it.hasher = nil
	it.closeStream()
}

// Header returns the cached header fields.
func (it *Iter) Header() Header {
	return it.hdr
}

// Status returns the typed outcome of the current or most recent pass.
func (it *Iter) Status() ScanStatus {
	return it.status
}

// Cursor returns how many entries the current or most recent pass has
// yielded. After a ScanTruncated pass this is the index at which the pass
// stopped.
func (it *Iter) Cursor() uint32 {
	return it.entryCur
}

// BytesRead returns the number of decompressed bytes consumed by the
// current or most recent pass.
func (it *Iter) BytesRead() int {
	return it.bytesRead
}

// Close releases the stream and file of the current pass, if any. The
// iterator stays usable: a later Start begins a new pass. Close is
// idempotent.
func (it *Iter) Close() error {
	it.hasher = nil
	it.closeStream()
	return nil
}

func (it *Iter) closeStream() {
	if it.stream != nil {
		_ = it.stream.Close()
		it.stream = nil
	}
	if it.file != nil {
		_ = it.file.Close()
		it.file = nil
	}
}
