package sstable

// minFetchSize is the smallest refill request the backlog will ask for.
// It keeps refills useful when the queue is nearly full and lets an entry
// larger than the current capacity make progress, since append grows the
// queue as needed.
const minFetchSize = 512

// byteQueue is the iterator's backlog of decompressed-but-undecoded bytes:
// a growable byte queue with amortized O(1) append and drain-from-front.
// Pending bytes are kept contiguous so the record codec can decode straight
// from the front without a copy.
type byteQueue struct {
	buf []byte
	off int // start of pending bytes within buf
}

// newByteQueue returns a queue pre-sized to capacity bytes.
func newByteQueue(capacity int) *byteQueue {
	if capacity < minFetchSize {
		capacity = minFetchSize
	}
	return &byteQueue{buf: make([]byte, 0, capacity)}
}

// len returns the number of pending bytes.
func (q *byteQueue) len() int {
	return len(q.buf) - q.off
}

// room returns how many bytes the next refill should request: enough to
// fill the queue to capacity, but never less than minFetchSize.
func (q *byteQueue) room() int {
	free := cap(q.buf) - q.len()
	if free < minFetchSize {
		return minFetchSize
	}
	return free
}

// append adds p to the back of the queue, compacting drained space before
// growing the underlying buffer.
func (q *byteQueue) append(p []byte) {
	if q.off > 0 && len(q.buf)+len(p) > cap(q.buf) {
		n := copy(q.buf, q.buf[q.off:])
		q.buf = q.buf[:n]
		q.off = 0
	}
	q.buf = append(q.buf, p...)
}

// bytes returns the pending bytes. The slice is only valid until the next
// append, drain, or reset.
func (q *byteQueue) bytes() []byte {
	return q.buf[q.off:]
}

// drain removes n bytes from the front.
// REQUIRES: n <= len().
func (q *byteQueue) drain(n int) {
	q.off += n
	if q.off == len(q.buf) {
		q.buf = q.buf[:0]
		q.off = 0
	}
}

// reset discards all pending bytes, keeping the allocated capacity.
func (q *byteQueue) reset() {
	q.buf = q.buf[:0]
	q.off = 0
}
