// Package checksum provides the CRC-32 helpers used by the SSTable format.
//
// The on-disk header stores two plain CRC-32 (IEEE polynomial) values: one
// over the fully decompressed body and one over the compressed bytes as
// stored. Both the streaming read path and the whole-file verifier compute
// them through this package so the polynomial stays fixed in one place.
package checksum

import (
	"hash/crc32"
)

// Value computes the CRC-32 checksum of data.
func Value(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Extend computes the CRC-32 of concat(A, data) where initCRC is the
// CRC-32 of A.
func Extend(initCRC uint32, data []byte) uint32 {
	return crc32.Update(initCRC, crc32.IEEETable, data)
}

// Accumulator incrementally computes a CRC-32 over a sequence of chunks.
// The zero value is not meaningful; use NewAccumulator. An Accumulator is
// owned by exactly one streaming pass.
type Accumulator struct {
	sum uint32
}

// NewAccumulator returns a fresh accumulator with no bytes hashed.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Update folds data into the running checksum.
func (a *Accumulator) Update(data []byte) {
	a.sum = Extend(a.sum, data)
}

// Sum returns the checksum of all bytes seen so far.
func (a *Accumulator) Sum() uint32 {
	return a.sum
}
