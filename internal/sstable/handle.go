package sstable

import (
	"os"
)

// Handle is a cloneable reference to an SSTable file path. Handles are
// cheap value types: cloning one never touches the filesystem, and every
// Open yields an independent *os.File with its own position, so concurrent
// scans over the same table need no locking.
type Handle struct {
	path string
}

// NewHandle returns a handle for the SSTable at path.
func NewHandle(path string) Handle {
	return Handle{path: path}
}

// Path returns the file path this handle refers to.
func (h Handle) Path() string {
	return h.path
}

// Clone returns an independent handle over the same file.
func (h Handle) Clone() Handle {
	return h
}

// Open opens the file for reading. The caller owns the returned file.
func (h Handle) Open() (*os.File, error) {
	return os.Open(h.path)
}

// Size returns the current length of the file in bytes.
func (h Handle) Size() (int64, error) {
	fi, err := os.Stat(h.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
