package yarrowdb

// engine.go implements process-wide lifecycle and the open-table registry.
//
// The host process drives the engine through exactly one Init before any
// other call and exactly one Deinit at shutdown. Tables are addressed by
// opaque handles: the 64-bit xxh3 hash of the table name, which is stable
// across processes and restarts.

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/yarrowdb/yarrowdb/internal/logging"
	"github.com/yarrowdb/yarrowdb/internal/sstable"
)

var (
	// ErrAlreadyInitialized is returned by Init when the engine is already
	// initialized.
	ErrAlreadyInitialized = errors.New("yarrowdb: already initialized")

	// ErrNotInitialized is returned by every operation invoked before Init
	// or after Deinit.
	ErrNotInitialized = errors.New("yarrowdb: not initialized")

	// ErrUnknownTable is returned for a handle with no registry entry.
	ErrUnknownTable = errors.New("yarrowdb: unknown table handle")

	// ErrHandleCollision is returned by OpenTable when two distinct table
	// names hash to the same handle.
	ErrHandleCollision = errors.New("yarrowdb: table handle collision")
)

// Table is a registered table: a name, its opaque handle, and the path of
// its SSTable file. A Table stays valid until its last CloseTable.
type Table struct {
	name   string
	handle uint64
	path   string
	opts   Options
	refs   int
}

// Name returns the name the table was opened under.
func (t *Table) Name() string { return t.name }

// Handle returns the table's opaque handle.
func (t *Table) Handle() uint64 { return t.handle }

// Path returns the path of the table's SSTable file.
func (t *Table) Path() string { return t.path }

// Scan returns a new iterator over the table's entries. sizeHint should
// approximate the table's decompressed data size; zero is acceptable.
// The caller owns the iterator and must Close it.
func (t *Table) Scan(sizeHint int) (*Iter, error) {
	return sstable.NewIter(sstable.NewHandle(t.path), sizeHint, sstable.IterOptions{
		Codec:  t.opts.Codec,
		Logger: t.opts.Logger,
	})
}

// Check runs the authoritative whole-file integrity verification over the
// table. Unlike a scan, any mismatch is returned as an error.
func (t *Table) Check() (*CheckResult, error) {
	return sstable.CheckFile(t.path, t.opts.Codec)
}

// engine is the process-wide state guarded by its own mutex.
type engine struct {
	mu     sync.Mutex
	opts   Options
	tables map[uint64]*Table
}

var (
	globalMu sync.Mutex
	global   *engine
)

// Init initializes the engine. It must be called exactly once before any
// other operation; a second Init without an intervening Deinit fails with
// ErrAlreadyInitialized.
func Init(opts Options) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return ErrAlreadyInitialized
	}
	opts = opts.withDefaults()
	global = &engine{
		opts:   opts,
		tables: make(map[uint64]*Table),
	}
	opts.Logger.Debugf(logging.NSEngine+"initialized, dir %q, codec %s", opts.Dir, opts.Codec)
	return nil
}

// Deinit tears the engine down, dropping the table registry. Tables still
// open are logged and discarded; their handles become invalid.
func Deinit() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return ErrNotInitialized
	}
	global.mu.Lock()
	for _, t := range global.tables {
		global.opts.Logger.Warnf(logging.NSEngine+"table %q still open at shutdown (%d refs)", t.name, t.refs)
	}
	global.mu.Unlock()

	global.opts.Logger.Debugf(logging.NSEngine + "deinitialized")
	global = nil
	return nil
}

// current returns the initialized engine, or ErrNotInitialized.
func current() (*engine, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return nil, ErrNotInitialized
	}
	return global, nil
}

// TableHandle returns the opaque handle OpenTable would assign to name,
// without opening anything.
func TableHandle(name string) uint64 {
	return xxh3.HashString(name)
}

// OpenTable registers the table stored at name (relative to Options.Dir)
// and returns its opaque handle. Opening an already-open name returns the
// same handle and increments its reference count.
func OpenTable(name string) (uint64, error) {
	e, err := current()
	if err != nil {
		return 0, err
	}

	handle := TableHandle(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.tables[handle]; ok {
		if t.name != name {
			return 0, fmt.Errorf("%w: %q and %q both hash to %016x",
				ErrHandleCollision, t.name, name, handle)
		}
		t.refs++
		return handle, nil
	}

	t := &Table{
		name:   name,
		handle: handle,
		path:   filepath.Join(e.opts.Dir, name),
		opts:   e.opts,
		refs:   1,
	}
	e.tables[handle] = t
	e.opts.Logger.Debugf(logging.NSEngine+"opened table %q as %016x", name, handle)
	return handle, nil
}

// CloseTable drops one reference to the table behind handle; the final
// close removes the registry entry.
func CloseTable(handle uint64) error {
	e, err := current()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[handle]
	if !ok {
		return fmt.Errorf("%w: %016x", ErrUnknownTable, handle)
	}
	t.refs--
	if t.refs == 0 {
		delete(e.tables, handle)
		e.opts.Logger.Debugf(logging.NSEngine+"closed table %q", t.name)
	}
	return nil
}

// LookupTable resolves a handle to its registered table.
func LookupTable(handle uint64) (*Table, error) {
	e, err := current()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %016x", ErrUnknownTable, handle)
	}
	return t, nil
}
