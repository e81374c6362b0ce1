/*
Package yarrowdb exposes the host-process boundary of the yarrowdb storage
engine's SSTable read path.

The package owns process-wide lifecycle (Init, Deinit) and a registry of
open tables addressed by opaque 64-bit handles (OpenTable, CloseTable,
LookupTable). Everything the engine logs can be routed into the host's own
log through Options.LogSink.

A Table yields scans over its SSTable file: Scan returns an iterator that
streams decoded entries in on-disk order, and Check runs the authoritative
whole-file integrity verification.

# Usage

	err := yarrowdb.Init(yarrowdb.Options{Dir: "/var/lib/yarrow"})
	defer yarrowdb.Deinit()

	h, err := yarrowdb.OpenTable("000001.sst")
	tbl, err := yarrowdb.LookupTable(h)
	it, err := tbl.Scan(0)
	defer it.Close()

	if err := it.Start(); err != nil { ... }
	for e, ok := it.Next(); ok; e, ok = it.Next() { ... }

# Concurrency

The package-level lifecycle and registry functions are safe for concurrent
use. Individual iterators are not; each goroutine should obtain its own via
Table.Scan.
*/
package yarrowdb
