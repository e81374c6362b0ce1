package yarrowdb

// options.go implements engine configuration and re-exports the types a
// host process needs without importing internal packages.

import (
	"github.com/yarrowdb/yarrowdb/internal/compression"
	"github.com/yarrowdb/yarrowdb/internal/logging"
	"github.com/yarrowdb/yarrowdb/internal/record"
	"github.com/yarrowdb/yarrowdb/internal/sstable"
)

// Logger is an alias for the logging.Logger interface.
// This allows hosts to pass their own logger implementation.
type Logger = logging.Logger

// Level is an alias for the logging severity level.
type Level = logging.Level

// Logging level constants.
const (
	LevelError = logging.LevelError
	LevelWarn  = logging.LevelWarn
	LevelInfo  = logging.LevelInfo
	LevelDebug = logging.LevelDebug
)

// LogSink is an alias for the host log sink: a function receiving a
// severity level and a formatted message.
type LogSink = logging.Sink

// CompressionType is an alias for the compression type.
type CompressionType = compression.Type

// Compression type constants.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	LZ4Compression    = compression.LZ4Compression
	ZstdCompression   = compression.ZstdCompression
)

// Entry is an alias for a decoded SSTable entry.
type Entry = record.Entry

// Iter is an alias for the SSTable iterator returned by Table.Scan.
type Iter = sstable.Iter

// ScanStatus is an alias for the typed outcome of a scanning pass.
type ScanStatus = sstable.ScanStatus

// Scan status constants.
const (
	ScanPending          = sstable.ScanPending
	ScanActive           = sstable.ScanActive
	ScanComplete         = sstable.ScanComplete
	ScanTruncated        = sstable.ScanTruncated
	ScanChecksumMismatch = sstable.ScanChecksumMismatch
)

// CheckResult is an alias for the independent verifier's summary.
type CheckResult = sstable.CheckResult

// Options configures the engine for Init.
type Options struct {
	// Dir is the directory holding the engine's SSTable files. Table names
	// passed to OpenTable are resolved relative to it.
	Dir string

	// Codec is the compression codec of table bodies. It must match the
	// codec the tables were written with; the file header does not record
	// it. The zero value selects Snappy; engine-written tables are always
	// compressed.
	Codec CompressionType

	// LogSink, when set, receives every engine log line together with its
	// severity, letting the host process own the real log. When nil the
	// engine logs to stderr.
	LogSink LogSink

	// LogLevel caps the verbosity of emitted log lines. The zero value
	// logs errors only.
	LogLevel Level

	// Logger overrides the logger entirely. When set, LogSink and LogLevel
	// are ignored.
	Logger Logger
}

// withDefaults fills in zero values.
func (o Options) withDefaults() Options {
	if o.Codec == NoCompression {
		o.Codec = SnappyCompression
	}
	if logging.IsNil(o.Logger) {
		if o.LogSink != nil {
			o.Logger = logging.NewSinkLogger(o.LogSink, o.LogLevel)
		} else {
			o.Logger = logging.NewDefaultLogger(o.LogLevel)
		}
	}
	return o
}
