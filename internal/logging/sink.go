package logging

import "fmt"

// Sink receives a formatted log line together with its severity. It is the
// adapter point for host processes that own the real log (the embedding
// server's log writer takes exactly a level and a message).
//
// Contract: a Sink must be safe for concurrent use.
type Sink func(level Level, msg string)

// SinkLogger routes log output to a host-provided Sink, applying the usual
// level filter first.
type SinkLogger struct {
	sink  Sink
	level Level
}

// NewSinkLogger wraps sink in a Logger that drops messages above level.
func NewSinkLogger(sink Sink, level Level) *SinkLogger {
	return &SinkLogger{sink: sink, level: level}
}

// Errorf implements Logger.
func (l *SinkLogger) Errorf(format string, args ...any) {
	l.emit(LevelError, format, args...)
}

// Warnf implements Logger.
func (l *SinkLogger) Warnf(format string, args ...any) {
	l.emit(LevelWarn, format, args...)
}

// Infof implements Logger.
func (l *SinkLogger) Infof(format string, args ...any) {
	l.emit(LevelInfo, format, args...)
}

// Debugf implements Logger.
func (l *SinkLogger) Debugf(format string, args ...any) {
	l.emit(LevelDebug, format, args...)
}

func (l *SinkLogger) emit(level Level, format string, args ...any) {
	if l.level >= level {
		l.sink(level, fmt.Sprintf(format, args...))
	}
}
