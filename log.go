package taskrun

import (
	"log"
	"os"
)

// Logger is the minimal diagnostic sink the scheduler and proactor write
// to. It intentionally mirrors a structured-logging facade without pulling
// in a generic event-builder API: component code never needs more than a
// leveled, printf-style call.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// stdLogger adapts the standard library's *log.Logger to Logger, tagging
// each line with its level.
type stdLogger struct {
	l     *log.Logger
	debug bool
}

// NewStdLogger returns a Logger backed by the standard library, writing to
// os.Stderr. When debug is false, Debugf calls are discarded.
func NewStdLogger(debug bool) Logger {
	return &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds), debug: debug}
}

func (s *stdLogger) Debugf(format string, args ...any) {
	if s.debug {
		s.l.Printf("DEBUG "+format, args...)
	}
}

func (s *stdLogger) Infof(format string, args ...any) { s.l.Printf("INFO  "+format, args...) }
func (s *stdLogger) Warnf(format string, args ...any) { s.l.Printf("WARN  "+format, args...) }
func (s *stdLogger) Errorf(format string, args ...any) { s.l.Printf("ERROR "+format, args...) }
