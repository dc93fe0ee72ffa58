package voxterra

import "log"

// Logger is a minimal Printf-shaped logging collaborator so callers
// can plug in whatever structured logger they already use. A nil
// Logger passed to New falls back to log.Default().
type Logger interface {
	Printf(format string, args ...any)
}

type stdLogger struct{ l *log.Logger }

func (s stdLogger) Printf(format string, args ...any) { s.l.Printf(format, args...) }

func defaultLogger() Logger { return stdLogger{log.Default()} }
