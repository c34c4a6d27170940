package logging

import (
	"go.uber.org/zap"
	"time"
)

// Logger wraps zap.SugaredLogger and
// allows to get the interval for periodic logging.
type Logger struct {
	*zap.SugaredLogger
	interval time.Duration
}

// NewLogger returns a new Logger.
func NewLogger(base *zap.SugaredLogger, interval time.Duration) *Logger {
	return &Logger{
		SugaredLogger: base,
		interval:      interval,
	}
}

// NewNop returns a Logger that discards everything. Mostly useful in tests.
func NewNop() *Logger {
	return NewLogger(zap.NewNop().Sugar(), time.Minute)
}

// Interval returns the interval for periodic logging.
func (l *Logger) Interval() time.Duration {
	return l.interval
}

// Progress returns a Progress logging the advance of a counter with the given format,
// which receives the advance and the periodic logging interval.
func (l *Logger) Progress(format string) *Progress {
	return &Progress{logger: l, format: format}
}

// Progress logs by how much a monotonic counter advanced since the last call.
// Call Log once per periodic logging interval.
type Progress struct {
	logger *Logger
	format string
	last   uint64
}

// Log logs the advance of the counter to current at info level unless it didn't advance.
// It returns the advance.
func (p *Progress) Log(current uint64) uint64 {
	advance := current - p.last
	p.last = current

	if advance > 0 {
		p.logger.Infof(p.format, advance, p.logger.interval)
	}

	return advance
}
