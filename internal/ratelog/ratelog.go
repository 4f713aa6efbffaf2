// Package ratelog throttles repetitive log lines to one per interval.
package ratelog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	mu       sync.Mutex
	lastAt   time.Time
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func New(log zerolog.Logger, interval time.Duration) *Logger {
	return &Logger{interval: interval, log: log, now: time.Now}
}

// Allow reports whether a line may be written now, and if so starts a new
// quiet interval.
func (l *Logger) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if !l.lastAt.IsZero() && now.Sub(l.lastAt) < l.interval {
		return false
	}
	l.lastAt = now
	return true
}

// WithLevel returns nil while throttled; zerolog treats a nil event as a no-op.
func (l *Logger) WithLevel(level zerolog.Level) *zerolog.Event {
	if !l.Allow() {
		return nil
	}
	return l.log.WithLevel(level)
}

func (l *Logger) Warn() *zerolog.Event { return l.WithLevel(zerolog.WarnLevel) }

func (l *Logger) Error() *zerolog.Event { return l.WithLevel(zerolog.ErrorLevel) }
