package core

import (
	"context"
	"sync"
	"time"

	"messagecore/pkg/domain"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

func (l *captureLogger) arg(level, msg, key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level != level || e.msg != msg {
			continue
		}
		for i := 0; i+1 < len(e.args); i += 2 {
			if e.args[i] == key {
				return e.args[i+1], true
			}
		}
	}
	return nil, false
}

type observedError struct {
	path   string
	method domain.Method
	err    error
}

type captureObserver struct {
	calls []observedError
}

func (c *captureObserver) observe(_ context.Context, path string, method domain.Method, err error) {
	c.calls = append(c.calls, observedError{path: path, method: method, err: err})
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func newMessageService(opts ...Option) *Service {
	base := []Option{WithHooks(MessageHooks(VariantMemory))}
	return NewInMemoryService(append(base, opts...)...)
}
