package core

import (
	"context"
	"time"

	"messagecore/pkg/domain"
)

// Logger is the structured logging contract used by the service. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time to timestamp hooks and observability.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MetricsRecorder observes the outcome and latency of every facade call.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended exactly once per facade call.
type TraceSpan interface {
	End(err error)
}

// Tracer starts a span for every facade call.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

// ErrorObserver is notified once for every failed facade call. It is a side
// channel for logging and telemetry and cannot change the returned error.
type ErrorObserver func(ctx context.Context, path string, method domain.Method, err error)

// LogErrors returns an observer that writes failures to logger at error level.
func LogErrors(logger Logger) ErrorObserver {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(_ context.Context, path string, method domain.Method, err error) {
		logger.Error("service method failed", "path", path, "method", string(method), "error", err)
	}
}
