package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries session-scoped fields that every log line within a
// single pod session operation should include, so a log aggregator can
// reconstruct the full message-exchange timeline for one pod.
type LogContext struct {
	TraceID    string // OpenTelemetry trace ID
	SpanID     string // OpenTelemetry span ID
	SessionID  string // session instance id (see pkg/podcomms/session)
	Operation  string // high-level operation name: bolus, setTempBasal, prime, ...
	PodAddress uint32 // PodState.Address, 0 if not yet paired
	StartTime  time.Time
}

func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

func NewLogContext(sessionID string, podAddress uint32) *LogContext {
	return &LogContext{
		SessionID:  sessionID,
		PodAddress: podAddress,
		StartTime:  time.Now(),
	}
}

func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithOperation returns a copy tagged with the given high-level operation.
func (lc *LogContext) WithOperation(op string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = op
	}
	return clone
}

// WithTrace returns a copy carrying OpenTelemetry correlation IDs.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID, clone.SpanID = traceID, spanID
	}
	return clone
}

// DurationMs reports elapsed time since the context was created.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
