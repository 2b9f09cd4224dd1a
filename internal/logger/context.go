package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds the fields that correlate log lines within a migration run.
type LogContext struct {
	RunID     string    // Migration run identifier
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	PoolID    string    // Directory user pool
	Page      int       // 1-based directory page number
	StableID  string    // Identity being reconciled
	DryRun    bool      // Statements are journaled, not executed
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for a run.
func NewLogContext(runID, poolID string, dryRun bool) *LogContext {
	return &LogContext{
		RunID:     runID,
		PoolID:    poolID,
		DryRun:    dryRun,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithPage returns a copy scoped to a directory page.
func (lc *LogContext) WithPage(page int) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Page = page
	}
	return c
}

// WithStableID returns a copy scoped to a single identity.
func (lc *LogContext) WithStableID(id string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.StableID = id
	}
	return c
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// Scoped derives ctx with the LogContext transformed by fn. If ctx carries
// no LogContext, ctx is returned unchanged.
func Scoped(ctx context.Context, fn func(*LogContext) *LogContext) context.Context {
	lc := FromContext(ctx)
	if lc == nil {
		return ctx
	}
	return WithContext(ctx, fn(lc))
}
