package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	TraceID      string    // OpenTelemetry trace ID
	SpanID       string    // OpenTelemetry span ID
	MessageType  string    // Wire message type name (CheckIn, ProfileSearch, ...)
	Role         string    // Server role the connection was accepted on
	ClientIP     string    // Client IP address (without port)
	IdentityID   string    // Hex-encoded IdentityId, once known
	ConnectionID string    // Connection identifier
	StartTime    time.Time // For duration calculation
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

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:      lc.TraceID,
		SpanID:       lc.SpanID,
		MessageType:  lc.MessageType,
		Role:         lc.Role,
		ClientIP:     lc.ClientIP,
		IdentityID:   lc.IdentityID,
		ConnectionID: lc.ConnectionID,
		StartTime:    lc.StartTime,
	}
}

// WithMessageType returns a copy with the message type set
func (lc *LogContext) WithMessageType(messageType string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.MessageType = messageType
	}
	return clone
}

// WithRole returns a copy with the role set
func (lc *LogContext) WithRole(role string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Role = role
	}
	return clone
}

// WithIdentity returns a copy with the identity id set
func (lc *LogContext) WithIdentity(identityID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.IdentityID = identityID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
