package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Protocol & Dispatch
	// ========================================================================
	KeyMessageType       = "message_type"       // Wire message type: CheckIn, ProfileSearch, ...
	KeyMessageID         = "message_id"          // Correlation id carried on the frame
	KeyRole              = "role"                // Server role the connection was accepted on
	KeyConversationState = "conversation_status"  // None/Started/Verified/Authenticated
	KeyStatus            = "status"              // Response status code
	KeyDetails           = "details"             // Offending field name on InvalidValue

	// ========================================================================
	// Identity
	// ========================================================================
	KeyIdentityID  = "identity_id"  // Hex-encoded IdentityId
	KeyHomeNodeID  = "home_node_id" // Hex-encoded HomeNodeId
	KeyApplication = "application"  // Application service name

	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeyConnectionID = "connection_id" // Connection identifier
	KeyClientIP     = "client_ip"     // Remote address, host only
	KeyClientPort   = "client_port"   // Remote address source port

	// ========================================================================
	// Store & Search
	// ========================================================================
	KeyRepository  = "repository"   // hosted | neighbor
	KeyMatchCount  = "match_count"  // Rows matched by a search
	KeyScanned     = "scanned"      // Rows scanned before the limit was hit
	KeyImageToken  = "image_token"  // Opaque 128-bit image token

	// ========================================================================
	// Relay
	// ========================================================================
	KeyRelayToken  = "relay_token"  // Caller or callee relay token
	KeyRelayState  = "relay_state"  // NotificationSent/Accepted/Open/Destroyed
	KeyServiceName = "service_name" // Application-service name carried by the relay

	// ========================================================================
	// Directory
	// ========================================================================
	KeyNeighborCount = "neighbor_count" // Size of a neighborhood push

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyAttempt    = "attempt"     // Retry attempt number
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// MessageType returns a slog.Attr for the wire message type name
func MessageType(name string) slog.Attr {
	return slog.String(KeyMessageType, name)
}

// MessageID returns a slog.Attr for the frame correlation id
func MessageID(id uint32) slog.Attr {
	return slog.Uint64(KeyMessageID, uint64(id))
}

// Role returns a slog.Attr for the server role
func Role(role string) slog.Attr {
	return slog.String(KeyRole, role)
}

// ConversationState returns a slog.Attr for the session's conversation status
func ConversationState(status string) slog.Attr {
	return slog.String(KeyConversationState, status)
}

// Status returns a slog.Attr for the response status code
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Details returns a slog.Attr for the offending field name on InvalidValue
func Details(field string) slog.Attr {
	return slog.String(KeyDetails, field)
}

// IdentityID returns a slog.Attr for a hex-encoded identity id
func IdentityID(id []byte) slog.Attr {
	return slog.String(KeyIdentityID, fmt.Sprintf("%x", id))
}

// IdentityIDStr returns a slog.Attr for an already-hex-encoded identity id
func IdentityIDStr(id string) slog.Attr {
	return slog.String(KeyIdentityID, id)
}

// HomeNodeID returns a slog.Attr for a hex-encoded home node id
func HomeNodeID(id []byte) slog.Attr {
	return slog.String(KeyHomeNodeID, fmt.Sprintf("%x", id))
}

// Application returns a slog.Attr for an application-service name
func Application(name string) slog.Attr {
	return slog.String(KeyApplication, name)
}

// ConnectionID returns a slog.Attr for a connection identifier
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// ClientIP returns a slog.Attr for the remote address host
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for the remote address source port
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// Repository returns a slog.Attr identifying which store a search consulted
func Repository(name string) slog.Attr {
	return slog.String(KeyRepository, name)
}

// MatchCount returns a slog.Attr for the number of rows a search matched
func MatchCount(n int) slog.Attr {
	return slog.Int(KeyMatchCount, n)
}

// Scanned returns a slog.Attr for the number of rows scanned before stopping
func Scanned(n int) slog.Attr {
	return slog.Int(KeyScanned, n)
}

// ImageToken returns a slog.Attr for an opaque image token
func ImageToken(token string) slog.Attr {
	return slog.String(KeyImageToken, token)
}

// RelayToken returns a slog.Attr for a caller or callee relay token
func RelayToken(token string) slog.Attr {
	return slog.String(KeyRelayToken, token)
}

// RelayState returns a slog.Attr for a relay's lifecycle state
func RelayState(state string) slog.Attr {
	return slog.String(KeyRelayState, state)
}

// ServiceName returns a slog.Attr for an application-service name on a relay
func ServiceName(name string) slog.Attr {
	return slog.String(KeyServiceName, name)
}

// NeighborCount returns a slog.Attr for the size of a neighborhood push
func NeighborCount(n int) slog.Attr {
	return slog.Int(KeyNeighborCount, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
