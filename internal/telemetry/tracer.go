package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for node operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
	AttrClientPort = "client.port"

	// ========================================================================
	// Dispatch attributes
	// ========================================================================
	AttrRole        = "dispatch.role"         // Role the connection was accepted on
	AttrMessageType = "dispatch.message_type" // Wire message type name
	AttrMessageID   = "dispatch.message_id"   // Frame correlation id
	AttrStatus      = "dispatch.status"       // Response status code

	// ========================================================================
	// Identity attributes
	// ========================================================================
	AttrIdentityID = "identity.id"
	AttrHomeNodeID = "identity.home_node_id"

	// ========================================================================
	// Store attributes
	// ========================================================================
	AttrRepository = "store.repository" // hosted | neighbor
	AttrMatchCount = "store.match_count"
	AttrImageToken = "store.image_token"

	// ========================================================================
	// Relay attributes
	// ========================================================================
	AttrRelayToken  = "relay.token"
	AttrRelayState  = "relay.state"
	AttrServiceName = "relay.service_name"

	// ========================================================================
	// Directory attributes
	// ========================================================================
	AttrNeighborCount = "directory.neighbor_count"

	// ========================================================================
	// Storage backend attributes (image store)
	// ========================================================================
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
	AttrRegion = "storage.region"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// Root span for inbound message dispatch
	SpanDispatchRequest = "dispatch.request"

	// Store operations
	SpanStoreGetByID          = "store.get_by_id"
	SpanStoreInsertOrResurrect = "store.insert_or_resurrect"
	SpanStoreUpdateProfile    = "store.update_profile"
	SpanStoreCancel           = "store.cancel"
	SpanStoreSearch           = "store.search"

	// Image store operations
	SpanImagesPut    = "images.put"
	SpanImagesGet    = "images.get"
	SpanImagesDelete = "images.delete"

	// Relay operations
	SpanRelayCreate  = "relay.create"
	SpanRelayAccept  = "relay.accept"
	SpanRelaySend    = "relay.send"
	SpanRelayDestroy = "relay.destroy"

	// Directory operations
	SpanDirectoryRegister = "directory.register"
	SpanDirectoryPoll     = "directory.get_neighbors"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// Role returns an attribute for the server role a connection was accepted on
func Role(role string) attribute.KeyValue {
	return attribute.String(AttrRole, role)
}

// MessageType returns an attribute for the wire message type name
func MessageType(name string) attribute.KeyValue {
	return attribute.String(AttrMessageType, name)
}

// MessageID returns an attribute for the frame correlation id
func MessageID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrMessageID, int64(id))
}

// Status returns an attribute for the response status code
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// IdentityID returns an attribute for a hex-encoded identity id
func IdentityID(id []byte) attribute.KeyValue {
	return attribute.String(AttrIdentityID, fmt.Sprintf("%x", id))
}

// IdentityIDHex returns an attribute for an already-hex-encoded identity id
func IdentityIDHex(id string) attribute.KeyValue {
	return attribute.String(AttrIdentityID, id)
}

// Repository returns an attribute identifying which store a search consulted
func Repository(name string) attribute.KeyValue {
	return attribute.String(AttrRepository, name)
}

// MatchCount returns an attribute for the number of rows a search matched
func MatchCount(n int) attribute.KeyValue {
	return attribute.Int(AttrMatchCount, n)
}

// ImageToken returns an attribute for an opaque image token
func ImageToken(token string) attribute.KeyValue {
	return attribute.String(AttrImageToken, token)
}

// RelayToken returns an attribute for a caller or callee relay token
func RelayToken(token string) attribute.KeyValue {
	return attribute.String(AttrRelayToken, token)
}

// RelayState returns an attribute for a relay's lifecycle state
func RelayState(state string) attribute.KeyValue {
	return attribute.String(AttrRelayState, state)
}

// ServiceName returns an attribute for the application-service name on a relay
func ServiceName(name string) attribute.KeyValue {
	return attribute.String(AttrServiceName, name)
}

// NeighborCount returns an attribute for the size of a neighborhood push
func NeighborCount(n int) attribute.KeyValue {
	return attribute.Int(AttrNeighborCount, n)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartDispatchSpan starts a span for a single dispatched wire message.
func StartDispatchSpan(ctx context.Context, messageType string, messageID uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		MessageType(messageType),
		MessageID(messageID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanDispatchRequest, trace.WithAttributes(allAttrs...))
}

// StartStoreSpan starts a span for a profile store operation.
func StartStoreSpan(ctx context.Context, span string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, span, trace.WithAttributes(attrs...))
}

// StartRelaySpan starts a span for a relay lifecycle operation.
func StartRelaySpan(ctx context.Context, span string, token string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RelayToken(token),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, span, trace.WithAttributes(allAttrs...))
}

// StartDirectorySpan starts a span for an outbound directory-client call.
func StartDirectorySpan(ctx context.Context, span string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, span, trace.WithAttributes(attrs...))
}
