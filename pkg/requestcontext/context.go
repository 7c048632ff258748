// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Values are set by middleware and consumed by the
// activity service when enriching record metadata; keeping this package free
// of net/http lets services import only what they need.
package requestcontext

import "context"

type (
	clientIPKey  struct{}
	userAgentKey struct{}
	requestIDKey struct{}
	userDIDKey   struct{}
)

// WithClientIP attaches the resolved client IP address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP retrieves the client IP, or "" if not set.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

// WithUserAgent attaches the raw User-Agent header.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgent retrieves the raw User-Agent, or "" if not set.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

// WithRequestID attaches the correlation ID for the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID retrieves the correlation ID, or "" if not set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithUserDID attaches the acting identity's DID.
func WithUserDID(ctx context.Context, did string) context.Context {
	return context.WithValue(ctx, userDIDKey{}, did)
}

// UserDID retrieves the acting identity's DID, or "" if not set.
func UserDID(ctx context.Context) string {
	v, _ := ctx.Value(userDIDKey{}).(string)
	return v
}
