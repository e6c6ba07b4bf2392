// Package requestcontext provides HTTP-independent accessors for request-scoped values.
//
// Middleware sets these values; services read them. The package has no net/http
// dependency so services, workers and the CLI can use it directly.
//
//	reviewer := requestcontext.ReviewerID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values the same way middleware does:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "vericore/pkg/domain"
)

type (
	reviewerIDKey   struct{}
	reviewerNameKey struct{}
	clientIPKey     struct{}
	userAgentKey    struct{}
	deviceKey       struct{}
	requestIDKey    struct{}
	requestTimeKey  struct{}
)

// Exported keys for tests that need context.WithValue directly.
var (
	ContextKeyReviewerID   = reviewerIDKey{}
	ContextKeyReviewerName = reviewerNameKey{}
	ContextKeyClientIP     = clientIPKey{}
	ContextKeyUserAgent    = userAgentKey{}
	ContextKeyDevice       = deviceKey{}
	ContextKeyRequestID    = requestIDKey{}
	ContextKeyRequestTime  = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Reviewer (dashboard identity)
// -----------------------------------------------------------------------------

// ReviewerID returns the authenticated reviewer, or the zero id.
func ReviewerID(ctx context.Context) id.ReviewerID {
	if v, ok := ctx.Value(ContextKeyReviewerID).(id.ReviewerID); ok {
		return v
	}
	return id.ReviewerID{}
}

// ReviewerName is the display name used for comments and assignments.
func ReviewerName(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyReviewerName).(string); ok {
		return v
	}
	return ""
}

func WithReviewer(ctx context.Context, reviewerID id.ReviewerID, name string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyReviewerID, reviewerID)
	return context.WithValue(ctx, ContextKeyReviewerName, name)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}

// Device is the parsed capture-client description (e.g. "Chrome 126 on Android 14, mobile").
func Device(ctx context.Context) string {
	if d, ok := ctx.Value(ContextKeyDevice).(string); ok {
		return d
	}
	return ""
}

func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, ContextKeyDevice, device)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now() outside HTTP
// requests (CLI, background eviction, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
