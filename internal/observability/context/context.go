package context

import "context"

type requestIDKey struct{}
type deliveryIDKey struct{}

// WithRequestID stores the inbound request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request identifier or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDeliveryID stores the webhook delivery identifier.
func WithDeliveryID(ctx context.Context, deliveryID string) context.Context {
	if deliveryID == "" {
		return ctx
	}
	return context.WithValue(ctx, deliveryIDKey{}, deliveryID)
}

// DeliveryIDFromContext returns the webhook delivery identifier or an empty string.
func DeliveryIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(deliveryIDKey{}).(string); ok {
		return v
	}
	return ""
}
