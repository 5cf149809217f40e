package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/paysite/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// endpoints folds the legacy .php paths onto the flow they serve.
var endpoints = map[string]string{
	"/":            "checkout",
	"/index.php":   "checkout",
	"/result":      "result",
	"/result.php":  "result",
	"/webhook":     "webhook",
	"/webhook.php": "webhook",
}

// Endpoint names the payment flow of a route, "other" for infrastructure routes.
func Endpoint(route string) string {
	if name, ok := endpoints[route]; ok {
		return name
	}
	return "other"
}

// GinMiddleware opens one server span per request. Rejected webhook
// deliveries are recorded on the span but only 5xx responses mark it failed.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("paysite/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.String("paysite.endpoint", Endpoint(route)),
			attribute.Int("http.status_code", status),
		)...)

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}
		if safeErr := SafeError(lastErr.Err); safeErr != nil {
			span.RecordError(safeErr)
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
