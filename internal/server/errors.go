package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

const (
	msgBrokenLink     = "Broken payment link / Hibás fizetési link"
	msgInvalidResult  = "Not valid link / Nem megfelelő hívás"
	msgUpstreamResult = "Stripe session could not be retrieved"
	msgUpstream       = "Payment provider unavailable / A fizetési szolgáltató nem elérhető"
	msgNotFound       = "Not found / Nem található"
	msgInternal       = "Internal error / Belső hiba"
)

const errorFormatKey = "error_format"

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound = errors.New("not_found")
	ErrInternal = errors.New("internal_error")
)

// PageError carries the message shown to the buyer for a specific page.
type PageError struct {
	Message string
	Err     error
}

func (e *PageError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

func (e *PageError) Unwrap() error { return e.Err }

func withMessage(err error, message string) error {
	return &PageError{Message: message, Err: err}
}

// JSONErrors makes ErrorHandlingMiddleware answer with a JSON body.
func JSONErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(errorFormatKey, "json")
		c.Next()
	}
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if c.GetString(errorFormatKey) == "json" {
			c.AbortWithStatusJSON(status, errorResponse{Error: payload})
			return
		}
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.AbortWithStatus(status)
		_, _ = c.Writer.WriteString(payload.Message)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError hides error detail from the buyer; the detail is logged by the
// request logger.
func mapError(err error) (int, errorPayload) {
	status, payload := classify(err)

	var pageErr *PageError
	if errors.As(err, &pageErr) && pageErr.Message != "" {
		payload.Message = pageErr.Message
	}
	return status, payload
}

func classify(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: msgInternal}
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{Type: "payload_too_large", Message: "payload too large"}
	case errors.Is(err, domain.ErrSignatureRejected):
		return http.StatusBadRequest, errorPayload{Type: "signature_rejected", Message: "invalid signature"}
	case errors.Is(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest, errorPayload{Type: "malformed_request", Message: msgBrokenLink}
	case errors.Is(err, domain.ErrDeliveryInFlight):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "delivery in progress"}
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, errorPayload{Type: "upstream_unavailable", Message: msgUpstream}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: msgNotFound}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: msgInternal}
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := classify(err)
	switch {
	case errors.Is(err, domain.ErrEmptyPayload):
		return payload.Type, "empty_payload"
	case errors.Is(err, domain.ErrMalformedHeader):
		return payload.Type, "malformed_header"
	case errors.Is(err, domain.ErrTimestampOutsideTolerance):
		return payload.Type, "timestamp_outside_tolerance"
	case errors.Is(err, domain.ErrInvalidSignature):
		return payload.Type, "invalid_signature"
	case errors.Is(err, domain.ErrMalformedEvent):
		return payload.Type, "malformed_event"
	case errors.Is(err, domain.ErrSessionNotFound):
		return payload.Type, "session_not_found"
	default:
		return payload.Type, payload.Type
	}
}
