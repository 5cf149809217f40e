package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paysite/internal/payment/adapters/stripe"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

// maxWebhookBody bounds a single delivery. Provider events are far smaller.
const maxWebhookBody = 1 << 20

// HandleWebhook reads the body as raw bytes; the signature covers them
// exactly as sent.
func (s *Server) HandleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		AbortWithError(c, fmt.Errorf("%w: limit %d bytes", domain.ErrPayloadTooLarge, tooLarge.Limit))
		return
	}
	if err != nil {
		AbortWithError(c, fmt.Errorf("%w: read body: %v", domain.ErrEmptyPayload, err))
		return
	}

	if _, err := s.webhookSvc.IngestWebhook(c.Request.Context(), payload, c.GetHeader(stripe.SignatureHeader), requestMeta(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
