package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

// HandleCheckout accepts did from the query string or a form body and
// redirects the buyer to the hosted checkout page.
func (s *Server) HandleCheckout(c *gin.Context) {
	did := c.Query("did")
	if did == "" {
		did = c.PostForm("did")
	}

	created, err := s.checkout.Create(c.Request.Context(), did, requestMeta(c))
	if err != nil {
		if isMalformed(err) {
			AbortWithError(c, withMessage(err, msgBrokenLink))
			return
		}
		AbortWithError(c, err)
		return
	}

	s.sessions.Remember(c, created.BackURL, created.PaysiteTitle)
	c.Redirect(http.StatusFound, created.Session.URL)
}

func isMalformed(err error) bool {
	return errors.Is(err, domain.ErrMalformedRequest)
}
