package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paysite/internal/render"
	"go.uber.org/zap"
)

func (s *Server) HandleResult(c *gin.Context) {
	session, err := s.checkout.Result(c.Request.Context(), c.Query("sid"), requestMeta(c))
	if err != nil {
		if isMalformed(err) {
			AbortWithError(c, withMessage(err, msgInvalidResult))
			return
		}
		AbortWithError(c, withMessage(err, msgUpstreamResult))
		return
	}

	backURL, title := s.pageSettings(c)
	html, err := s.renderer.RenderHTML(render.NewResultPage(session, title, backURL))
	if err != nil {
		s.log.Error("result page render failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// pageSettings resolves the back link and title from the browser session,
// then the site settings, then the global configuration.
func (s *Server) pageSettings(c *gin.Context) (string, string) {
	backURL, title := s.sessions.Recall(c)
	site, _ := s.sites.Get().Site(s.cfg.SiteName)
	return firstNonEmpty(backURL, site.BackURL, s.cfg.BackURL),
		firstNonEmpty(title, site.PaysiteTitle, s.cfg.PaysiteTitle)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
