package server

import (
	"crypto/sha256"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/smallbiznis/paysite/internal/config"
	"go.uber.org/zap"
)

const (
	sessionName         = "paysite"
	sessionBackURL      = "st_back_url"
	sessionPaysiteTitle = "st_paysite_title"
)

// SessionStore keeps the buyer's back link and page title between the
// checkout redirect and the result page.
type SessionStore struct {
	store sessions.Store
	log   *zap.Logger
}

func NewSessionStore(cfg config.Config, log *zap.Logger) *SessionStore {
	log = log.Named("http.session")

	var key []byte
	if secret := strings.TrimSpace(cfg.SessionSecret); secret != "" {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	} else {
		key = securecookie.GenerateRandomKey(32)
		log.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   !cfg.IsDev(),
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store, log: log}
}

// Remember stores the non-empty values on the response cookie.
func (s *SessionStore) Remember(c *gin.Context, backURL, title string) {
	if backURL == "" && title == "" {
		return
	}
	sess, err := s.store.Get(c.Request, sessionName)
	if err != nil {
		s.log.Debug("discarding unreadable session", zap.Error(err))
	}
	if backURL != "" {
		sess.Values[sessionBackURL] = backURL
	}
	if title != "" {
		sess.Values[sessionPaysiteTitle] = title
	}
	if err := sess.Save(c.Request, c.Writer); err != nil {
		s.log.Warn("session save failed", zap.Error(err))
	}
}

// Recall returns the stored back link and title, empty when absent.
func (s *SessionStore) Recall(c *gin.Context) (string, string) {
	sess, err := s.store.Get(c.Request, sessionName)
	if err != nil {
		return "", ""
	}
	backURL, _ := sess.Values[sessionBackURL].(string)
	title, _ := sess.Values[sessionPaysiteTitle].(string)
	return backURL, title
}
