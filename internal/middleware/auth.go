package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"userdir/internal/session"
)

// SignInPath is the login entry point guarded surfaces redirect to.
const SignInPath = "/api/auth/signin"

// SignInURL returns the login entry point that sends the user back to
// callback after a successful login.
func SignInURL(callback string) string {
	if callback == "" || callback == "/" {
		return SignInPath
	}
	return SignInPath + "?callbackUrl=" + url.QueryEscape(callback)
}

// SessionHandler receives the session resolved for the current request.
// Handlers get it as an argument; nothing downstream re-reads the cookie.
type SessionHandler func(c *gin.Context, claims *session.Claims)

// Auth resolves the session once per request and applies the guard policy.
type Auth struct {
	sessions *session.Manager
}

func NewAuth(sessions *session.Manager) *Auth {
	return &Auth{sessions: sessions}
}

// resolve is a pure local check: signature and expiry, no store access.
func (a *Auth) resolve(r *http.Request) (*session.Claims, bool) {
	return a.sessions.FromRequest(r)
}
