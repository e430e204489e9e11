package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"userdir/internal/handshake"
	"userdir/internal/utils"
)

const (
	stateCookieName = "__oauth_state"
	stateTTL        = handshake.DefaultTTL
)

// newState generates the OAuth state and binds it to the browser. The
// server-side half lives in the handshake store under the same value.
func (h *Handler) newState(c *gin.Context) (string, error) {
	state, err := utils.RandomString(32)
	if err != nil {
		return "", err
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/auth/callback",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateTTL.Seconds()),
	})

	return state, nil
}

// validateState checks the state query parameter against the cookie set
// by newState.
func validateState(c *gin.Context) (string, bool) {
	stateQuery := c.Query("state")
	if stateQuery == "" {
		return "", false
	}

	cookie, err := c.Request.Cookie(stateCookieName)
	if err != nil {
		return "", false
	}

	return stateQuery, cookie.Value == stateQuery
}

func (h *Handler) clearState(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/api/auth/callback",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
