package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"userdir/internal/logger"
	"userdir/internal/session"
)

// Require guards API operations. Without a valid session the request ends
// with 401 before next runs.
func (a *Auth) Require(next SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.resolve(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		withUser(c, claims)
		next(c, claims)
	}
}

// RequirePage guards server-rendered pages. Without a valid session the
// browser is redirected to sign-in before any protected content is built.
func (a *Auth) RequirePage(next SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.resolve(c.Request)
		if !ok {
			c.Redirect(http.StatusFound, SignInURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		withUser(c, claims)
		next(c, claims)
	}
}

// Optional passes the session when there is one and nil otherwise.
func (a *Auth) Optional(next SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.resolve(c.Request)
		if !ok {
			next(c, nil)
			return
		}

		withUser(c, claims)
		next(c, claims)
	}
}

// withUser tags the request logger with the authenticated user.
func withUser(c *gin.Context, claims *session.Claims) {
	ctx := c.Request.Context()
	l := logger.From(ctx).With(logger.UserID(claims.UserID()))
	c.Request = c.Request.WithContext(logger.ToContext(ctx, l))
}
