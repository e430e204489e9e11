// Package web renders the server-side pages. Every page receives the
// request's session explicitly from the middleware; nothing here reads
// cookies.
package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"userdir/internal/logger"
	"userdir/internal/middleware"
	"userdir/internal/session"
	"userdir/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses the embedded page templates for gin's HTML renderer.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))
}

type Pages struct {
	users store.Store
}

func NewPages(users store.Store) *Pages {
	return &Pages{users: users}
}

func (p *Pages) Register(r gin.IRouter, auth *middleware.Auth) {
	r.GET("/", auth.Optional(p.Home))
	r.GET("/protected-server", auth.RequirePage(p.ProtectedServer))
	r.GET("/protected-client", p.ProtectedClient)
}

// Home lists users, but only for a signed-in visitor. claims may be nil.
func (p *Pages) Home(c *gin.Context, claims *session.Claims) {
	data := gin.H{"Title": "User directory", "User": claims}
	if claims == nil {
		c.HTML(http.StatusOK, "home.html", data)
		return
	}

	users, err := p.users.ListUsers(c.Request.Context())
	if err != nil {
		logger.From(c.Request.Context()).Error("list users failed", logger.Err(err))
		data["Error"] = "Failed to load users"
		c.HTML(http.StatusInternalServerError, "home.html", data)
		return
	}

	data["Users"] = users
	c.HTML(http.StatusOK, "home.html", data)
}

// ProtectedServer is only reached after RequirePage resolved a session.
func (p *Pages) ProtectedServer(c *gin.Context, claims *session.Claims) {
	c.HTML(http.StatusOK, "protected_server.html", gin.H{
		"Title": "Protected Server Page",
		"User":  claims,
	})
}

// ProtectedClient serves a neutral shell. The browser resolves the session
// through /api/auth/session and redirects to sign-in when there is none.
func (p *Pages) ProtectedClient(c *gin.Context) {
	c.HTML(http.StatusOK, "protected_client.html", gin.H{
		"Title":     "Protected Client Page",
		"SignInURL": middleware.SignInURL(c.Request.URL.Path),
	})
}
