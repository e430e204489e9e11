package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"userdir/internal/auth"
	"userdir/internal/auth/provider"
	"userdir/internal/auth/resolver"
	"userdir/internal/handshake"
	"userdir/internal/logger"
	"userdir/internal/metrics"
	"userdir/internal/middleware"
	"userdir/internal/session"
)

type Deps struct {
	Providers  *provider.Registry
	Resolver   resolver.Resolver
	Sessions   *session.Manager
	Auth       *middleware.Auth
	Handshakes handshake.Store
	Metrics    *metrics.Metrics
	Cookies    session.CookieOptions
}

type Handler struct {
	providers  *provider.Registry
	resolver   resolver.Resolver
	sessions   *session.Manager
	auth       *middleware.Auth
	handshakes handshake.Store
	metrics    *metrics.Metrics
	cookies    session.CookieOptions
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		providers:  d.Providers,
		resolver:   d.Resolver,
		sessions:   d.Sessions,
		auth:       d.Auth,
		handshakes: d.Handshakes,
		metrics:    d.Metrics,
		cookies:    d.Cookies,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/auth")

	g.GET("/signin", h.signInPage)
	g.GET("/signin/:provider", h.login)
	g.GET("/callback/:provider", h.callback)
	g.POST("/callback/credentials", h.credentialsCallback)
	g.GET("/session", h.auth.Optional(h.currentSession))
	g.GET("/providers", h.listProviders)
	g.POST("/signout", h.signOut)
}

var displayNames = map[string]string{
	auth.ProviderCredentials: "Credentials",
	auth.ProviderGitHub:      "GitHub",
	auth.ProviderGoogle:      "Google",
}

type providerLink struct {
	Name string
	URL  string
}

// signInPage is the login entry point every guard redirects to.
func (h *Handler) signInPage(c *gin.Context) {
	callbackURL := safeCallbackURL(c.Query("callbackUrl"))

	var (
		links       []providerLink
		credentials bool
	)
	for _, name := range h.providers.Names() {
		if name == auth.ProviderCredentials {
			credentials = true
			continue
		}
		links = append(links, providerLink{
			Name: displayNames[name],
			URL:  "/api/auth/signin/" + name + "?callbackUrl=" + url.QueryEscape(callbackURL),
		})
	}

	var msg string
	if code := c.Query("error"); code != "" {
		var ok bool
		if msg, ok = signInMessages[code]; !ok {
			msg = signInMessages[codeCallback]
		}
	}

	c.HTML(http.StatusOK, "signin.html", gin.H{
		"Title":       "Sign in",
		"Providers":   links,
		"Credentials": credentials,
		"CallbackURL": callbackURL,
		"Error":       msg,
	})
}

// login starts a delegated handshake: state and PKCE verifier are stored
// server-side, then the browser goes to the provider.
func (h *Handler) login(c *gin.Context) {
	name := c.Param("provider")
	ctx := c.Request.Context()
	log := logger.From(ctx).With(logger.Provider(name))
	callbackURL := safeCallbackURL(c.Query("callbackUrl"))

	p, err := h.providers.OAuth(name)
	if err != nil {
		log.Warn("sign in with unavailable provider", logger.Err(err))
		redirectToSignIn(c, codeConfiguration, callbackURL)
		return
	}

	state, err := h.newState(c)
	if err != nil {
		log.Error("generate oauth state failed", logger.Err(err))
		redirectToSignIn(c, codeOAuthSignin, callbackURL)
		return
	}

	verifier, challenge := generatePKCE()

	err = h.handshakes.Save(ctx, state, handshake.Entry{
		Provider:     name,
		CodeVerifier: verifier,
		CallbackURL:  callbackURL,
	}, handshake.DefaultTTL)
	if err != nil {
		log.Error("save oauth handshake failed", logger.Err(err))
		redirectToSignIn(c, codeOAuthSignin, callbackURL)
		return
	}

	c.Redirect(http.StatusFound, p.AuthCodeURL(state, challenge))
}

// callback completes a delegated handshake.
func (h *Handler) callback(c *gin.Context) {
	name := c.Param("provider")
	ctx := c.Request.Context()

	p, err := h.providers.OAuth(name)
	if err != nil {
		h.fail(c, name, err, defaultCallbackURL)
		return
	}

	state, ok := validateState(c)
	h.clearState(c)
	if !ok {
		h.fail(c, name, fmt.Errorf("%w: state mismatch", auth.ErrProviderAuthFailed), defaultCallbackURL)
		return
	}

	entry, err := h.handshakes.Take(ctx, state)
	if errors.Is(err, handshake.ErrNotFound) {
		h.fail(c, name, fmt.Errorf("%w: handshake expired or replayed", auth.ErrProviderAuthFailed), defaultCallbackURL)
		return
	}
	if err != nil {
		h.fail(c, name, err, defaultCallbackURL)
		return
	}
	if entry.Provider != name {
		h.fail(c, name, fmt.Errorf("%w: handshake started for %s", auth.ErrProviderAuthFailed, entry.Provider), defaultCallbackURL)
		return
	}

	// The provider rejected the login, or the user cancelled it.
	if errParam := c.Query("error"); errParam != "" {
		h.fail(c, name, fmt.Errorf("%w: provider returned %s: %s",
			auth.ErrProviderAuthFailed, errParam, c.Query("error_description")), entry.CallbackURL)
		return
	}

	identity, err := p.Verify(ctx, provider.Payload{
		provider.PayloadCode:         c.Query("code"),
		provider.PayloadCodeVerifier: entry.CodeVerifier,
	})
	if err != nil {
		h.fail(c, name, err, entry.CallbackURL)
		return
	}

	if _, err := h.complete(c, identity); err != nil {
		h.fail(c, name, err, entry.CallbackURL)
		return
	}

	h.metrics.LoginAttempt(name, metrics.OutcomeSuccess)
	c.Redirect(http.StatusFound, entry.CallbackURL)
}

// credentialsCallback handles the email/password form. JSON callers get
// JSON answers, form posts get redirects.
func (h *Handler) credentialsCallback(c *gin.Context) {
	const name = auth.ProviderCredentials
	wantsJSON := c.ContentType() == binding.MIMEJSON

	payload, callbackURL, err := readCredentials(c, wantsJSON)
	var claims *session.Claims
	if err == nil {
		claims, err = h.credentialsLogin(c, payload)
	}

	if err != nil {
		if !wantsJSON {
			h.fail(c, name, err, callbackURL)
			return
		}
		status, code := statusFor(err)
		h.logFailure(c, name, err, status)
		h.metrics.LoginAttempt(name, outcomeFor(err))
		c.JSON(status, gin.H{"error": code})
		return
	}

	h.metrics.LoginAttempt(name, metrics.OutcomeSuccess)
	if wantsJSON {
		resp := newSessionResponse(claims)
		c.JSON(http.StatusOK, gin.H{
			"user":    resp.User,
			"expires": resp.Expires,
			"url":     callbackURL,
		})
		return
	}
	c.Redirect(http.StatusFound, callbackURL)
}

func (h *Handler) credentialsLogin(c *gin.Context, payload provider.Payload) (*session.Claims, error) {
	p, err := h.providers.Get(auth.ProviderCredentials)
	if err != nil {
		return nil, err
	}

	identity, err := p.Verify(c.Request.Context(), payload)
	if err != nil {
		return nil, err
	}

	return h.complete(c, identity)
}

// readCredentials collects the raw fields, keeping their types so the
// provider can reject malformed input.
func readCredentials(c *gin.Context, wantsJSON bool) (provider.Payload, string, error) {
	payload := provider.Payload{}

	if wantsJSON {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, defaultCallbackURL, fmt.Errorf("%w: %w", auth.ErrInvalidCredentialsFormat, err)
		}
		for _, k := range []string{"email", "password"} {
			if v, ok := body[k]; ok {
				payload[k] = v
			}
		}
		cb, _ := body["callbackUrl"].(string)
		return payload, safeCallbackURL(cb), nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, defaultCallbackURL, fmt.Errorf("%w: %w", auth.ErrInvalidCredentialsFormat, err)
	}
	for _, k := range []string{"email", "password"} {
		if v, ok := c.GetPostForm(k); ok {
			payload[k] = v
		}
	}
	return payload, safeCallbackURL(c.PostForm("callbackUrl")), nil
}

// complete runs the steps every successful verification shares, strictly
// in order: resolve the user, issue the session, hand it to the client.
func (h *Handler) complete(c *gin.Context, identity *auth.Identity) (*session.Claims, error) {
	ctx := c.Request.Context()

	user, err := h.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	token, claims, err := h.sessions.Issue(session.Subject{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return nil, err
	}

	session.SetCookie(c.Writer, token, claims.ExpiresAtTime(), h.cookies)
	h.metrics.SessionIssued()

	log := logger.From(ctx)
	log.Info("login succeeded",
		logger.Provider(identity.Provider),
		logger.UserID(user.ID),
	)
	log.Debug("identity resolved", logger.UserID(user.ID), logger.Email(identity.Email))
	return claims, nil
}

func (h *Handler) fail(c *gin.Context, name string, err error, callbackURL string) {
	status, code := statusFor(err)
	h.logFailure(c, name, err, status)
	h.metrics.LoginAttempt(metricsProvider(name), outcomeFor(err))
	redirectToSignIn(c, code, callbackURL)
}

func (h *Handler) logFailure(c *gin.Context, name string, err error, status int) {
	log := logger.From(c.Request.Context()).With(logger.Provider(name), logger.Err(err))
	if status >= http.StatusInternalServerError {
		log.Error("login failed")
		return
	}
	log.Warn("login rejected")
}

// metricsProvider keeps arbitrary path values out of metric labels.
func metricsProvider(name string) string {
	if _, ok := displayNames[name]; ok {
		return name
	}
	return "unknown"
}

func redirectToSignIn(c *gin.Context, code, callbackURL string) {
	q := url.Values{}
	q.Set("error", code)
	if callbackURL != "" && callbackURL != defaultCallbackURL {
		q.Set("callbackUrl", callbackURL)
	}
	c.Redirect(http.StatusFound, middleware.SignInPath+"?"+q.Encode())
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sessionResponse struct {
	User    sessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

func newSessionResponse(claims *session.Claims) sessionResponse {
	return sessionResponse{
		User: sessionUser{
			ID:    claims.UserID(),
			Email: claims.Email,
			Name:  claims.Name,
		},
		Expires: claims.ExpiresAtTime().UTC(),
	}
}

// currentSession is the client-side read model: the session or {}.
func (h *Handler) currentSession(c *gin.Context, claims *session.Claims) {
	c.Header("Cache-Control", "no-store")
	if claims == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(claims))
}

type providerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SignInURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

func (h *Handler) listProviders(c *gin.Context) {
	out := make(map[string]providerInfo)
	for _, name := range h.providers.Names() {
		info := providerInfo{
			ID:          name,
			Name:        displayNames[name],
			Type:        "oauth",
			SignInURL:   "/api/auth/signin/" + name,
			CallbackURL: "/api/auth/callback/" + name,
		}
		if name == auth.ProviderCredentials {
			info.Type = "credentials"
			info.SignInURL = "/api/auth/callback/credentials"
		}
		out[name] = info
	}
	c.JSON(http.StatusOK, out)
}

// signOut drops the session cookie. There is no server-side session to
// revoke: a copied token stays valid until it expires.
func (h *Handler) signOut(c *gin.Context) {
	session.ClearCookie(c.Writer, h.cookies)
	logger.From(c.Request.Context()).Info("signed out")

	if c.ContentType() == binding.MIMEPOSTForm {
		c.Redirect(http.StatusFound, safeCallbackURL(c.PostForm("callbackUrl")))
		return
	}
	c.Status(http.StatusNoContent)
}
