package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"userdir/internal/auth"
	"userdir/internal/auth/credentials"
	"userdir/internal/auth/provider"
	"userdir/internal/auth/resolver"
	"userdir/internal/handshake"
	"userdir/internal/metrics"
	"userdir/internal/middleware"
	"userdir/internal/session"
	"userdir/internal/store"
	"userdir/internal/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOAuth struct {
	name     string
	identity *auth.Identity
	err      error

	lastPayload   provider.Payload
	lastChallenge string
}

func (f *fakeOAuth) Name() string { return f.name }

func (f *fakeOAuth) AuthCodeURL(state, challenge string) string {
	f.lastChallenge = challenge
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Verify(_ context.Context, payload provider.Payload) (*auth.Identity, error) {
	f.lastPayload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type env struct {
	router   *gin.Engine
	store    *store.Memory
	sessions *session.Manager
	github   *fakeOAuth
}

func newEnv(t *testing.T) *env {
	t.Helper()

	mem := store.NewMemory()
	sessions, err := session.NewManager("handler-test-secret")
	require.NoError(t, err)

	gh := &fakeOAuth{
		name:     auth.ProviderGitHub,
		identity: &auth.Identity{Provider: auth.ProviderGitHub, ProviderAccountID: "42", Email: "ada@example.com", Name: "Ada"},
	}

	h := NewHandler(Deps{
		Providers:  provider.NewRegistry(credentials.New(), gh, nil),
		Resolver:   resolver.NewStoreResolver(mem),
		Sessions:   sessions,
		Auth:       middleware.NewAuth(sessions),
		Handshakes: handshake.NewMemoryStore(),
		Metrics:    metrics.New(),
	})

	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	h.RegisterRoutes(r)

	return &env{router: r, store: mem, sessions: sessions, github: gh}
}

func (e *env) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonLogin(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/callback/credentials", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formLogin(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/callback/credentials", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCredentials_JSONProvisionsAndReuses(t *testing.T) {
	e := newEnv(t)

	rec := e.do(jsonLogin(`{"email":"ada@example.com","password":"first"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ada@example.com", body.User.Email)
	assert.Equal(t, "/", body.URL)

	cookie := findCookie(rec, session.CookieName)
	require.NotNil(t, cookie)
	claims, err := e.sessions.Validate(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, body.User.ID, claims.UserID())

	rec = e.do(jsonLogin(`{"email":"ada@example.com","password":"something else"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))

	assert.Equal(t, body.User.ID, again.User.ID)
	assert.Equal(t, 1, e.store.Count())
}

func TestCredentials_JSONInvalidFormat(t *testing.T) {
	e := newEnv(t)

	for _, body := range []string{
		`{"email":"ada@example.com"}`,
		`{"email":"ada@example.com","password":42}`,
		`{"email":["a"],"password":"x"}`,
		`{"email":"   ","password":"x"}`,
		`not json`,
	} {
		rec := e.do(jsonLogin(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"CredentialsSignin"}`, rec.Body.String(), body)
		assert.Nil(t, findCookie(rec, session.CookieName), body)
	}
	assert.Zero(t, e.store.Count(), "store must not be touched")
}

func TestCredentials_FormRedirects(t *testing.T) {
	e := newEnv(t)

	rec := e.do(formLogin(url.Values{
		"email":       {"ada@example.com"},
		"password":    {"pw"},
		"callbackUrl": {"/protected-server"},
	}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/protected-server", rec.Header().Get("Location"))
	assert.NotNil(t, findCookie(rec, session.CookieName))

	rec = e.do(formLogin(url.Values{
		"email":       {"ada@example.com"},
		"password":    {"pw"},
		"callbackUrl": {"https://evil.example.com/"},
	}))
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = e.do(formLogin(url.Values{"email": {"ada@example.com"}}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/auth/signin?error=CredentialsSignin", rec.Header().Get("Location"))
	assert.Nil(t, findCookie(rec, session.CookieName))
}

// startOAuth runs the sign-in step and returns the state and its cookie.
func startOAuth(t *testing.T, e *env, callbackURL string) (string, *http.Cookie) {
	t.Helper()

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/auth/signin/github?callbackUrl="+url.QueryEscape(callbackURL), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", loc.Host)

	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cookie := findCookie(rec, stateCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, state, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	return state, cookie
}

func callbackReq(query string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/api/auth/callback/github?"+query, nil)
}

func TestOAuth_FullFlow(t *testing.T) {
	e := newEnv(t)
	state, stateCookie := startOAuth(t, e, "/protected-server")

	rec := e.do(callbackReq("code=abc&state="+state), stateCookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/protected-server", rec.Header().Get("Location"))

	sessionCookie := findCookie(rec, session.CookieName)
	require.NotNil(t, sessionCookie)
	claims, err := e.sessions.Validate(sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)

	verifier, _ := e.github.lastPayload.String(provider.PayloadCodeVerifier)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), e.github.lastChallenge)
	code, _ := e.github.lastPayload.String(provider.PayloadCode)
	assert.Equal(t, "abc", code)

	linked, err := e.store.FindUserByAccount(context.Background(), auth.ProviderGitHub, "42")
	require.NoError(t, err)
	assert.Equal(t, claims.UserID(), linked.ID)

	// The handshake is single use.
	rec = e.do(callbackReq("code=abc&state="+state), stateCookie)
	assert.Equal(t, "/api/auth/signin?error=OAuthCallback", rec.Header().Get("Location"))
}

func TestOAuth_CallbackRejections(t *testing.T) {
	cases := map[string]func(t *testing.T, e *env) *httptest.ResponseRecorder{
		"missing state cookie": func(t *testing.T, e *env) *httptest.ResponseRecorder {
			state, _ := startOAuth(t, e, "/")
			return e.do(callbackReq("code=abc&state=" + state))
		},
		"state mismatch": func(t *testing.T, e *env) *httptest.ResponseRecorder {
			_, cookie := startOAuth(t, e, "/")
			return e.do(callbackReq("code=abc&state=forged"), cookie)
		},
		"provider error": func(t *testing.T, e *env) *httptest.ResponseRecorder {
			state, cookie := startOAuth(t, e, "/")
			return e.do(callbackReq("error=access_denied&state="+state), cookie)
		},
		"verify fails": func(t *testing.T, e *env) *httptest.ResponseRecorder {
			e.github.err = fmt.Errorf("%w: token exchange", auth.ErrProviderAuthFailed)
			state, cookie := startOAuth(t, e, "/")
			return e.do(callbackReq("code=abc&state="+state), cookie)
		},
	}

	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			rec := run(t, e)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/api/auth/signin?error=OAuthCallback", rec.Header().Get("Location"))
			assert.Nil(t, findCookie(rec, session.CookieName))
			assert.Zero(t, e.store.Count())
		})
	}
}

func TestOAuth_StoreFailureDuringResolve(t *testing.T) {
	e := newEnv(t)
	e.github.identity = &auth.Identity{Provider: auth.ProviderGitHub, ProviderAccountID: "42"}

	state, cookie := startOAuth(t, e, "/protected-server")
	rec := e.do(callbackReq("code=abc&state="+state), cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/api/auth/signin?")
	assert.Nil(t, findCookie(rec, session.CookieName))
}

func TestOAuth_UnconfiguredProvider(t *testing.T) {
	e := newEnv(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/auth/signin/google", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/auth/signin?error=Configuration", rec.Header().Get("Location"))

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/auth/signin/credentials", nil))
	assert.Equal(t, "/api/auth/signin?error=Configuration", rec.Header().Get("Location"))

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/auth/callback/keycloak?code=x&state=y", nil))
	assert.Equal(t, "/api/auth/signin?error=Configuration", rec.Header().Get("Location"))
}

func TestSessionEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	token, claims, err := e.sessions.Issue(session.Subject{UserID: "u-1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil),
		&http.Cookie{Name: session.CookieName, Value: token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sessionUser{ID: "u-1", Email: "ada@example.com", Name: "Ada"}, body.User)
	assert.True(t, body.Expires.Equal(claims.ExpiresAtTime()))
}

func TestSignOut(t *testing.T) {
	e := newEnv(t)

	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := findCookie(rec, session.CookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", strings.NewReader("callbackUrl=%2Fprotected-client"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = e.do(req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/protected-client", rec.Header().Get("Location"))
}

func TestProvidersEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/auth/providers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]providerInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "credentials", body["credentials"].Type)
	assert.Equal(t, "/api/auth/callback/credentials", body["credentials"].SignInURL)
	assert.Equal(t, "oauth", body["github"].Type)
	assert.Equal(t, "GitHub", body["github"].Name)
}

func TestSignInPage(t *testing.T) {
	e := newEnv(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/auth/signin?callbackUrl=%2Fprotected-server&error=CredentialsSignin", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, html, "Sign in with GitHub")
	assert.Contains(t, html, "/api/auth/signin/github?callbackUrl=%2Fprotected-server")
	assert.NotContains(t, html, "Sign in with Google")
	assert.Contains(t, html, `action="/api/auth/callback/credentials"`)
	assert.Contains(t, html, signInMessages[codeCredentialsSignin])
}

func TestSafeCallbackURL(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/":                       "/",
		"/protected-server":       "/protected-server",
		"/protected?tab=1":        "/protected?tab=1",
		"https://evil.example":    "/",
		"//evil.example/path":     "/",
		"/\\evil.example":         "/",
		"javascript:alert(1)":     "/",
		"relative/path":           "/",
		"/ok\r\nSet-Cookie: x=1": "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeCallbackURL(in), "input %q", in)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: x", auth.ErrInvalidCredentialsFormat), http.StatusBadRequest, codeCredentialsSignin},
		{fmt.Errorf("%w: x", auth.ErrProviderAuthFailed), http.StatusUnauthorized, codeOAuthCallback},
		{auth.ErrUnauthorized, http.StatusUnauthorized, codeCallback},
		{session.ErrInvalid, http.StatusUnauthorized, codeCallback},
		{fmt.Errorf("%w: x", auth.ErrUnknownProvider), http.StatusNotFound, codeConfiguration},
		{fmt.Errorf("%w: db down", auth.ErrStoreFailure), http.StatusInternalServerError, codeCallback},
		{errors.New("boom"), http.StatusInternalServerError, codeCallback},
	}
	for _, tc := range cases {
		status, code := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
