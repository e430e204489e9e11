// Package client is the client-side read model of the session. It talks to
// the session endpoints over HTTP with a cookie jar and exposes the result
// as an explicit three-state Task instead of a blocking call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"userdir/internal/middleware"
	"userdir/internal/session"
)

var ErrSignInFailed = errors.New("client: sign in failed")

const (
	sessionPath     = "/api/auth/session"
	credentialsPath = "/api/auth/callback/credentials"
	signOutPath     = "/api/auth/signout"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Client struct {
	base *url.URL
	http *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client. A jar is attached when the
// given client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: base url %q is not absolute", baseURL)
	}

	c := &Client{base: base, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// SignInURL is where a guard sends the browser when there is no session.
func (c *Client) SignInURL(callbackURL string) string {
	return c.endpoint(middleware.SignInURL(callbackURL))
}

// SignIn performs a credentials login. On success the session cookie lands
// in the jar; callers re-issue Resolve to observe it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(credentialsPath), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return nil, fmt.Errorf("%w: %d %s", ErrSignInFailed, resp.StatusCode, failure.Error)
	}

	var ok struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return nil, fmt.Errorf("client: decode sign in response: %w", err)
	}
	return &ok.User, nil
}

// SignOut clears the session on the server and drops it from the jar even
// when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	defer c.dropSession()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(signOutPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("client: sign out: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) dropSession() {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{
		Name:   session.CookieName,
		Path:   "/",
		MaxAge: -1,
	}})
}

// HasSessionCookie reports whether the jar currently holds a session token.
func (c *Client) HasSessionCookie() bool {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == session.CookieName && ck.Value != "" {
			return true
		}
	}
	return false
}

// fetch reads the session endpoint. Any transport or decoding problem
// counts as no session.
func (c *Client) fetch(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(sessionPath), nil)
	if err != nil {
		return unauthenticated(), nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return State{}, ctx.Err()
		}
		return unauthenticated(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unauthenticated(), nil
	}

	var body struct {
		User    *User     `json:"user"`
		Expires time.Time `json:"expires"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return State{}, ctx.Err()
		}
		return unauthenticated(), nil
	}
	if body.User == nil || body.User.ID == "" {
		return unauthenticated(), nil
	}

	return State{Status: StatusAuthenticated, User: body.User, Expires: body.Expires}, nil
}

func unauthenticated() State {
	return State{Status: StatusUnauthenticated}
}
