// Package github implements the GitHub delegated login.
// GitHub speaks plain OAuth 2.0 without ID tokens, so the identity is read
// from the REST API with the exchanged access token.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"userdir/internal/auth"
	"userdir/internal/auth/provider"
	"userdir/internal/logger"
)

const (
	providerName      = auth.ProviderGitHub
	defaultAPIBaseURL = "https://api.github.com"
)

// Provider implements OAuth against GitHub.
// It returns identity facts only; no user/session decisions are made here.
type Provider struct {
	oauthConfig *oauth2.Config
	apiBaseURL  string
	httpClient  *http.Client
}

type Option func(*Provider)

// WithEndpoint overrides the GitHub authorize/token endpoints.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(p *Provider) { p.oauthConfig.Endpoint = ep }
}

// WithAPIBaseURL overrides https://api.github.com.
func WithAPIBaseURL(u string) Option {
	return func(p *Provider) { p.apiBaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for the token exchange and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

func New(
	clientID string,
	clientSecret string,
	redirectURL string,
	opts ...Option,
) (*Provider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("github oauth config missing required fields")
	}

	p := &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBaseURL: defaultAPIBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

type userInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Verify exchanges the authorization code carried in payload and returns a
// normalized identity. This method MUST NOT create users or sessions.
func (p *Provider) Verify(ctx context.Context, payload provider.Payload) (*auth.Identity, error) {
	log := logger.From(ctx).With(logger.Provider(providerName))

	code, _ := payload.String(provider.PayloadCode)
	if code == "" {
		return nil, fmt.Errorf("%w: github: missing code", auth.ErrProviderAuthFailed)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	var exchangeOpts []oauth2.AuthCodeOption
	if verifier, _ := payload.String(provider.PayloadCodeVerifier); verifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(verifier))
	}

	token, err := p.oauthConfig.Exchange(ctx, code, exchangeOpts...)
	if err != nil {
		log.Warn("github token exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: github token exchange: %w", auth.ErrProviderAuthFailed, err)
	}

	client := p.oauthConfig.Client(ctx, token)

	var user userInfo
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		log.Warn("github user fetch failed", logger.Err(err))
		return nil, fmt.Errorf("%w: github user: %w", auth.ErrProviderAuthFailed, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: github user has no id", auth.ErrProviderAuthFailed)
	}

	// The profile email is only set when the user made it public. Private
	// addresses need the emails endpoint.
	email := user.Email
	if email == "" {
		var emails []emailInfo
		if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			log.Warn("github emails fetch failed", logger.Err(err))
			return nil, fmt.Errorf("%w: github emails: %w", auth.ErrProviderAuthFailed, err)
		}
		email = pickEmail(emails)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: github account has no verified email", auth.ErrProviderAuthFailed)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	log.Debug("github identity verified",
		zap.Int64("github_id", user.ID),
		zap.String("login", user.Login),
	)

	return &auth.Identity{
		Provider:          providerName,
		ProviderAccountID: strconv.FormatInt(user.ID, 10),
		Email:             email,
		Name:              name,
		EmailVerified:     true,
	}, nil
}

// pickEmail prefers the primary verified address, then any verified one.
// Unverified addresses are never used: email is the cross-provider join key.
func pickEmail(emails []emailInfo) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

func (p *Provider) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
