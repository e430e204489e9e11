package google

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userdir/internal/auth"
	"userdir/internal/auth/provider"
)

const (
	testClientID = "client-id.apps.googleusercontent.com"
	testKeyID    = "test-key"
)

// fakeIssuer is a minimal OpenID provider: discovery, JWKS and a token
// endpoint that returns whatever ID token claims the test configures.
type fakeIssuer struct {
	srv *httptest.Server
	key *rsa.PrivateKey

	claims      jwt.MapClaims
	gotVerifier string
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key}
	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                f.srv.URL,
			"authorization_endpoint":                f.srv.URL + "/o/oauth2/v2/auth",
			"token_endpoint":                        f.srv.URL + "/token",
			"jwks_uri":                              f.srv.URL + "/certs",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})

	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		pub := f.key.PublicKey
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.gotVerifier = r.PostForm.Get("code_verifier")
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		resp := map[string]any{
			"access_token": "ya29.test",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if f.claims != nil {
			resp["id_token"] = f.sign(t, f.claims)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKeyID
	s, err := tok.SignedString(f.key)
	require.NoError(t, err)
	return s
}

func (f *fakeIssuer) validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            f.srv.URL,
		"aud":            testClientID,
		"sub":            "1122334455",
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newTestProvider(t *testing.T, f *fakeIssuer) *Provider {
	t.Helper()
	p, err := New(context.Background(), testClientID, "client-secret",
		"http://localhost/api/auth/callback/google", WithIssuer(f.srv.URL))
	require.NoError(t, err)
	return p
}

var goodPayload = provider.Payload{
	provider.PayloadCode:         "good-code",
	provider.PayloadCodeVerifier: "verifier-1",
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), testClientID, "", "http://localhost/cb")
	assert.Error(t, err)
}

func TestNew_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := New(context.Background(), testClientID, "secret", "http://localhost/cb", WithIssuer(srv.URL))
	assert.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f)

	u, err := url.Parse(p.AuthCodeURL("state-1", "challenge-1"))
	require.NoError(t, err)

	assert.Equal(t, "/o/oauth2/v2/auth", u.Path)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "challenge-1", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestVerify_Success(t *testing.T) {
	f := newFakeIssuer(t)
	f.claims = f.validClaims()
	p := newTestProvider(t, f)

	id, err := p.Verify(context.Background(), goodPayload)
	require.NoError(t, err)

	assert.Equal(t, &auth.Identity{
		Provider:          auth.ProviderGoogle,
		ProviderAccountID: "1122334455",
		Email:             "ada@example.com",
		Name:              "Ada Lovelace",
		EmailVerified:     true,
	}, id)
	assert.Equal(t, "verifier-1", f.gotVerifier)
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	cases := map[string]func(f *fakeIssuer) jwt.MapClaims{
		"wrong audience": func(f *fakeIssuer) jwt.MapClaims {
			c := f.validClaims()
			c["aud"] = "someone-else"
			return c
		},
		"wrong issuer": func(f *fakeIssuer) jwt.MapClaims {
			c := f.validClaims()
			c["iss"] = "https://evil.example.com"
			return c
		},
		"expired": func(f *fakeIssuer) jwt.MapClaims {
			c := f.validClaims()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return c
		},
		"unverified email": func(f *fakeIssuer) jwt.MapClaims {
			c := f.validClaims()
			c["email_verified"] = false
			return c
		},
		"missing email": func(f *fakeIssuer) jwt.MapClaims {
			c := f.validClaims()
			delete(c, "email")
			return c
		},
		"no id token": func(f *fakeIssuer) jwt.MapClaims {
			return nil
		},
	}

	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFakeIssuer(t)
			f.claims = mk(f)
			p := newTestProvider(t, f)

			_, err := p.Verify(context.Background(), goodPayload)
			assert.ErrorIs(t, err, auth.ErrProviderAuthFailed)
		})
	}
}

func TestVerify_BadPayload(t *testing.T) {
	f := newFakeIssuer(t)
	f.claims = f.validClaims()
	p := newTestProvider(t, f)

	cases := map[string]provider.Payload{
		"missing code":     {provider.PayloadCodeVerifier: "v"},
		"missing verifier": {provider.PayloadCode: "good-code"},
		"rejected code":    {provider.PayloadCode: "bad-code", provider.PayloadCodeVerifier: "v"},
	}
	for name, payload := range cases {
		_, err := p.Verify(context.Background(), payload)
		assert.ErrorIs(t, err, auth.ErrProviderAuthFailed, name)
	}
}
