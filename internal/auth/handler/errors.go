package handler

import (
	"errors"
	"net/http"

	"userdir/internal/auth"
	"userdir/internal/metrics"
	"userdir/internal/session"
)

// Error codes placed in the sign-in page query string.
const (
	codeCredentialsSignin = "CredentialsSignin"
	codeOAuthSignin       = "OAuthSignin"
	codeOAuthCallback     = "OAuthCallback"
	codeCallback          = "Callback"
	codeConfiguration     = "Configuration"
)

// signInMessages are the only failure texts a user ever sees.
var signInMessages = map[string]string{
	codeCredentialsSignin: "Sign in failed. Check the details you provided are correct.",
	codeOAuthSignin:       "Could not start the sign in. Try again.",
	codeOAuthCallback:     "Sign in with the provider failed. Try again or use another provider.",
	codeCallback:          "Sign in failed. Try again.",
	codeConfiguration:     "This sign in method is not available.",
}

// statusFor maps a login error to the HTTP status and sign-in error code.
// Provider and store details are logged, never returned.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentialsFormat):
		return http.StatusBadRequest, codeCredentialsSignin

	case errors.Is(err, auth.ErrProviderAuthFailed):
		return http.StatusUnauthorized, codeOAuthCallback

	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, session.ErrInvalid):
		return http.StatusUnauthorized, codeCallback

	case errors.Is(err, auth.ErrUnknownProvider):
		return http.StatusNotFound, codeConfiguration

	default:
		return http.StatusInternalServerError, codeCallback
	}
}

// outcomeFor buckets a login error for the login_attempts_total metric.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, auth.ErrInvalidCredentialsFormat):
		return metrics.OutcomeInvalidInput
	case errors.Is(err, auth.ErrProviderAuthFailed),
		errors.Is(err, auth.ErrUnknownProvider):
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeError
	}
}
