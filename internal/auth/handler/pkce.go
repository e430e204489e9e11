package handler

import "golang.org/x/oauth2"

// generatePKCE returns an RFC 7636 verifier and its S256 challenge. The
// verifier never reaches the browser; it is kept in the handshake store.
func generatePKCE() (verifier string, challenge string) {
	verifier = oauth2.GenerateVerifier()
	challenge = oauth2.S256ChallengeFromVerifier(verifier)
	return verifier, challenge
}
