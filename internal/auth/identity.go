package auth

// Provider tags. The set is closed: the registry only knows these three.
const (
	ProviderCredentials = "credentials"
	ProviderGitHub      = "github"
	ProviderGoogle      = "google"
)

// Identity represents a normalized authentication identity returned by a
// provider for one login attempt. It contains facts only, no decisions,
// and is never persisted.
type Identity struct {
	Provider          string // one of the Provider* tags
	ProviderAccountID string // provider-scoped unique account identifier
	Email             string // join key across providers
	Name              string // optional display name
	EmailVerified     bool   // whether the provider asserts email ownership
}
