// Package sessions holds the durable authenticated state for one user agent
// and the stores that persist it: a stateless strategy that serialises the
// whole session into encrypted cookies, and a stateful strategy that keeps an
// opaque id in the cookie and the payload in an external data store.
package sessions

// TokenSet is the primary token material obtained at login and maintained by
// refresh. ExpiresAt is epoch seconds and is compared against wall-clock time
// with no skew allowance; refresh triggers only once it has already passed.
type TokenSet struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Expired reports whether the access token is missing or past its expiry at
// the given epoch-seconds instant.
func (ts TokenSet) Expired(now int64) bool {
	return ts.AccessToken == "" || ts.ExpiresAt <= now
}

// FederatedConnectionTokenSet is a delegated access token for one upstream
// connection. Connection is unique within a session.
type FederatedConnectionTokenSet struct {
	Connection  string `json:"connection"`
	AccessToken string `json:"accessToken"`
	Scope       string `json:"scope,omitempty"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// Internal carries session bookkeeping. CreatedAt is immutable once set and
// is the sole basis for expiry computation.
type Internal struct {
	SID       string `json:"sid"`
	CreatedAt int64  `json:"createdAt"`
}

// SessionData is the authenticated state for one user/browser. The federated
// token collection is omitted from serialisation entirely when empty,
// preserving the absent-vs-empty distinction for consumers.
type SessionData struct {
	User                         map[string]any                 `json:"user"`
	TokenSet                     TokenSet                       `json:"tokenSet"`
	Internal                     Internal                       `json:"internal"`
	FederatedConnectionTokenSets []*FederatedConnectionTokenSet `json:"federatedConnectionTokenSets,omitempty"`
}

// defaultAllowedClaims is the identity claim allow-list applied before a
// session is persisted.
var defaultAllowedClaims = []string{
	"sub",
	"name",
	"nickname",
	"given_name",
	"family_name",
	"picture",
	"email",
	"email_verified",
	"org_id",
}

// FilterClaims reduces raw ID-token claims to the allow-listed identity
// claims stored on the session.
func FilterClaims(claims map[string]any) map[string]any {
	filtered := make(map[string]any)
	for _, key := range defaultAllowedClaims {
		if value, ok := claims[key]; ok {
			filtered[key] = value
		}
	}
	return filtered
}
