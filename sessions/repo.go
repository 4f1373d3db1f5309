package sessions

import "context"

// LogoutClaims identifies the sessions a back-channel logout token targets.
// At least one of Sub or SID is set.
type LogoutClaims struct {
	Sub string
	SID string
}

// DataStore is the external key/value collaborator backing the stateful
// session strategy. Implementations own record expiry; ids are opaque.
type DataStore interface {
	// Get returns the session for id, or nil when absent or expired.
	Get(ctx context.Context, id string) (*SessionData, error)

	// Set stores the session under id, replacing any previous record.
	Set(ctx context.Context, id string, session *SessionData) error

	// Delete removes the record for id. Deleting an absent record is a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteByLogoutToken removes every session matching the logout token's
	// subject or session id, independent of any browser-held cookie.
	DeleteByLogoutToken(ctx context.Context, claims LogoutClaims) error
}
