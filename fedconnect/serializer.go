package fedconnect

import "github.com/jrsteele09/go-auth-client/sessions"

// AddOrUpdateTokenSet merges a federated token set into the session's
// collection. Insertion is by connection identity, not position: an existing
// entry for the same connection is replaced in place, leaving the order of
// unrelated connections untouched.
func AddOrUpdateTokenSet(session *sessions.SessionData, tokenSet *sessions.FederatedConnectionTokenSet) {
	for i, existing := range session.FederatedConnectionTokenSets {
		if existing.Connection == tokenSet.Connection {
			session.FederatedConnectionTokenSets[i] = tokenSet
			return
		}
	}
	session.FederatedConnectionTokenSets = append(session.FederatedConnectionTokenSets, tokenSet)
}

// FindTokenSet returns the session's token set for the connection, or nil.
func FindTokenSet(session *sessions.SessionData, connection string) *sessions.FederatedConnectionTokenSet {
	for _, tokenSet := range session.FederatedConnectionTokenSets {
		if tokenSet.Connection == connection {
			return tokenSet
		}
	}
	return nil
}
