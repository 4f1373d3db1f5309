package sessions

import (
	"context"
	"sync"
)

// InMemoryDataStore is an in-memory implementation of DataStore, suitable for
// single-process deployments and tests.
type InMemoryDataStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionData
}

var _ DataStore = (*InMemoryDataStore)(nil)

// NewInMemoryDataStore creates a new in-memory session data store.
func NewInMemoryDataStore() *InMemoryDataStore {
	return &InMemoryDataStore{
		sessions: make(map[string]*SessionData),
	}
}

// Get retrieves a session by id. Absent records return nil, not an error.
func (r *InMemoryDataStore) Get(_ context.Context, id string) (*SessionData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

// Set creates or replaces the session record for id.
func (r *InMemoryDataStore) Set(_ context.Context, id string, session *SessionData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications.
	copied := *session
	r.sessions[id] = &copied
	return nil
}

// Delete removes a session record. Deleting an absent record is a no-op.
func (r *InMemoryDataStore) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// DeleteByLogoutToken removes every session whose subject or session id
// matches the logout token claims.
func (r *InMemoryDataStore) DeleteByLogoutToken(_ context.Context, claims LogoutClaims) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, session := range r.sessions {
		if claims.SID != "" && session.Internal.SID == claims.SID {
			delete(r.sessions, id)
			continue
		}
		if claims.Sub != "" {
			if sub, ok := session.User["sub"].(string); ok && sub == claims.Sub {
				delete(r.sessions, id)
			}
		}
	}
	return nil
}
