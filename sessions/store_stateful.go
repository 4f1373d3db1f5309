package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-auth-client/cookies"
)

// sessionCookie is the only payload the stateful strategy keeps client-side.
// It is still encrypted so session ids cannot be enumerated.
type sessionCookie struct {
	ID string `json:"id"`
}

// StatefulStore keeps an opaque session id in the primary cookie and the
// session payload in an external DataStore addressed by that id.
type StatefulStore struct {
	storeConfig
	store DataStore
}

var _ Store = (*StatefulStore)(nil)

// NewStatefulStore creates the server-side session store.
func NewStatefulStore(opts Options, store DataStore) (*StatefulStore, error) {
	if store == nil {
		return nil, errors.New("[sessions.NewStatefulStore] data store is required")
	}
	cfg, err := newStoreConfig(opts)
	if err != nil {
		return nil, err
	}
	return &StatefulStore{storeConfig: cfg, store: store}, nil
}

// generateID produces a crypto-random session id with a 128-bit space.
func generateID() string {
	return uuid.NewString()
}

// Get resolves the cookie-held id and loads the session from the external
// store. Undecryptable cookies look like an absent session.
func (s *StatefulStore) Get(ctx context.Context, jar *cookies.Jar) (*SessionData, error) {
	id, err := s.sessionID(jar)
	if err != nil || id == "" {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Set persists the session externally. An existing cookie's id is reused to
// preserve the record; on a fresh login the old record is deleted and a new
// id generated to defeat session fixation.
func (s *StatefulStore) Set(ctx context.Context, jar *cookies.Jar, session *SessionData, isNew bool) error {
	id, err := s.sessionID(jar)
	if err != nil {
		return err
	}

	if id != "" && isNew {
		if err := s.store.Delete(ctx, id); err != nil {
			return err
		}
		id = generateID()
	}
	if id == "" {
		id = generateID()
	}

	jwe, err := cookies.Encrypt(sessionCookie{ID: id}, s.secret)
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, id, session); err != nil {
		return err
	}
	maxAge := s.calculateMaxAge(session.Internal.CreatedAt)
	jar.Set(s.cookieName, jwe, s.cookieConfig, int(maxAge))
	return nil
}

// Delete clears the cookie and removes the external record. An absent or
// undecryptable cookie is a no-op.
func (s *StatefulStore) Delete(ctx context.Context, jar *cookies.Jar) error {
	id, err := s.sessionID(jar)
	if err != nil {
		return err
	}
	jar.Delete(s.cookieName, s.cookieConfig)
	if id == "" {
		return nil
	}
	return s.store.Delete(ctx, id)
}

func (s *StatefulStore) sessionID(jar *cookies.Jar) (string, error) {
	value, ok := jar.Get(s.cookieName)
	if !ok {
		return "", nil
	}
	var c sessionCookie
	if err := cookies.Decrypt(value, s.secret, &c); err != nil {
		if errors.Is(err, cookies.ErrDecrypt) {
			return "", nil
		}
		return "", err
	}
	return c.ID, nil
}
