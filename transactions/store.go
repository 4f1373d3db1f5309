// Package transactions persists the short-lived state of a single login
// attempt across the authorization redirect round-trip. Each in-flight
// transaction lives in its own encrypted cookie, named after the OAuth state
// parameter so concurrent logins (two browser tabs) never collide.
package transactions

import (
	"errors"

	"github.com/jrsteele09/go-auth-client/cookies"
)

const (
	// DefaultCookiePrefix is prepended to the state value to form the
	// transaction cookie name.
	DefaultCookiePrefix = "__txn_"

	// transactionMaxAge bounds a login attempt to one hour regardless of the
	// session's rolling or absolute durations.
	transactionMaxAge = 60 * 60
)

// State is the per-login-attempt record bridging the redirect round-trip.
type State struct {
	State        string `json:"state"`
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"codeVerifier"`
	ResponseType string `json:"responseType"`
	ReturnTo     string `json:"returnTo,omitempty"`
	MaxAge       int64  `json:"maxAge,omitempty"`
}

// Store reads and writes transaction cookies.
type Store struct {
	secret       string
	cookiePrefix string
	cookieConfig cookies.Config
}

// Options configures a Store.
type Options struct {
	Secret       string
	CookiePrefix string
	CookieConfig cookies.Config
}

// NewStore creates a transaction store. An empty prefix falls back to
// DefaultCookiePrefix.
func NewStore(opts Options) (*Store, error) {
	if opts.Secret == "" {
		return nil, errors.New("[transactions.NewStore] secret is required")
	}
	prefix := opts.CookiePrefix
	if prefix == "" {
		prefix = DefaultCookiePrefix
	}
	cookieConfig := opts.CookieConfig
	if cookieConfig == (cookies.Config{}) {
		cookieConfig = cookies.DefaultConfig()
	}
	return &Store{
		secret:       opts.Secret,
		cookiePrefix: prefix,
		cookieConfig: cookieConfig,
	}, nil
}

func (s *Store) cookieName(state string) string {
	return s.cookiePrefix + state
}

// Save encrypts the transaction state into its cookie. A missing state value
// is a programmer error, not a recoverable condition.
func (s *Store) Save(jar *cookies.Jar, state *State) error {
	if state.State == "" {
		return errors.New("[transactions.Save] transaction state is required")
	}
	jwe, err := cookies.Encrypt(state, s.secret)
	if err != nil {
		return err
	}
	jar.Set(s.cookieName(state.State), jwe, s.cookieConfig, transactionMaxAge)
	return nil
}

// Get returns the transaction for the given state value, or nil when the
// cookie is absent or fails to decrypt. Both cases mean "no such
// transaction"; distinguishing missing from invalid state is the
// orchestrator's job.
func (s *Store) Get(jar *cookies.Jar, state string) (*State, error) {
	value, ok := jar.Get(s.cookieName(state))
	if !ok {
		return nil, nil
	}
	var txn State
	if err := cookies.Decrypt(value, s.secret, &txn); err != nil {
		if errors.Is(err, cookies.ErrDecrypt) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// Delete removes the transaction cookie for the given state value.
func (s *Store) Delete(jar *cookies.Jar, state string) {
	jar.Delete(s.cookieName(state), s.cookieConfig)
}
