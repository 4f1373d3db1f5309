package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/cookies"
)

// FederatedCookiePrefix names the auxiliary cookies that hold federated
// connection token sets, one numbered cookie per connection.
const FederatedCookiePrefix = "__FC"

// maxCookieBytes is the serialised Set-Cookie size at which browsers start
// silently dropping or truncating cookies. Reaching it is an operability
// signal, never a request failure.
const maxCookieBytes = 4096

// StatelessStore serialises the whole session into encrypted cookies: the
// session minus federated tokens in the primary cookie, and each federated
// token set in its own auxiliary cookie so they can expire and be dropped
// independently.
type StatelessStore struct {
	storeConfig
}

var _ Store = (*StatelessStore)(nil)

// NewStatelessStore creates the cookie-only session store.
func NewStatelessStore(opts Options) (*StatelessStore, error) {
	cfg, err := newStoreConfig(opts)
	if err != nil {
		return nil, err
	}
	return &StatelessStore{storeConfig: cfg}, nil
}

// Get rebuilds the session from the primary cookie and any federated token
// cookies. Auxiliary cookies are decrypted concurrently; an undecryptable
// primary cookie means "no session".
func (s *StatelessStore) Get(_ context.Context, jar *cookies.Jar) (*SessionData, error) {
	value, ok := jar.Get(s.cookieName)
	if !ok {
		return nil, nil
	}

	var session SessionData
	if err := cookies.Decrypt(value, s.secret, &session); err != nil {
		if errors.Is(err, cookies.ErrDecrypt) {
			return nil, nil
		}
		return nil, err
	}

	federatedCookies := s.federatedCookies(jar)
	if len(federatedCookies) == 0 {
		return &session, nil
	}

	tokenSets := make([]*FederatedConnectionTokenSet, len(federatedCookies))
	var wg sync.WaitGroup
	for i, c := range federatedCookies {
		wg.Add(1)
		go func(i int, value string) {
			defer wg.Done()
			var ts FederatedConnectionTokenSet
			if err := cookies.Decrypt(value, s.secret, &ts); err == nil {
				tokenSets[i] = &ts
			}
		}(i, c.Value)
	}
	wg.Wait()

	for _, ts := range tokenSets {
		if ts != nil {
			session.FederatedConnectionTokenSets = append(session.FederatedConnectionTokenSets, ts)
		}
	}
	return &session, nil
}

// Set writes the session cookies. The federated token collection is split off
// and stored one cookie per entry; the isNew flag is irrelevant to the
// stateless strategy.
func (s *StatelessStore) Set(_ context.Context, jar *cookies.Jar, session *SessionData, _ bool) error {
	maxAge := s.calculateMaxAge(session.Internal.CreatedAt)

	primary := *session
	primary.FederatedConnectionTokenSets = nil
	if err := s.storeInCookie(jar, &primary, s.cookieName, maxAge); err != nil {
		return err
	}

	for index, tokenSet := range session.FederatedConnectionTokenSets {
		name := fmt.Sprintf("%s_%d", FederatedCookiePrefix, index)
		if err := s.storeInCookie(jar, tokenSet, name, maxAge); err != nil {
			return err
		}
	}
	return nil
}

// Delete clears the primary cookie and every discovered federated cookie.
func (s *StatelessStore) Delete(_ context.Context, jar *cookies.Jar) error {
	jar.Delete(s.cookieName, s.cookieConfig)
	for _, c := range s.federatedCookies(jar) {
		jar.Delete(c.Name, s.cookieConfig)
	}
	return nil
}

func (s *StatelessStore) storeInCookie(jar *cookies.Jar, payload any, cookieName string, maxAge int64) error {
	jwe, err := cookies.Encrypt(payload, s.secret)
	if err != nil {
		return err
	}
	size := jar.Set(cookieName, jwe, s.cookieConfig, int(maxAge))
	if size >= maxCookieBytes {
		if cookieName == s.cookieName {
			log.Warn().Str("cookie", cookieName).Int("bytes", size).
				Msg("session cookie exceeds 4096 bytes and may be dropped by browsers; consider trimming custom claims or switching to a stateful session store")
		} else {
			log.Warn().Str("cookie", cookieName).Int("bytes", size).
				Msg("federated token cookie exceeds 4096 bytes and may be dropped by browsers; consider a stateful session store")
		}
	}
	return nil
}

func (s *StatelessStore) federatedCookies(jar *cookies.Jar) []cookies.Cookie {
	var matched []cookies.Cookie
	for _, c := range jar.GetAll() {
		if strings.HasPrefix(c.Name, FederatedCookiePrefix) {
			matched = append(matched, c)
		}
	}
	return matched
}
