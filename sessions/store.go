package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/go-auth-client/cookies"
)

// DefaultCookieName names the primary session cookie.
const DefaultCookieName = "__session"

const (
	defaultAbsoluteDuration   = 60 * 60 * 24 * 3 // 3 days in seconds
	defaultInactivityDuration = 60 * 60 * 24     // 1 day in seconds
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store is the persistence contract shared by both session strategies.
type Store interface {
	// Get returns the session for the request, or nil when no session cookie
	// is present or it cannot be decrypted.
	Get(ctx context.Context, jar *cookies.Jar) (*SessionData, error)

	// Set persists the session. isNew marks a fresh login so the stateful
	// strategy can rotate its session id.
	Set(ctx context.Context, jar *cookies.Jar, session *SessionData, isNew bool) error

	// Delete removes the session and all of its cookies. An absent session is
	// a no-op.
	Delete(ctx context.Context, jar *cookies.Jar) error
}

// Options configures either session store strategy.
type Options struct {
	Secret string

	// Rolling enables the inactivity window that resets on every write. It is
	// on unless explicitly disabled.
	DisableRolling bool

	// AbsoluteDuration caps the session lifetime from creation, in seconds.
	// Defaults to 3 days.
	AbsoluteDuration int64

	// InactivityDuration is the rolling window, in seconds. Defaults to 1 day.
	InactivityDuration int64

	CookieName   string
	CookieConfig cookies.Config
}

// storeConfig carries the fields and expiry arithmetic common to both
// strategies.
type storeConfig struct {
	secret             string
	rolling            bool
	absoluteDuration   int64
	inactivityDuration int64
	cookieName         string
	cookieConfig       cookies.Config
}

func newStoreConfig(opts Options) (storeConfig, error) {
	if opts.Secret == "" {
		return storeConfig{}, errors.New("[sessions] secret is required")
	}
	cfg := storeConfig{
		secret:             opts.Secret,
		rolling:            !opts.DisableRolling,
		absoluteDuration:   opts.AbsoluteDuration,
		inactivityDuration: opts.InactivityDuration,
		cookieName:         opts.CookieName,
		cookieConfig:       opts.CookieConfig,
	}
	if cfg.absoluteDuration == 0 {
		cfg.absoluteDuration = defaultAbsoluteDuration
	}
	if cfg.inactivityDuration == 0 {
		cfg.inactivityDuration = defaultInactivityDuration
	}
	if cfg.cookieName == "" {
		cfg.cookieName = DefaultCookieName
	}
	if cfg.cookieConfig == (cookies.Config{}) {
		cfg.cookieConfig = cookies.DefaultConfig()
	}
	return cfg, nil
}

// epoch returns the time since unix epoch in seconds.
func epoch() int64 {
	return NowTimeFunc().Unix()
}

// calculateMaxAge enforces two independent caps: an inactivity window that
// resets on every write, and an absolute lifetime from creation that never
// extends. With rolling disabled only the absolute duration applies.
func (c storeConfig) calculateMaxAge(createdAt int64) int64 {
	if !c.rolling {
		return c.absoluteDuration
	}
	now := epoch()
	expiresAt := min(now+c.inactivityDuration, createdAt+c.absoluteDuration)
	maxAge := expiresAt - now
	if maxAge < 0 {
		return 0
	}
	return maxAge
}
