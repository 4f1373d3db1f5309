// Package authclient drives the OpenID Connect authorization-code state
// machine: login, callback, logout, profile, access-token and
// back-channel-logout request handling, composed from the transaction store,
// the session store, the metadata discoverer and the federated connection
// exchanger.
package authclient

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/discovery"
	"github.com/jrsteele09/go-auth-client/fedconnect"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/transactions"
)

// DefaultScope is requested when no scope is configured.
const DefaultScope = "openid profile email offline_access"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Routes are the paths the client's handlers are mounted on.
type Routes struct {
	Login             string
	Logout            string
	Callback          string
	Profile           string
	AccessToken       string
	ConnectionToken   string
	BackChannelLogout string
}

// DefaultRoutes returns the standard mount points under /auth.
func DefaultRoutes() Routes {
	return Routes{
		Login:             "/auth/login",
		Logout:            "/auth/logout",
		Callback:          "/auth/callback",
		Profile:           "/auth/profile",
		AccessToken:       "/auth/access-token",
		ConnectionToken:   "/auth/connection-token",
		BackChannelLogout: "/auth/backchannel-logout",
	}
}

// BeforeSessionSavedHook runs before every session write triggered by the
// callback flow, letting the application reshape the session (for example to
// keep extra ID-token claims). It receives the raw ID token.
type BeforeSessionSavedHook func(session *sessions.SessionData, idToken string) (*sessions.SessionData, error)

// CallbackContext is passed to the OnCallback hook.
type CallbackContext struct {
	ReturnTo string
}

// OnCallbackHook customises the final response of the callback flow. err is
// nil on success; the hook owns writing the response.
type OnCallbackHook func(w http.ResponseWriter, r *http.Request, err error, ctx *CallbackContext, session *sessions.SessionData)

// Options configures a Client.
type Options struct {
	TransactionStore *transactions.Store
	SessionStore     sessions.Store

	// DataStore is the external session store, required only for
	// back-channel logout (the one flow that must reach sessions without a
	// browser-held cookie).
	DataStore sessions.DataStore

	Discoverer *discovery.Discoverer
	Exchanger  *fedconnect.Exchanger

	ClientID     string
	ClientSecret string

	// AppBaseURL anchors redirect validation and the callback redirect URI.
	AppBaseURL string

	// Scope defaults to DefaultScope.
	Scope string

	// AuthorizationParams are extra authorization request parameters
	// (audience, organization, ...).
	AuthorizationParams map[string]string

	// MaxAge, when non-zero, caps the seconds since the user last
	// authenticated at the provider.
	MaxAge int64

	// PushedAuthorizationRequests submits authorization parameters
	// server-to-server before redirecting.
	PushedAuthorizationRequests bool

	// SignInReturnToPath is the post-login landing path when the login
	// request carries no returnTo. Defaults to "/".
	SignInReturnToPath string

	BeforeSessionSaved BeforeSessionSavedHook
	OnCallback         OnCallbackHook

	Routes *Routes

	// HTTPClient is used for token endpoint and PAR calls. Defaults to a
	// client with the discovery default timeout.
	HTTPClient *http.Client
}

// Client orchestrates the authentication flows. It holds no per-request
// state; all durable state lives in the stores.
type Client struct {
	transactions *transactions.Store
	sessions     sessions.Store
	dataStore    sessions.DataStore
	discoverer   *discovery.Discoverer
	exchanger    *fedconnect.Exchanger

	clientID     string
	clientSecret string
	appBaseURL   *url.URL
	scope        string
	authParams   map[string]string
	maxAge       int64
	usePAR       bool

	signInReturnToPath string
	beforeSessionSaved BeforeSessionSavedHook
	onCallback         OnCallbackHook
	routes             Routes
	httpClient         *http.Client
}

// New validates the options and creates a Client.
func New(opts Options) (*Client, error) {
	if opts.TransactionStore == nil {
		return nil, fmt.Errorf("[authclient.New] transaction store is required")
	}
	if opts.SessionStore == nil {
		return nil, fmt.Errorf("[authclient.New] session store is required")
	}
	if opts.Discoverer == nil {
		return nil, fmt.Errorf("[authclient.New] discoverer is required")
	}
	if opts.ClientID == "" {
		return nil, fmt.Errorf("[authclient.New] client id is required")
	}
	if opts.AppBaseURL == "" {
		return nil, fmt.Errorf("[authclient.New] app base URL is required")
	}
	baseURL, err := url.Parse(opts.AppBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[authclient.New] invalid app base URL: %w", err)
	}

	c := &Client{
		transactions:       opts.TransactionStore,
		sessions:           opts.SessionStore,
		dataStore:          opts.DataStore,
		discoverer:         opts.Discoverer,
		exchanger:          opts.Exchanger,
		clientID:           opts.ClientID,
		clientSecret:       opts.ClientSecret,
		appBaseURL:         baseURL,
		scope:              opts.Scope,
		authParams:         opts.AuthorizationParams,
		maxAge:             opts.MaxAge,
		usePAR:             opts.PushedAuthorizationRequests,
		signInReturnToPath: opts.SignInReturnToPath,
		beforeSessionSaved: opts.BeforeSessionSaved,
		onCallback:         opts.OnCallback,
		routes:             DefaultRoutes(),
		httpClient:         opts.HTTPClient,
	}
	if c.scope == "" {
		c.scope = DefaultScope
	}
	if c.signInReturnToPath == "" {
		c.signInReturnToPath = "/"
	}
	if opts.Routes != nil {
		c.routes = *opts.Routes
	}
	if c.onCallback == nil {
		c.onCallback = c.defaultOnCallback
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: discovery.DefaultHTTPTimeout}
	}
	return c, nil
}

// Routes returns the configured mount points.
func (c *Client) Routes() Routes {
	return c.routes
}

// redirectURI is the absolute callback URL registered with the provider.
func (c *Client) redirectURI() string {
	return c.appBaseURL.JoinPath(c.routes.Callback).String()
}

// oauthConfig builds the oauth2 configuration from discovered metadata.
func (c *Client) oauthConfig(metadata *discovery.Metadata) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI(),
		Scopes:       strings.Fields(c.scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  metadata.AuthorizationEndpoint,
			TokenURL: metadata.TokenEndpoint,
		},
	}
}

// generateRandomString creates a random base64url string of length bytes of
// entropy.
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
