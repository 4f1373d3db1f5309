// Package discovery performs OpenID Connect discovery once per process
// lifetime and memoizes the result. Discovery metadata is treated as static
// for the life of the process; there is no TTL or re-fetch.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
)

// DefaultHTTPTimeout bounds the discovery and token endpoint round-trips.
const DefaultHTTPTimeout = 5 * time.Second

// ErrDiscovery wraps every discovery failure; callers map it to their own
// error surface rather than inspecting causes.
var ErrDiscovery = errors.New("discovery failed for the OpenID Connect configuration")

// Metadata is the subset of the authorization server metadata the client
// needs beyond what the oidc.Provider endpoint carries.
type Metadata struct {
	Issuer                             string `json:"issuer"`
	AuthorizationEndpoint              string `json:"authorization_endpoint"`
	TokenEndpoint                      string `json:"token_endpoint"`
	JWKSURI                            string `json:"jwks_uri"`
	EndSessionEndpoint                 string `json:"end_session_endpoint,omitempty"`
	PushedAuthorizationRequestEndpoint string `json:"pushed_authorization_request_endpoint,omitempty"`
}

// Discoverer owns the process-lifetime discovery cache for one issuer.
// Construct it once at startup and share the instance across request
// handlers.
type Discoverer struct {
	issuer     string
	httpClient *http.Client

	mu       sync.Mutex
	provider *oidc.Provider
	metadata *Metadata
}

// New creates a Discoverer for the issuer. A nil httpClient falls back to a
// client with the default 5 s timeout.
func New(issuer string, httpClient *http.Client) *Discoverer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Discoverer{issuer: issuer, httpClient: httpClient}
}

// Issuer returns the configured issuer URL.
func (d *Discoverer) Issuer() string {
	return d.issuer
}

// Discover returns the memoized provider and metadata, performing the
// discovery request on first use. Failures are logged with the configured
// issuer value to aid misconfiguration debugging and wrapped in ErrDiscovery.
func (d *Discoverer) Discover(ctx context.Context) (*oidc.Provider, *Metadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.provider != nil {
		return d.provider, d.metadata, nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, d.httpClient), d.issuer)
	if err != nil {
		log.Error().Err(err).Str("issuer", d.issuer).
			Msg("OIDC discovery request failed; check that the issuer URL is correctly configured")
		return nil, nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	var metadata Metadata
	if err := provider.Claims(&metadata); err != nil {
		log.Error().Err(err).Str("issuer", d.issuer).
			Msg("failed to decode OIDC discovery metadata")
		return nil, nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	d.provider = provider
	d.metadata = &metadata
	return d.provider, d.metadata, nil
}
