package discovery_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/discovery"
)

func newFakeIssuer(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                server.URL,
			"authorization_endpoint":                server.URL + "/authorize",
			"token_endpoint":                        server.URL + "/oauth/token",
			"jwks_uri":                              server.URL + "/.well-known/jwks.json",
			"end_session_endpoint":                  server.URL + "/v2/logout",
			"pushed_authorization_request_endpoint": server.URL + "/oauth/par",
		})
	})
	return server
}

func TestDiscoverReturnsMetadata(t *testing.T) {
	var requests atomic.Int64
	issuer := newFakeIssuer(t, &requests)

	d := discovery.New(issuer.URL, nil)
	provider, metadata, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.Equal(t, issuer.URL, metadata.Issuer)
	require.Equal(t, issuer.URL+"/authorize", metadata.AuthorizationEndpoint)
	require.Equal(t, issuer.URL+"/oauth/token", metadata.TokenEndpoint)
	require.Equal(t, issuer.URL+"/v2/logout", metadata.EndSessionEndpoint)
	require.Equal(t, issuer.URL+"/oauth/par", metadata.PushedAuthorizationRequestEndpoint)
}

func TestDiscoverIsMemoized(t *testing.T) {
	var requests atomic.Int64
	issuer := newFakeIssuer(t, &requests)

	d := discovery.New(issuer.URL, nil)
	ctx := context.Background()

	_, first, err := d.Discover(ctx)
	require.NoError(t, err)
	_, second, err := d.Discover(ctx)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.EqualValues(t, 1, requests.Load(), "discovery must hit the network exactly once")
}

func TestDiscoverFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	d := discovery.New(server.URL, nil)
	_, _, err := d.Discover(context.Background())
	require.ErrorIs(t, err, discovery.ErrDiscovery)
}
