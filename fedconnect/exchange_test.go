package fedconnect_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/discovery"
	"github.com/jrsteele09/go-auth-client/fedconnect"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

const (
	testClientID     = "test-client-1"
	testClientSecret = "test-secret-1"
)

type fakeIssuer struct {
	server        *httptest.Server
	tokenRequests atomic.Int64
	tokenHandler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	f := &fakeIssuer{}
	mux := http.NewServeMux()
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 f.server.URL,
			"authorization_endpoint": f.server.URL + "/authorize",
			"token_endpoint":         f.server.URL + "/oauth/token",
			"jwks_uri":               f.server.URL + "/.well-known/jwks.json",
		})
	})
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenRequests.Add(1)
		f.tokenHandler(w, r)
	})
	return f
}

func newExchanger(f *fakeIssuer) *fedconnect.Exchanger {
	return fedconnect.NewExchanger(testClientID, testClientSecret, discovery.New(f.server.URL, nil), nil)
}

func TestExchangeSuccess(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, fedconnect.GrantTypeFederatedConnectionAccessToken, r.PostFormValue("grant_type"))
		require.Equal(t, fedconnect.SubjectTokenTypeRefreshToken, r.PostFormValue("subject_token_type"))
		require.Equal(t, fedconnect.RequestedTokenTypeFederatedConnectionAccessToken, r.PostFormValue("requested_token_type"))
		require.Equal(t, "rt-1", r.PostFormValue("subject_token"))
		require.Equal(t, "google-oauth2", r.PostFormValue("connection"))
		require.Equal(t, testClientID, r.PostFormValue("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "federated-at",
			"expires_in":   3600,
			"scope":        "openid email",
		})
	}

	tokenSet := sessions.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: 100}
	got, err := newExchanger(issuer).Exchange(context.Background(), tokenSet, fedconnect.Options{Connection: "google-oauth2"})
	require.NoError(t, err)
	require.Equal(t, "google-oauth2", got.Connection)
	require.Equal(t, "federated-at", got.AccessToken)
	require.Equal(t, "openid email", got.Scope)
	require.InDelta(t, fedconnect.NowTimeFunc().Unix()+3600, got.ExpiresAt, 2)
}

func TestExchangeMissingRefreshTokenMakesNoNetworkCall(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "should never be reached", http.StatusInternalServerError)
	}

	tokenSet := sessions.TokenSet{AccessToken: "at-1", ExpiresAt: 100}
	_, err := newExchanger(issuer).Exchange(context.Background(), tokenSet, fedconnect.Options{Connection: "google-oauth2"})
	require.Equal(t, autherrors.CodeMissingRefreshToken, autherrors.CodeOf(err))
	require.EqualValues(t, 0, issuer.tokenRequests.Load())
}

func TestExchangeUpstreamFailure(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "refresh token revoked",
		})
	}

	tokenSet := sessions.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: 100}
	_, err := newExchanger(issuer).Exchange(context.Background(), tokenSet, fedconnect.Options{Connection: "google-oauth2"})
	require.Equal(t, autherrors.CodeFailedToExchangeToken, autherrors.CodeOf(err))

	var oauthErr *autherrors.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.OAuthCode)
}

func TestAddOrUpdateTokenSetReplacesByConnection(t *testing.T) {
	session := &sessions.SessionData{}

	first := &sessions.FederatedConnectionTokenSet{Connection: "google-oauth2", AccessToken: "g-1"}
	fedconnect.AddOrUpdateTokenSet(session, first)
	require.Len(t, session.FederatedConnectionTokenSets, 1)

	other := &sessions.FederatedConnectionTokenSet{Connection: "github", AccessToken: "gh-1"}
	fedconnect.AddOrUpdateTokenSet(session, other)

	replacement := &sessions.FederatedConnectionTokenSet{Connection: "google-oauth2", AccessToken: "g-2"}
	fedconnect.AddOrUpdateTokenSet(session, replacement)

	require.Len(t, session.FederatedConnectionTokenSets, 2, "same connection must replace, not duplicate")
	require.Equal(t, "g-2", session.FederatedConnectionTokenSets[0].AccessToken, "replacement keeps the original position")
	require.Equal(t, "github", session.FederatedConnectionTokenSets[1].Connection, "unrelated connections keep their order")
}

func TestFindTokenSet(t *testing.T) {
	session := &sessions.SessionData{
		FederatedConnectionTokenSets: []*sessions.FederatedConnectionTokenSet{
			{Connection: "google-oauth2", AccessToken: "g-1"},
		},
	}
	require.NotNil(t, fedconnect.FindTokenSet(session, "google-oauth2"))
	require.Nil(t, fedconnect.FindTokenSet(session, "github"))
}
