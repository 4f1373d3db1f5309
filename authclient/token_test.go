package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/jrsteele09/go-auth-client/sessions"
)

// seedSession writes a session into a response recorder so its cookies can be
// replayed on subsequent requests.
func seedSession(t *testing.T, session *sessions.SessionData) *httptest.ResponseRecorder {
	t.Helper()
	store, err := sessions.NewStatelessStore(sessions.Options{Secret: testCookieSecret})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	jar := cookies.NewJar(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, store.Set(context.Background(), jar, session, true))
	return recorder
}

func testSession(tokenSet sessions.TokenSet) *sessions.SessionData {
	return &sessions.SessionData{
		User:     map[string]any{"sub": "user-1"},
		TokenSet: tokenSet,
		Internal: sessions.Internal{SID: "sid-1", CreatedAt: time.Now().Unix()},
	}
}

func requestWithSession(t *testing.T, target string, session *sessions.SessionData) *http.Request {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, target, nil)
	copyCookies(seedSession(t, session), request)
	return request
}

func decodeTokenResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestAccessTokenReturnsUnexpiredTokenWithoutRefreshing(t *testing.T) {
	idp := newFakeIDP(t)
	client := newTestClient(t, idp, clientOptions{})

	session := testSession(sessions.TokenSet{
		AccessToken:  "at-fresh",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	})

	recorder := httptest.NewRecorder()
	client.AccessTokenHandler()(recorder, requestWithSession(t, "/auth/access-token", session))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "at-fresh", decodeTokenResponse(t, recorder)["token"])
	require.EqualValues(t, 0, idp.tokenRequests.Load(), "an unexpired token must not trigger a refresh")
}

func TestAccessTokenRefreshesExpiredToken(t *testing.T) {
	idp := newFakeIDP(t)
	client := newTestClient(t, idp, clientOptions{})

	idp.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		require.Equal(t, "rt-1", r.PostFormValue("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-refreshed",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}

	session := testSession(sessions.TokenSet{
		AccessToken:  "at-stale",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	})

	recorder := httptest.NewRecorder()
	client.AccessTokenHandler()(recorder, requestWithSession(t, "/auth/access-token", session))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "at-refreshed", decodeTokenResponse(t, recorder)["token"])
	require.EqualValues(t, 1, idp.tokenRequests.Load())

	// The refreshed token set must be written back to the session cookie.
	var wroteSession bool
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == sessions.DefaultCookieName && cookie.MaxAge > 0 {
			wroteSession = true
		}
	}
	require.True(t, wroteSession)
}

func TestAccessTokenRefreshWithoutExpiresIn(t *testing.T) {
	idp := newFakeIDP(t)
	client := newTestClient(t, idp, clientOptions{})

	idp.tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-refreshed",
			"token_type":   "Bearer",
		})
	}

	session := testSession(sessions.TokenSet{
		AccessToken:  "at-stale",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	})

	firstRecorder := httptest.NewRecorder()
	client.AccessTokenHandler()(firstRecorder, requestWithSession(t, "/auth/access-token", session))

	require.Equal(t, http.StatusOK, firstRecorder.Code)
	body := decodeTokenResponse(t, firstRecorder)
	require.Equal(t, "at-refreshed", body["token"])
	require.InDelta(t, time.Now().Add(time.Hour).Unix(), body["expiresAt"], 5,
		"a response without expires_in must assume a sane lifetime, not the zero time")
	require.EqualValues(t, 1, idp.tokenRequests.Load())

	// The assumed lifetime must make the stored token valid, so replaying the
	// refreshed cookies does not refresh again.
	secondRequest := httptest.NewRequest(http.MethodGet, "/auth/access-token", nil)
	copyCookies(firstRecorder, secondRequest)
	secondRecorder := httptest.NewRecorder()
	client.AccessTokenHandler()(secondRecorder, secondRequest)

	require.Equal(t, http.StatusOK, secondRecorder.Code)
	require.EqualValues(t, 1, idp.tokenRequests.Load())
}

func TestAccessTokenExpiredWithoutRefreshToken(t *testing.T) {
	idp := newFakeIDP(t)
	client := newTestClient(t, idp, clientOptions{})

	session := testSession(sessions.TokenSet{
		AccessToken: "at-stale",
		ExpiresAt:   time.Now().Add(-time.Minute).Unix(),
	})

	recorder := httptest.NewRecorder()
	client.AccessTokenHandler()(recorder, requestWithSession(t, "/auth/access-token", session))

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Contains(t, recorder.Body.String(), "missing_refresh_token")
	require.EqualValues(t, 0, idp.tokenRequests.Load())
}

func TestAccessTokenWithoutSession(t *testing.T) {
	idp := newFakeIDP(t)
	client := newTestClient(t, idp, clientOptions{})

	recorder := httptest.NewRecorder()
	client.AccessTokenHandler()(recorder, httptest.NewRequest(http.MethodGet, "/auth/access-token", nil))

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Contains(t, recorder.Body.String(), "missing_session")
}

func TestConnectionTokenExchangesAndCaches(t *testing.T) {
	idp := newFakeIDP(t)
	client := newTestClient(t, idp, clientOptions{})

	idp.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "google-oauth2", r.PostFormValue("connection"))
		require.Equal(t, "rt-1", r.PostFormValue("subject_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "federated-at",
			"expires_in":   3600,
			"scope":        "email",
		})
	}

	session := testSession(sessions.TokenSet{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	})

	firstRecorder := httptest.NewRecorder()
	client.ConnectionTokenHandler()(firstRecorder, requestWithSession(t, "/auth/connection-token?connection=google-oauth2", session))

	require.Equal(t, http.StatusOK, firstRecorder.Code)
	require.Equal(t, "federated-at", decodeTokenResponse(t, firstRecorder)["token"])
	require.EqualValues(t, 1, idp.tokenRequests.Load())

	// Replaying the post-exchange cookies serves the cached federated token.
	secondRequest := httptest.NewRequest(http.MethodGet, "/auth/connection-token?connection=google-oauth2", nil)
	copyCookies(firstRecorder, secondRequest)
	secondRecorder := httptest.NewRecorder()
	client.ConnectionTokenHandler()(secondRecorder, secondRequest)

	require.Equal(t, http.StatusOK, secondRecorder.Code)
	require.Equal(t, "federated-at", decodeTokenResponse(t, secondRecorder)["token"])
	require.EqualValues(t, 1, idp.tokenRequests.Load(), "an unexpired federated token must be served from the session")
}

func TestConnectionTokenRequiresConnectionParameter(t *testing.T) {
	idp := newFakeIDP(t)
	client := newTestClient(t, idp, clientOptions{})

	recorder := httptest.NewRecorder()
	client.ConnectionTokenHandler()(recorder, httptest.NewRequest(http.MethodGet, "/auth/connection-token", nil))

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := authclient.New(authclient.Options{})
	require.Error(t, err)
}
