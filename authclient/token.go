package authclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/jrsteele09/go-auth-client/fedconnect"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

// defaultTokenLifetime is assumed when a token response omits expires_in.
const defaultTokenLifetime = 3600

// tokenExpiry converts the oauth2 token expiry to epoch seconds. A response
// without expires_in leaves Expiry at the zero time; assume the default
// lifetime so the token rotates on schedule instead of reading as already
// expired and refreshing on every request.
func tokenExpiry(token *oauth2.Token) int64 {
	if token.Expiry.IsZero() {
		return NowTimeFunc().Unix() + defaultTokenLifetime
	}
	return token.Expiry.Unix()
}

// tokenResponse is the JSON body returned by the token handlers.
type tokenResponse struct {
	Token     string `json:"token"`
	Scope     string `json:"scope,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
}

// AccessTokenHandler returns the session's access token, refreshing it first
// when it has expired. A refreshed token set is persisted back to the session
// before the response is written.
func (c *Client) AccessTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		jar := cookies.NewJar(w, r)

		session, err := c.sessions.Get(ctx, jar)
		if err != nil {
			http.Error(w, "failed to load the session", http.StatusInternalServerError)
			return
		}
		if session == nil {
			writeErrorJSON(w, http.StatusUnauthorized, autherrors.CodeMissingSession, "the user does not have an active session")
			return
		}

		tokenSet, refreshed, err := c.getTokenSet(ctx, session.TokenSet)
		if err != nil {
			c.writeTokenError(w, err)
			return
		}
		if refreshed {
			session.TokenSet = *tokenSet
			if err := c.sessions.Set(ctx, jar, session, false); err != nil {
				http.Error(w, "failed to persist the refreshed session", http.StatusInternalServerError)
				return
			}
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			Token:     tokenSet.AccessToken,
			Scope:     tokenSet.Scope,
			ExpiresAt: tokenSet.ExpiresAt,
		})
	}
}

// getTokenSet returns a valid token set for the session, running the refresh
// token grant when the current one has expired. An unexpired token set is
// returned untouched. Concurrent refreshes for the same session are not
// deduplicated; the last write wins and every returned token is valid.
func (c *Client) getTokenSet(ctx context.Context, tokenSet sessions.TokenSet) (*sessions.TokenSet, bool, error) {
	if !tokenSet.Expired(NowTimeFunc().Unix()) {
		return &tokenSet, false, nil
	}
	if tokenSet.RefreshToken == "" {
		return nil, false, autherrors.New(autherrors.CodeMissingRefreshToken,
			"the access token has expired and there is no refresh token; the user needs to re-authenticate")
	}

	_, metadata, err := c.discoverer.Discover(ctx)
	if err != nil {
		return nil, false, autherrors.Wrap(autherrors.CodeDiscoveryError,
			"discovery failed for the OpenID Connect configuration", err)
	}

	conf := c.oauthConfig(metadata)
	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := conf.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: tokenSet.RefreshToken}).Token()
	if err != nil {
		log.Error().Err(err).Msg("refresh token grant failed")
		return nil, false, autherrors.Wrap(autherrors.CodeFailedToRefreshToken,
			"there was an error refreshing the access token", err)
	}

	refreshed := &sessions.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        tokenSet.Scope,
		ExpiresAt:    tokenExpiry(token),
	}
	// Providers that do not rotate refresh tokens omit them from the
	// response; keep the one we have.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tokenSet.RefreshToken
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		refreshed.Scope = scope
	}
	return refreshed, true, nil
}

// ConnectionTokenHandler returns an access token for an upstream federated
// connection, exchanging the session's refresh token when no unexpired token
// for that connection is cached on the session.
func (c *Client) ConnectionTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		jar := cookies.NewJar(w, r)

		connection := r.URL.Query().Get("connection")
		if connection == "" {
			writeErrorJSON(w, http.StatusBadRequest, autherrors.CodeFailedToExchangeToken, "the connection parameter is required")
			return
		}

		session, err := c.sessions.Get(ctx, jar)
		if err != nil {
			http.Error(w, "failed to load the session", http.StatusInternalServerError)
			return
		}
		if session == nil {
			writeErrorJSON(w, http.StatusUnauthorized, autherrors.CodeMissingSession, "the user does not have an active session")
			return
		}

		tokenSet, err := c.GetFederatedConnectionAccessToken(ctx, jar, session, fedconnect.Options{
			Connection: connection,
			LoginHint:  r.URL.Query().Get("login_hint"),
		})
		if err != nil {
			c.writeTokenError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			Token:     tokenSet.AccessToken,
			Scope:     tokenSet.Scope,
			ExpiresAt: tokenSet.ExpiresAt,
		})
	}
}

// GetFederatedConnectionAccessToken returns a token for the requested
// connection, serving an unexpired cached one from the session and otherwise
// exchanging the refresh token and persisting the result.
func (c *Client) GetFederatedConnectionAccessToken(ctx context.Context, jar *cookies.Jar, session *sessions.SessionData, opts fedconnect.Options) (*sessions.FederatedConnectionTokenSet, error) {
	if cached := fedconnect.FindTokenSet(session, opts.Connection); cached != nil && cached.ExpiresAt > NowTimeFunc().Unix() {
		return cached, nil
	}

	tokenSet, err := c.exchanger.Exchange(ctx, session.TokenSet, opts)
	if err != nil {
		return nil, err
	}

	fedconnect.AddOrUpdateTokenSet(session, tokenSet)
	if err := c.sessions.Set(ctx, jar, session, false); err != nil {
		return nil, err
	}
	return tokenSet, nil
}

// writeTokenError maps coded token failures onto HTTP statuses. Only the
// stable code and our own message reach the client.
func (c *Client) writeTokenError(w http.ResponseWriter, err error) {
	code := autherrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case autherrors.CodeMissingSession, autherrors.CodeMissingRefreshToken:
		status = http.StatusUnauthorized
	case autherrors.CodeFailedToRefreshToken, autherrors.CodeFailedToExchangeToken:
		status = http.StatusBadGateway
	}

	message := "an internal error occurred"
	var coded *autherrors.Error
	if errors.As(err, &coded) {
		message = coded.Message
	}
	writeErrorJSON(w, status, code, message)
}
