package authclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/cookies"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

// CallbackHandler completes the authorization-code flow: it matches the
// returned state against the saved transaction, exchanges the code with PKCE,
// verifies the ID token and nonce, builds the session and hands the response
// to the OnCallback hook. Parameters are read with FormValue so the handler
// serves both the query-string redirect and form_post response modes.
func (c *Client) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		jar := cookies.NewJar(w, r)

		state := r.FormValue("state")
		if state == "" {
			c.onCallback(w, r, autherrors.New(autherrors.CodeMissingState, "the state parameter is missing"), &CallbackContext{}, nil)
			return
		}

		// An absent transaction and one that fails to decrypt are
		// indistinguishable; both invalidate the state.
		txn, err := c.transactions.Get(jar, state)
		if err != nil {
			c.onCallback(w, r, err, &CallbackContext{}, nil)
			return
		}
		if txn == nil {
			c.onCallback(w, r, autherrors.New(autherrors.CodeInvalidState, "the state parameter is invalid"), &CallbackContext{}, nil)
			return
		}
		callbackCtx := &CallbackContext{ReturnTo: c.toSafeRedirect(txn.ReturnTo)}

		if oauthCode := r.FormValue("error"); oauthCode != "" {
			cause := &autherrors.OAuth2Error{OAuthCode: oauthCode, Description: r.FormValue("error_description")}
			c.transactions.Delete(jar, state)
			c.onCallback(w, r, autherrors.Wrap(autherrors.CodeAuthorizationError,
				"an error occurred during the authorization flow", cause), callbackCtx, nil)
			return
		}

		_, metadata, err := c.discoverer.Discover(ctx)
		if err != nil {
			c.onCallback(w, r, autherrors.Wrap(autherrors.CodeDiscoveryError,
				"discovery failed for the OpenID Connect configuration", err), callbackCtx, nil)
			return
		}

		conf := c.oauthConfig(metadata)
		exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
		token, err := conf.Exchange(exchangeCtx, r.FormValue("code"), oauth2.VerifierOption(txn.CodeVerifier))
		if err != nil {
			log.Error().Err(err).Msg("authorization code exchange failed")
			c.onCallback(w, r, autherrors.Wrap(autherrors.CodeAuthorizationCodeGrant,
				"an error occurred while trying to exchange the authorization code", err), callbackCtx, nil)
			return
		}

		session, rawIDToken, err := c.sessionFromToken(ctx, token, txn.Nonce)
		if err != nil {
			c.onCallback(w, r, err, callbackCtx, nil)
			return
		}

		if c.beforeSessionSaved != nil {
			session, err = c.beforeSessionSaved(session, rawIDToken)
			if err != nil {
				c.onCallback(w, r, err, callbackCtx, nil)
				return
			}
		}

		if err := c.sessions.Set(ctx, jar, session, true); err != nil {
			c.onCallback(w, r, err, callbackCtx, nil)
			return
		}
		c.transactions.Delete(jar, state)

		c.onCallback(w, r, nil, callbackCtx, session)
	}
}

// sessionFromToken verifies the ID token that came back with the code
// exchange and builds the initial session from it.
func (c *Client) sessionFromToken(ctx context.Context, token *oauth2.Token, nonce string) (*sessions.SessionData, string, error) {
	provider, _, err := c.discoverer.Discover(ctx)
	if err != nil {
		return nil, "", autherrors.Wrap(autherrors.CodeDiscoveryError,
			"discovery failed for the OpenID Connect configuration", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", autherrors.New(autherrors.CodeAuthorizationCodeGrant,
			"the token response did not contain an id_token")
	}

	verifier := provider.VerifierContext(ctx, &oidc.Config{ClientID: c.clientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", autherrors.Wrap(autherrors.CodeAuthorizationCodeGrant,
			"the id_token could not be verified", err)
	}
	if idToken.Nonce != nonce {
		return nil, "", autherrors.New(autherrors.CodeAuthorizationCodeGrant,
			"the id_token nonce does not match the login transaction")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, "", autherrors.Wrap(autherrors.CodeAuthorizationCodeGrant,
			"the id_token claims could not be decoded", err)
	}

	// Prefer the provider's own session id so back-channel logout by sid can
	// find this session.
	sid, _ := claims["sid"].(string)
	if sid == "" {
		sid = uuid.NewString()
	}

	tokenSet := sessions.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    tokenExpiry(token),
	}
	if scope, ok := token.Extra("scope").(string); ok {
		tokenSet.Scope = scope
	}

	session := &sessions.SessionData{
		User:     sessions.FilterClaims(claims),
		TokenSet: tokenSet,
		Internal: sessions.Internal{SID: sid, CreatedAt: NowTimeFunc().Unix()},
	}
	return session, rawIDToken, nil
}

// defaultOnCallback redirects home on success and reports only the stable
// error code on failure. Provider-supplied error text is attacker
// controllable, so it never reaches the response body.
func (c *Client) defaultOnCallback(w http.ResponseWriter, r *http.Request, err error, callbackCtx *CallbackContext, _ *sessions.SessionData) {
	if err == nil {
		http.Redirect(w, r, callbackCtx.ReturnTo, http.StatusFound)
		return
	}

	log.Error().Err(err).Msg("authentication callback failed")
	code := autherrors.CodeOf(err)
	if code == "" {
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch code {
	case autherrors.CodeMissingState, autherrors.CodeInvalidState, autherrors.CodeAuthorizationError:
		status = http.StatusBadRequest
	}
	http.Error(w, fmt.Sprintf("authentication failed: %s", code), status)
}
