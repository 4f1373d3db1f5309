package authclient

import (
	"context"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

// backchannelLogoutEvent is the member the logout token's events claim must
// carry (OpenID Connect Back-Channel Logout 1.0, section 2.4).
const backchannelLogoutEvent = "http://schemas.openid.net/event/backchannel-logout"

// logoutTokenClaims are the claims checked beyond signature and issuer
// verification.
type logoutTokenClaims struct {
	Sub    string         `json:"sub"`
	SID    string         `json:"sid"`
	Nonce  string         `json:"nonce"`
	Events map[string]any `json:"events"`
}

// BackChannelLogoutHandler terminates sessions on a provider-initiated
// logout. The provider POSTs a signed logout token; matching sessions are
// removed from the external data store without any browser involvement, which
// is why the handler requires the stateful strategy.
func (c *Client) BackChannelLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if c.dataStore == nil {
			writeErrorJSON(w, http.StatusNotFound, autherrors.CodeBackchannelLogout,
				"back-channel logout requires a stateful session store")
			return
		}

		if err := r.ParseForm(); err != nil {
			writeErrorJSON(w, http.StatusBadRequest, autherrors.CodeBackchannelLogout, "the request body could not be parsed")
			return
		}
		logoutToken := r.PostFormValue("logout_token")
		if logoutToken == "" {
			writeErrorJSON(w, http.StatusBadRequest, autherrors.CodeBackchannelLogout, "the logout_token parameter is missing")
			return
		}

		claims, err := c.verifyLogoutToken(ctx, logoutToken)
		if err != nil {
			log.Warn().Err(err).Msg("rejected a back-channel logout token")
			writeErrorJSON(w, http.StatusBadRequest, autherrors.CodeBackchannelLogout, "the logout token is invalid")
			return
		}

		if err := c.dataStore.DeleteByLogoutToken(ctx, sessions.LogoutClaims{Sub: claims.Sub, SID: claims.SID}); err != nil {
			log.Error().Err(err).Msg("failed to delete sessions for a back-channel logout")
			writeErrorJSON(w, http.StatusInternalServerError, autherrors.CodeBackchannelLogout, "failed to delete the matching sessions")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// verifyLogoutToken checks the token's signature, issuer and audience via the
// discovered JWKS, then applies the logout-token profile: a
// backchannel-logout events member, no nonce, and at least one of sub or sid.
func (c *Client) verifyLogoutToken(ctx context.Context, rawToken string) (*logoutTokenClaims, error) {
	provider, _, err := c.discoverer.Discover(ctx)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.CodeDiscoveryError,
			"discovery failed for the OpenID Connect configuration", err)
	}

	verifier := provider.VerifierContext(ctx, &oidc.Config{ClientID: c.clientID})
	token, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.CodeBackchannelLogout,
			"the logout token failed verification", err)
	}

	claims := new(logoutTokenClaims)
	if err := token.Claims(claims); err != nil {
		return nil, autherrors.Wrap(autherrors.CodeBackchannelLogout,
			"the logout token claims could not be decoded", err)
	}
	if _, ok := claims.Events[backchannelLogoutEvent]; !ok {
		return nil, autherrors.New(autherrors.CodeBackchannelLogout,
			"the logout token is missing the back-channel logout event")
	}
	if claims.Nonce != "" {
		return nil, autherrors.New(autherrors.CodeBackchannelLogout,
			"the logout token must not contain a nonce")
	}
	if claims.Sub == "" && claims.SID == "" {
		return nil, autherrors.New(autherrors.CodeBackchannelLogout,
			"the logout token must contain a sub or a sid claim")
	}
	return claims, nil
}
