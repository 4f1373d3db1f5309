package authclient

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/cookies"
)

// LogoutHandler clears the local session and redirects to the provider's
// end-session endpoint so the provider session ends too. Providers without an
// advertised end_session_endpoint get a plain redirect back to the
// application. Logout never fails on an absent session.
func (c *Client) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		jar := cookies.NewJar(w, r)

		if err := c.sessions.Delete(ctx, jar); err != nil {
			log.Error().Err(err).Msg("failed to delete the session during logout")
			http.Error(w, "failed to log out", http.StatusInternalServerError)
			return
		}

		returnTo := c.toSafeRedirect(r.URL.Query().Get("returnTo"))

		_, metadata, err := c.discoverer.Discover(ctx)
		if err != nil || metadata.EndSessionEndpoint == "" {
			// The local session is already gone; a provider logout is best
			// effort.
			http.Redirect(w, r, returnTo, http.StatusFound)
			return
		}

		params := url.Values{}
		params.Set("client_id", c.clientID)
		params.Set("post_logout_redirect_uri", returnTo)
		http.Redirect(w, r, metadata.EndSessionEndpoint+"?"+params.Encode(), http.StatusFound)
	}
}
