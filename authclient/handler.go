package authclient

import "net/http"

// Handler returns a mux serving every configured route, for applications that
// mount the client as a single handler instead of wiring the per-flow
// handlers individually. Paths outside the configured routes 404.
func (c *Client) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+c.routes.Login, c.LoginHandler())
	mux.HandleFunc("GET "+c.routes.Logout, c.LogoutHandler())
	mux.HandleFunc("GET "+c.routes.Callback, c.CallbackHandler())
	mux.HandleFunc("POST "+c.routes.Callback, c.CallbackHandler()) // form_post response mode
	mux.HandleFunc("GET "+c.routes.Profile, c.ProfileHandler())
	mux.HandleFunc("GET "+c.routes.AccessToken, c.AccessTokenHandler())
	mux.HandleFunc("GET "+c.routes.ConnectionToken, c.ConnectionTokenHandler())
	mux.HandleFunc("POST "+c.routes.BackChannelLogout, c.BackChannelLogoutHandler())
	return mux
}
