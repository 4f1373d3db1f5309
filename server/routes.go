package server

import (
	"encoding/json"
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /{$}", s.IndexHandler())
	s.RegisterRouteFunc("GET /healthz", s.HealthHandler())

	// Authentication flows
	authRoutes := s.auth.Routes()
	s.RegisterRouteHandler("GET "+authRoutes.Login, ChainMiddleware(s.auth.LoginHandler(), s.DefaultMiddleware()...))
	s.RegisterRouteHandler("GET "+authRoutes.Logout, ChainMiddleware(s.auth.LogoutHandler(), s.DefaultMiddleware()...))
	s.RegisterRouteHandler("GET "+authRoutes.Callback, ChainMiddleware(s.auth.CallbackHandler(), s.DefaultMiddleware()...))
	s.RegisterRouteHandler("POST "+authRoutes.Callback, ChainMiddleware(s.auth.CallbackHandler(), s.DefaultMiddleware()...)) // For form_post response mode

	// Session-backed API routes
	s.registerAPIRoute(authRoutes.Profile, s.auth.ProfileHandler())
	s.registerAPIRoute(authRoutes.AccessToken, s.auth.AccessTokenHandler())
	s.registerAPIRoute(authRoutes.ConnectionToken, s.auth.ConnectionTokenHandler())

	// Provider-initiated logout, no browser involved
	s.RegisterRouteHandler("POST "+authRoutes.BackChannelLogout, ChainMiddleware(s.auth.BackChannelLogoutHandler(), s.DefaultMiddleware()...))
}

// registerAPIRoute mounts a browser-facing JSON route. The extra OPTIONS
// registration lets the CORS middleware answer preflight requests, which a
// method-qualified mux pattern would otherwise reject with a 405.
func (s *Server) registerAPIRoute(path string, handler http.HandlerFunc) {
	s.RegisterRouteHandler("GET "+path, ChainMiddleware(handler, s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+path, ChainMiddleware(handler, s.APIMiddleware()...))
}

func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":  s.config.GetAppName(),
			"login": s.auth.Routes().Login,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
