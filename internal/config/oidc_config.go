package config

type OIDCConfig interface {
	GetIssuer() string
	GetClientID() string
	GetClientSecret() string
	GetScope() string
	GetAudience() string
	GetUsePushedAuthorization() bool
}

type OIDC struct{}

var _ OIDCConfig = OIDC{}

func (OIDC) GetIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (OIDC) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (OIDC) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

// GetScope returns the authorization request scope. Empty selects the
// client's default scope.
func (OIDC) GetScope() string {
	return GetEnv("OIDC_SCOPE", "")
}

// GetAudience returns the optional audience authorization parameter.
func (OIDC) GetAudience() string {
	return GetEnv("OIDC_AUDIENCE", "")
}

func (OIDC) GetUsePushedAuthorization() bool {
	return GetEnv("OIDC_USE_PAR", "false") == "true"
}
