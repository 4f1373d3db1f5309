package authclient

import (
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Error is the coded error type returned by every authentication flow. Match
// with errors.As, or compare codes via CodeOf.
type Error = autherrors.Error

// OAuth2Error is a failure reported by the authorization server. Its fields
// may contain reflected user input; never render them without escaping.
type OAuth2Error = autherrors.OAuth2Error

// Code is a stable machine-readable error code.
type Code = autherrors.Code

const (
	CodeDiscoveryError         = autherrors.CodeDiscoveryError
	CodeMissingState           = autherrors.CodeMissingState
	CodeInvalidState           = autherrors.CodeInvalidState
	CodeAuthorizationError     = autherrors.CodeAuthorizationError
	CodeAuthorizationCodeGrant = autherrors.CodeAuthorizationCodeGrant
	CodeBackchannelLogout      = autherrors.CodeBackchannelLogout
	CodeMissingSession         = autherrors.CodeMissingSession
	CodeMissingRefreshToken    = autherrors.CodeMissingRefreshToken
	CodeFailedToRefreshToken   = autherrors.CodeFailedToRefreshToken
	CodeFailedToExchangeToken  = autherrors.CodeFailedToExchangeToken
)

// CodeOf extracts the code from an error chain, or "" when the chain carries
// no coded error.
func CodeOf(err error) Code {
	return autherrors.CodeOf(err)
}
