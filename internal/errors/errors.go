// Package errors defines the coded error taxonomy shared across the auth
// client. Every domain failure carries a stable machine-readable code and a
// human message; provider-originated failures additionally carry the upstream
// OAuth2 error as their cause.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error code.
type Code string

const (
	CodeDiscoveryError         Code = "discovery_error"
	CodeMissingState           Code = "missing_state"
	CodeInvalidState           Code = "invalid_state"
	CodeAuthorizationError     Code = "authorization_error"
	CodeAuthorizationCodeGrant Code = "authorization_code_grant_error"
	CodeBackchannelLogout      Code = "backchannel_logout_error"
	CodeMissingSession         Code = "missing_session"
	CodeMissingRefreshToken    Code = "missing_refresh_token"
	CodeFailedToRefreshToken   Code = "failed_to_refresh_token"
	CodeFailedToExchangeToken  Code = "failed_to_exchange_refresh_token"
)

// Error is the single error type used for all domain failures.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two Errors by code, so callers can compare against a sentinel
// with errors.Is regardless of message text.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// New builds a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error wrapping an upstream cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from an error chain, or "" if no coded error is
// present.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// OAuth2Error is an error reported by the authorization server, either via
// the redirect callback's error/error_description query parameters or in a
// token endpoint response body. Both fields may contain reflected user input:
// never render them without escaping.
type OAuth2Error struct {
	OAuthCode   string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuth2Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization server error %q: %s", e.OAuthCode, e.Description)
	}
	return fmt.Sprintf("authorization server error %q", e.OAuthCode)
}
