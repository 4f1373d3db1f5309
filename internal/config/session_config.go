package config

import "strconv"

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionRolling() bool
	GetSessionAbsoluteDuration() int64
	GetSessionInactivityDuration() int64
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionSecret returns the secret the cookie encryption key is derived
// from. It has no default; the server refuses to start without one.
func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Session) GetSessionRolling() bool {
	return GetEnv("SESSION_ROLLING", "true") != "false"
}

// GetSessionAbsoluteDuration returns the session lifetime cap in seconds.
// Zero selects the store default.
func (Session) GetSessionAbsoluteDuration() int64 {
	return envSeconds("SESSION_ABSOLUTE_DURATION")
}

// GetSessionInactivityDuration returns the rolling window in seconds. Zero
// selects the store default.
func (Session) GetSessionInactivityDuration() int64 {
	return envSeconds("SESSION_INACTIVITY_DURATION")
}

func envSeconds(envVar string) int64 {
	value, err := strconv.ParseInt(GetEnv(envVar, "0"), 10, 64)
	if err != nil {
		return 0
	}
	return value
}
