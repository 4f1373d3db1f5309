package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func withFixedNow(t *testing.T, now time.Time) {
	t.Helper()
	NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { NowTimeFunc = time.Now })
}

func TestCalculateMaxAgeRollingDisabled(t *testing.T) {
	cfg, err := newStoreConfig(Options{
		Secret:           "secret",
		DisableRolling:   true,
		AbsoluteDuration: 3600,
	})
	require.NoError(t, err)

	withFixedNow(t, time.Unix(1_000_000, 0))
	require.EqualValues(t, 3600, cfg.calculateMaxAge(999_000))
	require.EqualValues(t, 3600, cfg.calculateMaxAge(0), "absolute duration applies regardless of createdAt")
}

func TestCalculateMaxAgeRolling(t *testing.T) {
	cfg, err := newStoreConfig(Options{
		Secret:             "secret",
		AbsoluteDuration:   3 * 24 * 3600,
		InactivityDuration: 24 * 3600,
	})
	require.NoError(t, err)

	createdAt := int64(1_000_000)

	// Fresh session: the inactivity window is the binding cap.
	withFixedNow(t, time.Unix(createdAt, 0))
	require.EqualValues(t, 24*3600, cfg.calculateMaxAge(createdAt))

	// Near the absolute cap the remaining absolute lifetime binds instead.
	withFixedNow(t, time.Unix(createdAt+3*24*3600-600, 0))
	require.EqualValues(t, 600, cfg.calculateMaxAge(createdAt))

	// At and beyond the absolute cap the max age is floored at zero.
	withFixedNow(t, time.Unix(createdAt+3*24*3600, 0))
	require.EqualValues(t, 0, cfg.calculateMaxAge(createdAt))
	withFixedNow(t, time.Unix(createdAt+30*24*3600, 0))
	require.EqualValues(t, 0, cfg.calculateMaxAge(createdAt))
}

func TestCalculateMaxAgeMonotonicallyNonIncreasing(t *testing.T) {
	cfg, err := newStoreConfig(Options{Secret: "secret"})
	require.NoError(t, err)

	createdAt := int64(1_000_000)
	previous := int64(1 << 62)
	for offset := int64(0); offset <= 4*24*3600; offset += 6 * 3600 {
		withFixedNow(t, time.Unix(createdAt+offset, 0))
		maxAge := cfg.calculateMaxAge(createdAt)
		require.LessOrEqual(t, maxAge, previous, "offset %d", offset)
		require.LessOrEqual(t, maxAge, cfg.inactivityDuration)
		previous = maxAge
	}
}

func TestNewStoreConfigDefaults(t *testing.T) {
	cfg, err := newStoreConfig(Options{Secret: "secret"})
	require.NoError(t, err)
	require.True(t, cfg.rolling)
	require.EqualValues(t, 3*24*3600, cfg.absoluteDuration)
	require.EqualValues(t, 24*3600, cfg.inactivityDuration)
	require.Equal(t, DefaultCookieName, cfg.cookieName)

	_, err = newStoreConfig(Options{})
	require.Error(t, err, "secret is required")
}
