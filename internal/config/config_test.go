package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, time.UTC.String(), cfg.Location.String())
	assert.Greater(t, cfg.RefreshTokenTTL, time.Duration(0))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "2")
	t.Setenv("REFRESH_TOKEN_TTL_HOURS", "3")
	t.Setenv("ACTOR_CACHE_TTL_SECONDS", "5")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.JWTExpirationHours)
	assert.Equal(t, 3*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5*time.Second, cfg.ActorCacheTTL)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TIMEZONE", "Not/AZone")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvInt_IgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
}
