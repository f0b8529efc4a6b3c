package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Protection.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Protection.LockoutDuration)
	assert.Equal(t, 10, cfg.Protection.MaxAttemptsPerOrigin)
	assert.Equal(t, 5, cfg.Protection.MaxAttemptsPerIdentity)
	assert.Equal(t, 15*time.Minute, cfg.Protection.AttemptWindow)
	assert.Equal(t, 15*time.Minute, cfg.Auth.SessionToken)
	assert.Equal(t, 60*time.Minute, cfg.Auth.ResetToken)
	assert.Equal(t, 5*time.Minute, cfg.Auth.LoginCodeTTL)
	assert.False(t, cfg.Server.EchoTokens)
	assert.Equal(t, "console", cfg.Delivery.Mode)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsEchoTokensInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ECHO_TOKENS", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownDeliveryMode(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DELIVERY_MODE", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.Server.TrustedProxies)
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     "5432",
		User:     "app",
		Password: "pw",
		Name:     "sentinel",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://app:pw@db.internal:5432/sentinel?sslmode=require", d.ConnectionString())
}
