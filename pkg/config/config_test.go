package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "AUTH_SESSION_COOKIE", "AUTH_ALLOW_ANONYMOUS", "ALLOWED_ORIGINS", "VAULT_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, DriverGorm, cfg.Database.Driver)
	assert.Equal(t, "__session", cfg.Auth.SessionCookie)
	assert.False(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, int64(1<<20), cfg.Security.MaxBodySize)
	assert.True(t, cfg.OpenAPI.Validate)
	assert.False(t, cfg.Vault.Enabled)
	assert.Equal(t, "secret", cfg.Vault.Mount)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "PGX")
	t.Setenv("DB_TIMEOUT", "2s")
	t.Setenv("AUTH_ALLOW_ANONYMOUS", "true")
	t.Setenv("RATE_LIMIT", "0.5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, DriverPgx, cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.Timeout)
	assert.True(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, 0.5, cfg.Security.RateLimit)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 20, cfg.Database.MaxConns)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Database.Driver = DriverGorm
		cfg.Auth.JWTSecret = "secret"
		cfg.Security.RateLimit = 1
		cfg.Security.RateLimitBurst = 1
		return cfg
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Auth.JWTSecret = ""
	assert.Error(t, cfg.Validate())
	cfg.Auth.JWTPublicKey = "-----BEGIN PUBLIC KEY-----"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Security.RateLimitBurst = 0
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "db"
	cfg.Database.Port = "5432"
	cfg.Database.User = "app"
	cfg.Database.Password = "pw"
	cfg.Database.Name = "companions"
	cfg.Database.SSLMode = "require"

	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=companions sslmode=require", cfg.DSN())
}

type mapSource map[string]string

func (m mapSource) GetSecretWithDefault(_ context.Context, key, defaultValue string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return defaultValue
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Password = "env-password"
	cfg.Auth.JWTSecret = "env-secret"

	cfg.ApplySecrets(context.Background(), mapSource{"db_password": "vault-password"})

	assert.Equal(t, "vault-password", cfg.Database.Password)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)

	cfg.ApplySecrets(context.Background(), nil)
	assert.Equal(t, "vault-password", cfg.Database.Password)
}
