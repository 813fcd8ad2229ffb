package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers understood by NewDB / NewPool
const (
	DriverGorm = "gorm"
	DriverPgx  = "pgx"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port            string
		Env             string
		Version         string
		ShutdownTimeout time.Duration
	}

	Database struct {
		Driver      string
		Host        string
		Port        string
		User        string
		Password    string
		Name        string
		SSLMode     string
		MaxConns    int
		Timeout     time.Duration
		AutoMigrate bool
	}

	// Auth configures verification of the identity provider's session tokens
	Auth struct {
		JWTSecret      string
		JWTPublicKey   string
		Issuer         string
		SessionCookie  string
		AllowAnonymous bool
	}

	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	Logging struct {
		Level  string
		Format string
	}

	OpenAPI struct {
		SchemaPath string
		Validate   bool
	}

	Observability struct {
		ServiceName string
		Tracing     bool
	}

	// Vault is optional; when disabled secrets come from the environment
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		Mount       string
		SecretsPath string
		Timeout     time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New returns the process-wide Config, loading .env and the environment on first use
func New() *Config {
	once.Do(func() {
		// A missing .env is normal outside local development
		_ = godotenv.Load()
		instance = Load()
	})
	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load builds a Config from the current environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Version = getEnvString("APP_VERSION", "dev")
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.Database.Driver = strings.ToLower(getEnvString("DB_DRIVER", DriverGorm))
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "companions")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)
	cfg.Database.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", true)

	cfg.Auth.JWTSecret = getEnvString("AUTH_JWT_SECRET", "")
	cfg.Auth.JWTPublicKey = getEnvString("AUTH_JWT_PUBLIC_KEY", "")
	cfg.Auth.Issuer = getEnvString("AUTH_ISSUER", "")
	cfg.Auth.SessionCookie = getEnvString("AUTH_SESSION_COOKIE", "__session")
	cfg.Auth.AllowAnonymous = getEnvBool("AUTH_ALLOW_ANONYMOUS", false)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")
	cfg.OpenAPI.Validate = getEnvBool("OPENAPI_VALIDATE", true)

	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "companion-saas")
	cfg.Observability.Tracing = getEnvBool("OTEL_TRACING", false)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "companion-saas")
	cfg.Vault.Timeout = getEnvDuration("VAULT_TIMEOUT", 10*time.Second)

	return cfg
}

// Validate reports configuration that would make the server unusable
func (c *Config) Validate() error {
	if c.Database.Driver != DriverGorm && c.Database.Driver != DriverPgx {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWTPublicKey == "" {
		return fmt.Errorf("one of AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY is required")
	}
	if c.Security.RateLimit <= 0 || c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// DSN returns the PostgreSQL connection string in key=value form, accepted by
// both the gorm driver and pgxpool
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SecretSource resolves named secrets, see pkg/secrets
type SecretSource interface {
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// ApplySecrets overrides credentials with values held by the secret source.
// Values already present in the environment are used as defaults.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) {
	if src == nil {
		return
	}
	c.Database.Password = src.GetSecretWithDefault(ctx, "db_password", c.Database.Password)
	c.Auth.JWTSecret = src.GetSecretWithDefault(ctx, "auth_jwt_secret", c.Auth.JWTSecret)
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
