package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Auth       AuthConfig
	Protection ProtectionConfig
	Redis      RedisConfig
	Delivery   DeliveryConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type ServerConfig struct {
	Port           string
	Environment    string
	TrustedProxies []string
	// EchoTokens returns issued tokens and codes in API responses.
	// Development only; delivery channels are authoritative elsewhere.
	EchoTokens bool
}

type AuthConfig struct {
	JWTSecret    string
	JWTExpiry    time.Duration
	SessionToken time.Duration
	ResetToken   time.Duration
	LoginCodeTTL time.Duration
	ChallengeTTL time.Duration
	BcryptCost   int
}

// ProtectionConfig carries the account-protection thresholds. The zero
// value is never used; Load fills in defaults matching the published
// policy (3 strikes, 15 minute lock, sliding 15 minute guard window).
type ProtectionConfig struct {
	LockoutThreshold       int
	LockoutDuration        time.Duration
	MaxAttemptsPerOrigin   int
	MaxAttemptsPerIdentity int
	AttemptWindow          time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DeliveryConfig struct {
	// Mode selects the outbound channel implementation: "ses", "twilio"
	// or "console" for local development.
	Mode string

	SESRegion string
	SESSender string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "sentinel"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			TrustedProxies: getEnvSlice("TRUSTED_PROXIES", nil),
			EchoTokens:     getEnvBool("ECHO_TOKENS", false),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			JWTExpiry:    getEnvDuration("JWT_EXPIRY", 24*time.Hour),
			SessionToken: getEnvDuration("SESSION_TOKEN_TTL", 15*time.Minute),
			ResetToken:   getEnvDuration("RESET_TOKEN_TTL", 60*time.Minute),
			LoginCodeTTL: getEnvDuration("LOGIN_CODE_TTL", 5*time.Minute),
			ChallengeTTL: getEnvDuration("CHALLENGE_TTL", 5*time.Minute),
			BcryptCost:   getEnvInt("BCRYPT_COST", 12),
		},
		Protection: ProtectionConfig{
			LockoutThreshold:       getEnvInt("LOCKOUT_THRESHOLD", 3),
			LockoutDuration:        getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
			MaxAttemptsPerOrigin:   getEnvInt("MAX_ATTEMPTS_PER_ORIGIN", 10),
			MaxAttemptsPerIdentity: getEnvInt("MAX_ATTEMPTS_PER_IDENTITY", 5),
			AttemptWindow:          getEnvDuration("ATTEMPT_WINDOW", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Delivery: DeliveryConfig{
			Mode:             getEnv("DELIVERY_MODE", "console"),
			SESRegion:        getEnv("SES_REGION", "us-east-1"),
			SESSender:        getEnv("SES_SENDER", ""),
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:       getEnv("TWILIO_FROM", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Database.Password == "" && c.Server.Environment == "production" {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if c.Server.EchoTokens && c.Server.Environment == "production" {
		return fmt.Errorf("ECHO_TOKENS must not be enabled in production")
	}
	if c.Protection.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}
	if c.Delivery.Mode != "console" && c.Delivery.Mode != "ses" && c.Delivery.Mode != "twilio" {
		return fmt.Errorf("DELIVERY_MODE must be one of: console, ses, twilio")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
