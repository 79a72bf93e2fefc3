package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	AdminEmail    string
	AdminPassword string

	DatabaseURL string

	// JWTSecret signs the access tokens issued at login/registration.
	JWTSecret string

	// JWTExpiryDays is the access token lifetime in days.
	JWTExpiryDays int

	ListenAddr string

	// TopEntries is the number of (name, count) pairs kept in the
	// top_categories / top_merchants lists of a daily stat.
	TopEntries int

	// MetadataMaxBytes is the ceiling on the serialized size of an
	// event's metadata payload. Oversized metadata is rejected, not
	// truncated, so clients can retry with a smaller payload.
	MetadataMaxBytes int

	// AllowedOrigins is the CORS origin allowlist. "*" allows any origin.
	AllowedOrigins []string

	// RateLimitPerMinute caps requests per client IP per minute.
	// Zero disables rate limiting.
	RateLimitPerMinute int
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminEmail:         getenv("APP_ADMIN_EMAIL", "admin@offerpulse.local"),
		AdminPassword:      getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:        os.Getenv("APP_DATABASE_URL"),
		JWTSecret:          getenv("APP_JWT_SECRET", "dev-secret-change-in-production"),
		JWTExpiryDays:      7,
		ListenAddr:         getenv("APP_LISTEN_ADDR", ":8080"),
		TopEntries:         10,
		MetadataMaxBytes:   8192,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 0,
	}

	if v := os.Getenv("APP_JWT_EXPIRY_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.JWTExpiryDays = days
		}
	}
	if v := os.Getenv("APP_TOP_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopEntries = n
		}
	}
	if v := os.Getenv("APP_METADATA_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MetadataMaxBytes = n
		}
	}
	if v := os.Getenv("APP_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.AllowedOrigins = origins
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RateLimitPerMinute = n
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
