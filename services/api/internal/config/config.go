package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string   `yaml:"port"`
	LogLevel                   string   `yaml:"logLevel"`
	DatabaseURL                string   `yaml:"databaseURL"`
	SupabaseURL                string   `yaml:"supabaseURL"`
	SupabaseAnonKey            string   `yaml:"supabaseAnonKey"`
	SupabaseJWKSURL            string   `yaml:"supabaseJwksURL"`
	JWTIssuer                  string   `yaml:"jwtIssuer"`
	JWTAudience                string   `yaml:"jwtAudience"`
	JWTLeeway                  string   `yaml:"jwtLeeway"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	IdentityCacheTTLSeconds    int      `yaml:"identityCacheTtlSeconds"`
	MutationRateLimitPerMinute int      `yaml:"mutationRateLimitPerMinute"`
	FrontendOrigins            []string `yaml:"frontendOrigins"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.SupabaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		cfg.SupabaseAnonKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("SUPABASE_JWKS_URL"); v != "" {
		cfg.SupabaseJWKSURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("IDENTITY_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.IdentityCacheTTLSeconds = n
		}
	}
	if v := os.Getenv("MUTATION_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.MutationRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("FRONTEND_ORIGINS"); v != "" {
		cfg.FrontendOrigins = splitCSV(v)
	}
	if v := os.Getenv("API_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.SupabaseURL) == "" {
		return errors.New("config: supabaseURL is required (set in config.yaml or SUPABASE_URL)")
	}
	if strings.TrimSpace(cfg.SupabaseAnonKey) == "" {
		return errors.New("config: supabaseAnonKey is required (set in config.yaml or SUPABASE_ANON_KEY)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for rate limiting and the identity cache")
	}
	if cfg.MutationRateLimitPerMinute < 0 {
		return errors.New("config: mutationRateLimitPerMinute must be >= 0")
	}
	if cfg.IdentityCacheTTLSeconds < 0 {
		return errors.New("config: identityCacheTtlSeconds must be >= 0")
	}
	return nil
}

// JWKSURL returns the configured JWKS endpoint, defaulting to the identity
// platform's well-known location under supabaseURL.
func (c FileConfig) JWKSURL() string {
	if strings.TrimSpace(c.SupabaseJWKSURL) != "" {
		return strings.TrimSpace(c.SupabaseJWKSURL)
	}
	return strings.TrimRight(strings.TrimSpace(c.SupabaseURL), "/") + "/auth/v1/.well-known/jwks.json"
}

// Issuer returns the configured token issuer, defaulting to the identity
// platform's auth endpoint under supabaseURL.
func (c FileConfig) Issuer() string {
	if strings.TrimSpace(c.JWTIssuer) != "" {
		return strings.TrimSpace(c.JWTIssuer)
	}
	return strings.TrimRight(strings.TrimSpace(c.SupabaseURL), "/") + "/auth/v1"
}

// ParseJWTLeeway parses the optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
