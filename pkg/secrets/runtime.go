package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// RuntimeSecrets are the connection strings the API process needs. Empty
// fields were not found and keep their configured value.
type RuntimeSecrets struct {
	DatabaseURL string
	RedisURL    string
	SentryDSN   string
}

// LoadRuntimeSecrets loads the API connection strings from m. Missing secrets
// are left empty; any other backend failure is returned.
func LoadRuntimeSecrets(ctx context.Context, m Manager) (*RuntimeSecrets, error) {
	rs := &RuntimeSecrets{}

	for key, dest := range map[string]*string{
		"DATABASE_URL": &rs.DatabaseURL,
		"REDIS_URL":    &rs.RedisURL,
		"SENTRY_DSN":   &rs.SentryDSN,
	} {
		value, err := m.GetSecret(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		*dest = value
	}

	return rs, nil
}

// AutoDetectBackend determines the secrets backend from environment
func AutoDetectBackend() string {
	if getEnvBool("AWS_SECRETS_MANAGER_ENABLED") {
		return "aws-secrets-manager"
	}

	// Running in AWS (ECS, Lambda)
	if os.Getenv("AWS_REGION") != "" && os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "aws-secrets-manager"
	}

	return "env"
}

// AutoDetectConfig creates a config with auto-detected backend
func AutoDetectConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = AutoDetectBackend()
	cfg.Prefix = os.Getenv("AWS_SECRETS_PREFIX")

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}
	if ttl, err := time.ParseDuration(os.Getenv("SECRETS_CACHE_DURATION")); err == nil {
		cfg.CacheDuration = ttl
	}

	return cfg
}

func getEnvBool(key string) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && parsed
}
