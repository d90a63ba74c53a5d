package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/feedbackhub/config"
	"github.com/jordanlanch/feedbackhub/pkg/secrets"
)

type mapSecrets struct {
	values map[string]string
	err    error
}

func (m mapSecrets) GetSecret(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", secrets.ErrNotFound
}

func (mapSecrets) RefreshCache(context.Context) error { return nil }
func (mapSecrets) Close() error                       { return nil }

func TestApplySecrets(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://local", RedisURL: "redis://local"}

	err := applySecrets(context.Background(), cfg, mapSecrets{values: map[string]string{
		"DATABASE_URL": "postgres://prod",
		"SENTRY_DSN":   "https://key@sentry.example.com/1",
	}})
	require.NoError(t, err)
	assert.Equal(t, "postgres://prod", cfg.DatabaseURL)
	assert.Equal(t, "redis://local", cfg.RedisURL, "missing secrets keep the configured value")
	assert.Equal(t, "https://key@sentry.example.com/1", cfg.SentryDSN)

	err = applySecrets(context.Background(), cfg, mapSecrets{err: errors.New("access denied")})
	assert.Error(t, err)
}

func TestLoadSecrets_EnvironmentBackend(t *testing.T) {
	t.Setenv("AWS_SECRETS_MANAGER_ENABLED", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("DATABASE_URL", "postgres://from-env")
	t.Setenv("REDIS_URL", "")
	t.Setenv("SENTRY_DSN", "")

	cfg := &config.Config{RedisURL: "redis://default"}
	require.NoError(t, loadSecrets(context.Background(), cfg))
	assert.Equal(t, "postgres://from-env", cfg.DatabaseURL)
	assert.Equal(t, "redis://default", cfg.RedisURL)
}
