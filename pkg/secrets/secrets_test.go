package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsClient struct {
	secretsmanageriface.SecretsManagerAPI
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSecretsClient) GetSecretValueWithContext(_ aws.Context, in *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[aws.StringValue(in.SecretId)]
	if !ok {
		return nil, awserr.New(secretsmanager.ErrCodeResourceNotFoundException, "not found", nil)
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func TestNewManager(t *testing.T) {
	m, err := NewManager(Config{Backend: "env"})
	require.NoError(t, err)
	assert.IsType(t, &EnvironmentManager{}, m)

	_, err = NewManager(Config{Backend: "vault"})
	assert.Error(t, err)
}

func TestEnvironmentManager(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	m := NewEnvironmentManager(DefaultConfig())
	ctx := context.Background()

	value, err := m.GetSecret(ctx, "DATABASE_URL")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", value)

	// cached until refreshed
	t.Setenv("DATABASE_URL", "postgres://rotated")
	value, _ = m.GetSecret(ctx, "DATABASE_URL")
	assert.Equal(t, "postgres://env", value)

	require.NoError(t, m.RefreshCache(ctx))
	value, _ = m.GetSecret(ctx, "DATABASE_URL")
	assert.Equal(t, "postgres://rotated", value)

	t.Setenv("SENTRY_DSN", "")
	_, err = m.GetSecret(ctx, "SENTRY_DSN")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAWSSecretsManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Prefixed lookup is cached", func(t *testing.T) {
		client := &fakeSecretsClient{values: map[string]string{"feedbackhub/prod/DATABASE_URL": "postgres://aws"}}
		m := NewAWSSecretsManagerWithClient(client, Config{Prefix: "feedbackhub/prod/", CacheDuration: time.Minute})

		for i := 0; i < 3; i++ {
			value, err := m.GetSecret(ctx, "DATABASE_URL")
			require.NoError(t, err)
			assert.Equal(t, "postgres://aws", value)
		}
		assert.Equal(t, 1, client.calls)
	})

	t.Run("Missing secret", func(t *testing.T) {
		m := NewAWSSecretsManagerWithClient(&fakeSecretsClient{}, DefaultConfig())
		_, err := m.GetSecret(ctx, "REDIS_URL")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Backend failure", func(t *testing.T) {
		m := NewAWSSecretsManagerWithClient(&fakeSecretsClient{err: errors.New("throttled")}, DefaultConfig())
		_, err := m.GetSecret(ctx, "REDIS_URL")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("Expired entries are fetched again", func(t *testing.T) {
		client := &fakeSecretsClient{values: map[string]string{"REDIS_URL": "redis://aws"}}
		m := NewAWSSecretsManagerWithClient(client, Config{CacheDuration: time.Minute})
		now := time.Now()
		m.cache.now = func() time.Time { return now }

		_, _ = m.GetSecret(ctx, "REDIS_URL")
		now = now.Add(2 * time.Minute)
		_, _ = m.GetSecret(ctx, "REDIS_URL")
		assert.Equal(t, 2, client.calls)
	})
}

func TestLoadRuntimeSecrets(t *testing.T) {
	ctx := context.Background()

	client := &fakeSecretsClient{values: map[string]string{
		"DATABASE_URL": "postgres://aws",
		"SENTRY_DSN":   "https://key@sentry.example.com/1",
	}}
	rs, err := LoadRuntimeSecrets(ctx, NewAWSSecretsManagerWithClient(client, DefaultConfig()))
	require.NoError(t, err)
	assert.Equal(t, "postgres://aws", rs.DatabaseURL)
	assert.Empty(t, rs.RedisURL)
	assert.Equal(t, "https://key@sentry.example.com/1", rs.SentryDSN)

	_, err = LoadRuntimeSecrets(ctx, NewAWSSecretsManagerWithClient(&fakeSecretsClient{err: errors.New("denied")}, DefaultConfig()))
	assert.Error(t, err)
}

func TestAutoDetectConfig(t *testing.T) {
	t.Setenv("AWS_SECRETS_MANAGER_ENABLED", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("SECRETS_CACHE_DURATION", "")
	assert.Equal(t, "env", AutoDetectConfig().Backend)
	assert.Equal(t, "us-east-1", AutoDetectConfig().AWSRegion)

	t.Setenv("AWS_SECRETS_MANAGER_ENABLED", "true")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_SECRETS_PREFIX", "feedbackhub/")
	t.Setenv("SECRETS_CACHE_DURATION", "30s")
	cfg := AutoDetectConfig()
	assert.Equal(t, "aws-secrets-manager", cfg.Backend)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "feedbackhub/", cfg.Prefix)
	assert.Equal(t, 30*time.Second, cfg.CacheDuration)

	t.Setenv("AWS_SECRETS_MANAGER_ENABLED", "")
	t.Setenv("AWS_EXECUTION_ENV", "AWS_ECS_FARGATE")
	assert.Equal(t, "aws-secrets-manager", AutoDetectBackend())
}
