package main

import (
	"context"
	"log"

	"github.com/jordanlanch/feedbackhub/config"
	"github.com/jordanlanch/feedbackhub/pkg/secrets"
)

// applySecrets overrides connection strings in cfg with values found in m
func applySecrets(ctx context.Context, cfg *config.Config, m secrets.Manager) error {
	rs, err := secrets.LoadRuntimeSecrets(ctx, m)
	if err != nil {
		return err
	}

	if rs.DatabaseURL != "" {
		cfg.DatabaseURL = rs.DatabaseURL
	}
	if rs.RedisURL != "" {
		cfg.RedisURL = rs.RedisURL
	}
	if rs.SentryDSN != "" {
		cfg.SentryDSN = rs.SentryDSN
	}
	return nil
}

// loadSecrets resolves the secrets backend from the environment and applies it
func loadSecrets(ctx context.Context, cfg *config.Config) error {
	scfg := secrets.AutoDetectConfig()
	m, err := secrets.NewManager(scfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := applySecrets(ctx, cfg, m); err != nil {
		return err
	}
	log.Printf("🔐 Secrets loaded (backend: %s)", scfg.Backend)
	return nil
}
