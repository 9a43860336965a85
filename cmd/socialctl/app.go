package main

import (
	"fmt"
	"log/slog"
	"os"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-social"
	"github.com/goliatone/go-social/config"
	"github.com/goliatone/go-social/repository"
	"github.com/goliatone/go-social/secretbox"
	"github.com/uptrace/bun"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *social.SlogLogger
	store  *persistence.Client
	db     *bun.DB
	repos  repository.Manager
}

// bootstrap loads config, builds the logger and opens the database.
// requireKey controls whether the encryption key must be valid.
func bootstrap(flags *globalFlags, requireKey bool) (*app, error) {
	cfg, _, err := config.Load(config.Options{File: flags.configFile, EnvFiles: flags.envFiles})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if requireKey {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	logger := social.NewSlogLogger(slog.New(social.NewTintHandler(os.Stderr, cfg.SlogLevel())))

	store, err := repository.Open(repository.OpenOptions{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		Debug:       cfg.Database.Debug,
		PingTimeout: cfg.Database.PingTimeout,
	})
	if err != nil {
		return nil, err
	}
	store.SetLogger(logger.With("component", "persistence"))
	db := store.DB()

	repos := repository.NewManager(db)
	if err := repos.Validate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, db: db, repos: repos}, nil
}

func (a *app) cipher() (*secretbox.Box, error) {
	box, err := secretbox.New(a.cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	return box, nil
}

func (a *app) credentials(cipher social.Cipher) *social.CredentialResolver {
	return social.NewCredentialResolver(
		a.repos.OAuthConfigs(),
		cipher,
		config.NewEnvSource(),
		social.WithCacheTTL(a.cfg.OAuth.CredentialsTTL),
		social.WithResolverLogger(a.logger.With("component", "credentials")),
	)
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}
