package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultCredentialsTTL is how long resolved credentials are served from memory.
const DefaultCredentialsTTL = 5 * time.Minute

// SettingsPath is the UI location where OAuth applications are configured.
const SettingsPath = "/settings/integrations"

// CredentialSource tells where resolved credentials came from.
type CredentialSource string

const (
	CredentialSourceDatabase    CredentialSource = "database"
	CredentialSourceEnvironment CredentialSource = "environment"
)

// OAuthCredentials are the plaintext OAuth application credentials of a platform.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	Source       CredentialSource
}

// CredentialProvider resolves OAuth application credentials.
type CredentialProvider interface {
	GetCredentials(ctx context.Context, platform Platform) (*OAuthCredentials, error)
}

// EnvVarNames returns the id and secret variable names for platform.
func EnvVarNames(platform Platform) (idVar, secretVar string) {
	prefix := strings.ToUpper(string(platform))
	switch platform {
	case PlatformFacebook, PlatformInstagram, PlatformThreads:
		return prefix + "_APP_ID", prefix + "_APP_SECRET"
	default:
		return prefix + "_CLIENT_ID", prefix + "_CLIENT_SECRET"
	}
}

type cachedCredentials struct {
	creds     OAuthCredentials
	fetchedAt time.Time
}

// CredentialResolver resolves credentials preferring the persisted OAuthConfig
// over environment values, with a short lived in-memory cache.
type CredentialResolver struct {
	repo   OAuthConfigRepository
	cipher Cipher
	env    EnvSource
	cache  *gocache.Cache
	ttl    time.Duration
	now    func() time.Time
	logger Logger
}

// CredentialResolverOption configures a CredentialResolver.
type CredentialResolverOption func(*CredentialResolver)

// WithCacheTTL overrides DefaultCredentialsTTL.
func WithCacheTTL(ttl time.Duration) CredentialResolverOption {
	return func(r *CredentialResolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock overrides the clock used for cache staleness checks.
func WithClock(now func() time.Time) CredentialResolverOption {
	return func(r *CredentialResolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger Logger) CredentialResolverOption {
	return func(r *CredentialResolver) {
		r.logger = logger
	}
}

// NewCredentialResolver creates a resolver. repo and cipher may be nil, in
// which case only the environment is consulted.
func NewCredentialResolver(repo OAuthConfigRepository, cipher Cipher, env EnvSource, opts ...CredentialResolverOption) *CredentialResolver {
	r := &CredentialResolver{
		repo:   repo,
		cipher: cipher,
		env:    env,
		ttl:    DefaultCredentialsTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = normalizeLogger(r.logger)
	r.cache = gocache.New(r.ttl, 2*r.ttl)
	return r
}

// GetCredentials implements CredentialProvider.
func (r *CredentialResolver) GetCredentials(ctx context.Context, platform Platform) (*OAuthCredentials, error) {
	if v, ok := r.cache.Get(string(platform)); ok {
		if entry, ok := v.(cachedCredentials); ok && r.now().Sub(entry.fetchedAt) < r.ttl {
			creds := entry.creds
			return &creds, nil
		}
	}

	creds, err := r.resolve(ctx, platform)
	if err != nil {
		return nil, err
	}

	r.cache.Set(string(platform), cachedCredentials{creds: *creds, fetchedAt: r.now()}, gocache.DefaultExpiration)
	return creds, nil
}

func (r *CredentialResolver) resolve(ctx context.Context, platform Platform) (*OAuthCredentials, error) {
	if creds := r.fromDatabase(ctx, platform); creds != nil {
		return creds, nil
	}

	idVar, secretVar := EnvVarNames(platform)
	if r.env != nil {
		id := strings.TrimSpace(r.env.Get(idVar))
		secret := strings.TrimSpace(r.env.Get(secretVar))
		if id != "" && secret != "" {
			return &OAuthCredentials{
				ClientID:     id,
				ClientSecret: secret,
				Source:       CredentialSourceEnvironment,
			}, nil
		}
	}

	return nil, fmt.Errorf(
		"%w: no OAuth credentials found for %s. Configure them in the UI at %s or set the %s and %s environment variables",
		ErrCredentialsNotConfigured, platform.DisplayName(), SettingsPath, idVar, secretVar,
	)
}

func (r *CredentialResolver) fromDatabase(ctx context.Context, platform Platform) *OAuthCredentials {
	if r.repo == nil || r.cipher == nil {
		return nil
	}

	cfg, err := r.repo.FindActive(ctx, platform)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			r.logger.Warn("oauth config lookup failed, falling back to environment",
				"platform", platform, "error", err)
		}
		return nil
	}
	if cfg == nil || !cfg.IsActive {
		return nil
	}

	id, err := r.cipher.Decrypt(cfg.ClientID)
	if err != nil {
		r.logger.Warn("oauth config client id decrypt failed", "platform", platform, "error", err)
		return nil
	}
	secret, err := r.cipher.Decrypt(cfg.ClientSecret)
	if err != nil {
		r.logger.Warn("oauth config client secret decrypt failed", "platform", platform, "error", err)
		return nil
	}

	return &OAuthCredentials{
		ClientID:     id,
		ClientSecret: secret,
		Source:       CredentialSourceDatabase,
	}
}

// ClearCache drops cached credentials for the given platforms, or all of them.
func (r *CredentialResolver) ClearCache(platforms ...Platform) {
	if len(platforms) == 0 {
		r.cache.Flush()
		return
	}
	for _, p := range platforms {
		r.cache.Delete(string(p))
	}
}

// SaveConfig encrypts and stores OAuth application credentials for platform,
// then drops the cached entry so the next lookup sees the new values.
func (r *CredentialResolver) SaveConfig(ctx context.Context, platform Platform, clientID, clientSecret string) error {
	if r.repo == nil || r.cipher == nil {
		return fmt.Errorf("%w: no oauth config repository configured", ErrCredentialsNotConfigured)
	}

	encID, err := r.cipher.Encrypt(clientID)
	if err != nil {
		return fmt.Errorf("encrypt client id: %w", err)
	}
	encSecret, err := r.cipher.Encrypt(clientSecret)
	if err != nil {
		return fmt.Errorf("encrypt client secret: %w", err)
	}

	now := r.now()
	if err := r.repo.Upsert(ctx, &OAuthConfig{
		ID:           uuid.NewString(),
		Platform:     platform,
		ClientID:     encID,
		ClientSecret: encSecret,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return fmt.Errorf("save oauth config: %w", err)
	}

	r.ClearCache(platform)
	return nil
}

// DisableConfig deactivates the stored configuration of platform.
func (r *CredentialResolver) DisableConfig(ctx context.Context, platform Platform) error {
	if r.repo == nil {
		return fmt.Errorf("%w: no oauth config repository configured", ErrCredentialsNotConfigured)
	}
	if err := r.repo.Deactivate(ctx, platform); err != nil {
		return fmt.Errorf("disable oauth config: %w", err)
	}
	r.ClearCache(platform)
	return nil
}

// StaticCredentials serves fixed credentials, handy for tools and tests.
type StaticCredentials map[Platform]OAuthCredentials

// GetCredentials implements CredentialProvider.
func (s StaticCredentials) GetCredentials(_ context.Context, platform Platform) (*OAuthCredentials, error) {
	creds, ok := s[platform]
	if !ok || creds.ClientID == "" || creds.ClientSecret == "" {
		idVar, secretVar := EnvVarNames(platform)
		return nil, fmt.Errorf("%w: no OAuth credentials found for %s (expected %s and %s)",
			ErrCredentialsNotConfigured, platform.DisplayName(), idVar, secretVar)
	}
	if creds.Source == "" {
		creds.Source = CredentialSourceEnvironment
	}
	return &creds, nil
}
