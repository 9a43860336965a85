package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = strings.Repeat("ab", 32)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SOCIAL_SECURITY_ENCRYPTION_KEY", testKey)

	cfg, _, err := Load(Options{EnvFiles: []string{}})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/social", cfg.Server.PathPrefix)
	assert.Equal(t, social.SettingsPath, cfg.Server.SuccessRedirect)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.PingTimeout)
	assert.Equal(t, social.DefaultRefreshLeeway, cfg.OAuth.RefreshLeeway)
	assert.Equal(t, social.DefaultStateTTL, cfg.OAuth.StateTTL)
	assert.Equal(t, social.DefaultCredentialsTTL, cfg.OAuth.CredentialsTTL)
	assert.Equal(t, 30*time.Second, cfg.OAuth.HTTPTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "social.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  addr: ":9000"
  base_url: "https://app.example"
database:
  driver: postgres
  dsn: "postgres://localhost/social"
oauth:
  state_ttl: 15m
  platforms: [linkedin, reddit]
logger:
  level: debug
`), 0o600))

	t.Setenv("SOCIAL_SERVER_ADDR", ":9100")
	t.Setenv("ENCRYPTION_KEY", testKey)

	cfg, v, err := Load(Options{File: file, EnvFiles: []string{}})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "https://app.example", cfg.Server.BaseURL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.OAuth.StateTTL)
	assert.Equal(t, testKey, cfg.Security.EncryptionKey)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	platforms, err := cfg.EnabledPlatforms()
	require.NoError(t, err)
	assert.Equal(t, []social.Platform{social.PlatformLinkedIn, social.PlatformReddit}, platforms)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml"), EnvFiles: []string{}})
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SOCIAL_REDDIT_USER_AGENT=test-agent/1.0\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SOCIAL_REDDIT_USER_AGENT") })

	cfg, _, err := Load(Options{EnvFiles: []string{envFile, filepath.Join(dir, "missing.env")}})
	require.NoError(t, err)
	assert.Equal(t, "test-agent/1.0", cfg.Reddit.UserAgent)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Addr: ":8080", BaseURL: "http://localhost"},
			Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Security: SecurityConfig{EncryptionKey: testKey},
			OAuth:    OAuthConfig{StateTTL: time.Minute},
			Logger:   LoggerConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing key", func(c *Config) { c.Security.EncryptionKey = "" }, "Security"},
		{"short key", func(c *Config) { c.Security.EncryptionKey = "abcd" }, "Security"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "Database"},
		{"bad level", func(c *Config) { c.Logger.Level = "trace" }, "Logger"},
		{"unknown platform", func(c *Config) { c.OAuth.Platforms = []string{"myspace"} }, "OAuth"},
		{"short state ttl", func(c *Config) { c.OAuth.StateTTL = time.Second }, "OAuth"},
		{"negative refresh leeway", func(c *Config) { c.OAuth.RefreshLeeway = -time.Second }, "OAuth"},
	}

	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestEnabledPlatformsUnknown(t *testing.T) {
	cfg := Config{OAuth: OAuthConfig{Platforms: []string{"linkedin", "myspace"}}}
	_, err := cfg.EnabledPlatforms()
	assert.ErrorContains(t, err, "myspace")
}

func TestEnvSource(t *testing.T) {
	env := map[string]string{
		"LINKEDIN_CLIENT_ID":        "plain-id",
		"SOCIAL_LINKEDIN_CLIENT_ID": "prefixed-id",
		"REDDIT_CLIENT_ID":          "reddit-id",
	}
	src := EnvSource{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	assert.Equal(t, "prefixed-id", src.Get("LINKEDIN_CLIENT_ID"))
	assert.Equal(t, "reddit-id", src.Get("REDDIT_CLIENT_ID"))
	assert.Equal(t, "", src.Get("TWITTER_CLIENT_ID"))
}

func TestEnvSourceFeedsCredentialResolver(t *testing.T) {
	t.Setenv("THREADS_APP_ID", "threads-id")
	t.Setenv("THREADS_APP_SECRET", "threads-secret")

	resolver := social.NewCredentialResolver(nil, nil, NewEnvSource(), social.WithResolverLogger(social.NopLogger()))
	creds, err := resolver.GetCredentials(t.Context(), social.PlatformThreads)
	require.NoError(t, err)
	assert.Equal(t, "threads-id", creds.ClientID)
	assert.Equal(t, social.CredentialSourceEnvironment, creds.Source)
}
