// Package config loads the runtime configuration of the socialctl binary.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-social"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every structured setting, e.g. SOCIAL_SERVER_ADDR.
const EnvPrefix = "SOCIAL"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Security SecurityConfig `mapstructure:"security"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Reddit   RedditConfig   `mapstructure:"reddit"`
}

type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	BaseURL         string `mapstructure:"base_url"`
	PathPrefix      string `mapstructure:"path_prefix"`
	SuccessRedirect string `mapstructure:"success_redirect"`
	ErrorRedirect   string `mapstructure:"error_redirect"`
	// UserHeader, when set, trusts the named request header as the user ID.
	// Only use behind a gateway that authenticates requests.
	UserHeader string `mapstructure:"user_header"`
}

type DatabaseConfig struct {
	Driver      string        `mapstructure:"driver"`
	DSN         string        `mapstructure:"dsn"`
	Debug       bool          `mapstructure:"debug"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// RedisConfig enables the Redis state store when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SecurityConfig struct {
	// EncryptionKey is the 64 hex char secretbox key.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type OAuthConfig struct {
	StateTTL       time.Duration `mapstructure:"state_ttl"`
	RefreshLeeway  time.Duration `mapstructure:"refresh_leeway"`
	CredentialsTTL time.Duration `mapstructure:"credentials_ttl"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	Platforms      []string      `mapstructure:"platforms"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

type RedditConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// Validate implements ozzo validation.Validatable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Security),
		validation.Field(&c.Logger),
		validation.Field(&c.OAuth),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.BaseURL, validation.Required),
	)
}

func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In("sqlite", "sqlite3", "postgres", "postgresql", "pgx")),
		validation.Field(&c.DSN, validation.Required),
	)
}

func (c SecurityConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.EncryptionKey, validation.Required, validation.Length(64, 64)),
	)
}

func (c LoggerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
	)
}

func (c OAuthConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.StateTTL, validation.Min(time.Minute)),
		validation.Field(&c.RefreshLeeway, validation.Min(time.Duration(0))),
		validation.Field(&c.Platforms, validation.Each(validation.By(func(v any) error {
			s, _ := v.(string)
			if _, ok := social.ParsePlatform(s); !ok {
				return fmt.Errorf("unknown platform %q", s)
			}
			return nil
		}))),
	)
}

// EnabledPlatforms parses OAuth.Platforms. Empty means every platform.
func (c Config) EnabledPlatforms() ([]social.Platform, error) {
	out := make([]social.Platform, 0, len(c.OAuth.Platforms))
	for _, name := range c.OAuth.Platforms {
		p, ok := social.ParsePlatform(name)
		if !ok {
			return nil, fmt.Errorf("unknown platform %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// SlogLevel maps Logger.Level to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logger.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.path_prefix", "/social")
	v.SetDefault("server.success_redirect", social.SettingsPath)
	v.SetDefault("server.error_redirect", social.SettingsPath)
	v.SetDefault("server.user_header", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:social.db?cache=shared")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.ping_timeout", "5s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "social:oauth_state")

	v.SetDefault("security.encryption_key", "")

	v.SetDefault("oauth.state_ttl", social.DefaultStateTTL)
	v.SetDefault("oauth.refresh_leeway", social.DefaultRefreshLeeway)
	v.SetDefault("oauth.credentials_ttl", social.DefaultCredentialsTTL)
	v.SetDefault("oauth.http_timeout", 30*time.Second)
	v.SetDefault("oauth.platforms", []string{})

	v.SetDefault("logger.level", "info")

	v.SetDefault("reddit.user_agent", "")
}

// Options tune Load.
type Options struct {
	// File is an optional YAML config file. Missing files are an error only
	// when set explicitly.
	File string
	// EnvFiles are loaded into the process environment first. Missing files
	// are ignored.
	EnvFiles []string
}

// Load reads .env files, the optional YAML file and SOCIAL_* environment
// variables, in increasing priority. The encryption key also falls back to
// the unprefixed ENCRYPTION_KEY variable.
func Load(opts Options) (*Config, *viper.Viper, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Security.EncryptionKey == "" {
		cfg.Security.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	}

	return &cfg, v, nil
}

// EnvSource resolves platform credential variables such as
// LINKEDIN_CLIENT_ID. Unprefixed names are read from the process
// environment; SOCIAL_ prefixed names win when both exist.
type EnvSource struct {
	lookup func(string) (string, bool)
}

var _ social.EnvSource = EnvSource{}

// NewEnvSource uses os.LookupEnv.
func NewEnvSource() EnvSource {
	return EnvSource{lookup: os.LookupEnv}
}

// Get implements social.EnvSource.
func (e EnvSource) Get(key string) string {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvPrefix + "_" + key); ok && v != "" {
		return v
	}
	v, _ := lookup(key)
	return v
}
