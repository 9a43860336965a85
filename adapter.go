package social

import "context"

// Adapter is the uniform contract implemented once per social network.
// Handshake details differ per platform and stay inside each implementation.
type Adapter interface {
	// Platform returns the identifier the adapter is registered under.
	Platform() Platform

	// GenerateAuthURL builds the authorization URL with a fresh state token.
	GenerateAuthURL(ctx context.Context, redirectURI string) (*AuthRequest, error)

	// Authenticate exchanges an authorization code for tokens and loads the profile.
	Authenticate(ctx context.Context, code, redirectURI string, opts ...ExchangeOption) (*TokenDetails, error)

	// RefreshToken renews the access token. The returned RefreshToken is the
	// value that should be persisted, rotated or not.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenDetails, error)

	// PublishPost publishes content using the platform content model.
	PublishPost(ctx context.Context, accessToken string, post Post) (*PublishResult, error)

	// DeletePost deletes a post. Platforms without delete support return ErrNotImplemented.
	DeletePost(ctx context.Context, accessToken, postID string) error

	// GetAnalytics returns engagement metrics, or zero values when the fetch fails.
	GetAnalytics(ctx context.Context, accessToken, postID string) Analytics

	// ValidatePost checks a post against PlatformLimits.
	ValidatePost(post Post) ValidationResult

	// PlatformLimits returns the static capabilities of the platform.
	PlatformLimits() PlatformLimits

	// GetAccountInfo fetches the profile behind an access token.
	GetAccountInfo(ctx context.Context, accessToken string) (*AccountInfo, error)
}

// ExchangeOption configures the token exchange.
type ExchangeOption func(*exchangeConfig)

// WithCodeVerifier sets the PKCE code verifier for token exchange.
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(c *exchangeConfig) {
		c.codeVerifier = verifier
	}
}

type exchangeConfig struct {
	codeVerifier string
}

// ExchangeConfig represents applied exchange options in an adapter friendly form.
type ExchangeConfig struct {
	CodeVerifier string
}

// ApplyExchangeOptions applies ExchangeOption values and returns a normalized config.
func ApplyExchangeOptions(opts ...ExchangeOption) ExchangeConfig {
	cfg := exchangeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return ExchangeConfig{
		CodeVerifier: cfg.codeVerifier,
	}
}
