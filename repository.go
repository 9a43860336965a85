package social

import (
	"context"
	"time"
)

// SocialAccount is a persisted connection between a user and a platform account.
// Token fields hold ciphertext produced by a Cipher, never plaintext.
type SocialAccount struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Platform       Platform   `json:"platform"`
	PlatformID     string     `json:"platform_id"`
	Name           string     `json:"name,omitempty"`
	Handle         string     `json:"handle,omitempty"`
	Picture        string     `json:"picture,omitempty"`
	AccessToken    string     `json:"-"`
	RefreshToken   *string    `json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastError      *string    `json:"last_error,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
	RetryCount     int        `json:"retry_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TokenExpired reports whether the stored access token is past its expiry at now.
// Accounts without an expiry never expire.
func (a *SocialAccount) TokenExpired(now time.Time) bool {
	if a == nil || a.TokenExpiresAt == nil {
		return false
	}
	return !a.TokenExpiresAt.After(now)
}

// DecryptedAccount is a SocialAccount with plaintext tokens. Internal use only.
type DecryptedAccount struct {
	SocialAccount
	AccessToken  string  `json:"-"`
	RefreshToken *string `json:"-"`
}

// OAuthConfig stores the OAuth application credentials of a platform.
// ClientID and ClientSecret hold ciphertext.
type OAuthConfig struct {
	ID           string    `json:"id"`
	Platform     Platform  `json:"platform"`
	ClientID     string    `json:"-"`
	ClientSecret string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccountRepository manages social account persistence.
// Lookups that match nothing return a record not found error.
type AccountRepository interface {
	// Upsert inserts or updates by (user_id, platform, platform_id) in a single
	// conditional write. The update path reactivates the account and clears
	// the error tracking fields.
	Upsert(ctx context.Context, account *SocialAccount) error
	FindByID(ctx context.Context, id string) (*SocialAccount, error)
	FindActive(ctx context.Context, userID string, platform Platform) (*SocialAccount, error)
	ListActive(ctx context.Context, userID string) ([]*SocialAccount, error)
	// RecordFailure stores the error and increments retry_count for every
	// account of the user on the platform.
	RecordFailure(ctx context.Context, userID string, platform Platform, message string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
}

// OAuthConfigRepository manages OAuth application credentials.
type OAuthConfigRepository interface {
	FindActive(ctx context.Context, platform Platform) (*OAuthConfig, error)
	Upsert(ctx context.Context, cfg *OAuthConfig) error
	Deactivate(ctx context.Context, platform Platform) error
	List(ctx context.Context) ([]*OAuthConfig, error)
}

// StateStore keeps issued OAuth states until the callback consumes them.
type StateStore interface {
	Save(ctx context.Context, state *OAuthState) error
	// Consume returns and removes the state. Unknown states return ErrInvalidState.
	Consume(ctx context.Context, state string) (*OAuthState, error)
}

// Cipher encrypts secrets at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// EnvSource provides fallback configuration values by name.
type EnvSource interface {
	Get(key string) string
}

// EnvSourceFunc adapts a lookup function, e.g. os.Getenv.
type EnvSourceFunc func(key string) string

// Get implements EnvSource.
func (f EnvSourceFunc) Get(key string) string {
	if f == nil {
		return ""
	}
	return f(key)
}
