package repository

import (
	"time"

	"github.com/goliatone/go-social"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialAccountModel is the Bun model for social accounts.
type SocialAccountModel struct {
	bun.BaseModel `bun:"table:social_accounts,alias:sa"`

	ID             string     `bun:"id,pk"`
	UserID         string     `bun:"user_id,notnull"`
	Platform       string     `bun:"platform,notnull"`
	PlatformID     string     `bun:"platform_id,notnull"`
	Name           string     `bun:"name"`
	Handle         string     `bun:"handle"`
	Picture        string     `bun:"picture"`
	AccessToken    string     `bun:"access_token,notnull"`
	RefreshToken   *string    `bun:"refresh_token"`
	TokenExpiresAt *time.Time `bun:"token_expires_at"`
	IsActive       bool       `bun:"is_active,notnull"`
	LastError      *string    `bun:"last_error"`
	LastErrorAt    *time.Time `bun:"last_error_at"`
	RetryCount     int        `bun:"retry_count,notnull"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
}

func (m *SocialAccountModel) toDomain() *social.SocialAccount {
	return &social.SocialAccount{
		ID:             m.ID,
		UserID:         m.UserID,
		Platform:       social.Platform(m.Platform),
		PlatformID:     m.PlatformID,
		Name:           m.Name,
		Handle:         m.Handle,
		Picture:        m.Picture,
		AccessToken:    m.AccessToken,
		RefreshToken:   m.RefreshToken,
		TokenExpiresAt: m.TokenExpiresAt,
		IsActive:       m.IsActive,
		LastError:      m.LastError,
		LastErrorAt:    m.LastErrorAt,
		RetryCount:     m.RetryCount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func socialAccountModel(a *social.SocialAccount, now time.Time) *SocialAccountModel {
	m := &SocialAccountModel{
		ID:             a.ID,
		UserID:         a.UserID,
		Platform:       string(a.Platform),
		PlatformID:     a.PlatformID,
		Name:           a.Name,
		Handle:         a.Handle,
		Picture:        a.Picture,
		AccessToken:    a.AccessToken,
		RefreshToken:   a.RefreshToken,
		TokenExpiresAt: a.TokenExpiresAt,
		IsActive:       true,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	return m
}

// OAuthConfigModel is the Bun model for OAuth application credentials.
type OAuthConfigModel struct {
	bun.BaseModel `bun:"table:oauth_configs,alias:oc"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Platform     string    `bun:"platform,notnull,unique"`
	ClientID     string    `bun:"client_id,notnull"`
	ClientSecret string    `bun:"client_secret,notnull"`
	IsActive     bool      `bun:"is_active,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func (m *OAuthConfigModel) toDomain() *social.OAuthConfig {
	return &social.OAuthConfig{
		ID:           m.ID.String(),
		Platform:     social.Platform(m.Platform),
		ClientID:     m.ClientID,
		ClientSecret: m.ClientSecret,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// OAuthStateModel is the Bun model for issued OAuth states.
type OAuthStateModel struct {
	bun.BaseModel `bun:"table:oauth_states,alias:os"`

	State        string    `bun:"state,pk"`
	Platform     string    `bun:"platform,notnull"`
	UserID       string    `bun:"user_id,notnull"`
	RedirectURI  string    `bun:"redirect_uri"`
	CodeVerifier string    `bun:"code_verifier"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	ExpiresAt    time.Time `bun:"expires_at,notnull"`
}

func (m *OAuthStateModel) toDomain() *social.OAuthState {
	return &social.OAuthState{
		State:        m.State,
		Platform:     social.Platform(m.Platform),
		UserID:       m.UserID,
		RedirectURI:  m.RedirectURI,
		CodeVerifier: m.CodeVerifier,
		CreatedAt:    m.CreatedAt,
		ExpiresAt:    m.ExpiresAt,
	}
}
