package social

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-repository-bun"
)

// fakeCipher is a reversible, inspectable Cipher.
type fakeCipher struct {
	failDecrypt bool
}

func (fakeCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("empty plaintext")
	}
	return "enc:" + plaintext, nil
}

func (c fakeCipher) Decrypt(ciphertext string) (string, error) {
	if c.failDecrypt || !strings.HasPrefix(ciphertext, "enc:") {
		return "", errors.New("invalid encrypted data format")
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

// memoryAccounts mirrors the upsert semantics of the bun repository.
type memoryAccounts struct {
	mu       sync.Mutex
	byID     map[string]*SocialAccount
	upserts  int
	failures int
	findErr  error
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{byID: map[string]*SocialAccount{}}
}

func (m *memoryAccounts) Upsert(_ context.Context, account *SocialAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++

	for _, existing := range m.byID {
		if existing.UserID == account.UserID && existing.Platform == account.Platform && existing.PlatformID == account.PlatformID {
			existing.Name = account.Name
			existing.Handle = account.Handle
			existing.Picture = account.Picture
			existing.AccessToken = account.AccessToken
			if account.RefreshToken != nil {
				existing.RefreshToken = account.RefreshToken
			}
			existing.TokenExpiresAt = account.TokenExpiresAt
			existing.IsActive = true
			existing.LastError = nil
			existing.LastErrorAt = nil
			existing.RetryCount = 0
			existing.UpdatedAt = account.UpdatedAt
			return nil
		}
	}

	cp := *account
	m.byID[cp.ID] = &cp
	return nil
}

func (m *memoryAccounts) FindByID(_ context.Context, id string) (*SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	account, ok := m.byID[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	cp := *account
	return &cp, nil
}

func (m *memoryAccounts) FindActive(_ context.Context, userID string, platform Platform) (*SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var found *SocialAccount
	for _, account := range m.byID {
		if account.UserID == userID && account.Platform == platform && account.IsActive {
			if found == nil || account.UpdatedAt.After(found.UpdatedAt) {
				found = account
			}
		}
	}
	if found == nil {
		return nil, repository.NewRecordNotFound()
	}
	cp := *found
	return &cp, nil
}

func (m *memoryAccounts) ListActive(_ context.Context, userID string) ([]*SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*SocialAccount{}
	for _, account := range m.byID {
		if account.UserID == userID && account.IsActive {
			cp := *account
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryAccounts) RecordFailure(_ context.Context, userID string, platform Platform, message string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	for _, account := range m.byID {
		if account.UserID == userID && account.Platform == platform {
			msg := message
			ts := at
			account.LastError = &msg
			account.LastErrorAt = &ts
			account.RetryCount++
		}
	}
	return nil
}

func (m *memoryAccounts) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.NewRecordNotFound()
	}
	account.IsActive = false
	return nil
}

func (m *memoryAccounts) get(id string) *SocialAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byID[id]; ok {
		cp := *account
		return &cp
	}
	return nil
}

// memoryConfigs is an in-memory OAuthConfigRepository.
type memoryConfigs struct {
	mu      sync.Mutex
	configs map[Platform]*OAuthConfig
	lookups int
	findErr error
}

func newMemoryConfigs() *memoryConfigs {
	return &memoryConfigs{configs: map[Platform]*OAuthConfig{}}
}

func (m *memoryConfigs) FindActive(_ context.Context, platform Platform) (*OAuthConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	cfg, ok := m.configs[platform]
	if !ok || !cfg.IsActive {
		return nil, repository.NewRecordNotFound()
	}
	cp := *cfg
	return &cp, nil
}

func (m *memoryConfigs) Upsert(_ context.Context, cfg *OAuthConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.configs[cfg.Platform] = &cp
	return nil
}

func (m *memoryConfigs) Deactivate(_ context.Context, platform Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.configs[platform]; ok {
		cfg.IsActive = false
	}
	return nil
}

func (m *memoryConfigs) List(_ context.Context) ([]*OAuthConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*OAuthConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		cp := *cfg
		out = append(out, &cp)
	}
	return out, nil
}

// stubAdapter is a scriptable Adapter.
type stubAdapter struct {
	*BaseAdapter

	authURL      string
	codeVerifier string
	details      *TokenDetails
	authErr      error
	refreshed    *TokenDetails
	refreshErr   error

	gotVerifier     string
	gotRedirectURI  string
	gotRefreshToken string
	refreshCalls    int
}

func newStubAdapter(platform Platform) *stubAdapter {
	return &stubAdapter{
		BaseAdapter: NewBaseAdapter(platform, PlatformLimits{
			MaxContentLength: 100,
			MaxMediaCount:    2,
			SupportsImages:   true,
		}, nil, WithLogger(NopLogger())),
		authURL: "https://auth.example/authorize",
	}
}

func (s *stubAdapter) GenerateAuthURL(_ context.Context, redirectURI string) (*AuthRequest, error) {
	state := s.NewState()
	return &AuthRequest{
		URL:          s.authURL + "?state=" + state + "&redirect_uri=" + redirectURI,
		State:        state,
		CodeVerifier: s.codeVerifier,
	}, nil
}

func (s *stubAdapter) Authenticate(_ context.Context, _ string, redirectURI string, opts ...ExchangeOption) (*TokenDetails, error) {
	s.gotRedirectURI = redirectURI
	s.gotVerifier = ApplyExchangeOptions(opts...).CodeVerifier
	if s.authErr != nil {
		return nil, s.authErr
	}
	cp := *s.details
	return &cp, nil
}

func (s *stubAdapter) RefreshToken(_ context.Context, refreshToken string) (*TokenDetails, error) {
	s.refreshCalls++
	s.gotRefreshToken = refreshToken
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	cp := *s.refreshed
	return &cp, nil
}

func (s *stubAdapter) PublishPost(context.Context, string, Post) (*PublishResult, error) {
	return nil, s.NotImplemented("publish")
}

func (s *stubAdapter) DeletePost(context.Context, string, string) error {
	return s.NotImplemented("delete")
}

func (s *stubAdapter) GetAnalytics(context.Context, string, string) Analytics {
	return Analytics{}
}

func (s *stubAdapter) GetAccountInfo(context.Context, string) (*AccountInfo, error) {
	return &AccountInfo{ID: s.details.PlatformID, Name: s.details.Name}, nil
}

// recordingSink collects activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
