package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
)

// AuthURLResult is returned by OAuthManager.GenerateAuthURL.
type AuthURLResult struct {
	URL       string    `json:"url"`
	State     string    `json:"state"`
	Platform  Platform  `json:"platform"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResult is the outcome of OAuthManager.Authenticate.
// Failures are reported through Err and Error, never as a returned error.
type AuthResult struct {
	Success   bool   `json:"success"`
	AccountID string `json:"account_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

func failedAuth(err error) AuthResult {
	return AuthResult{Success: false, Error: err.Error(), Err: err}
}

// OAuthManager turns adapter output into persisted social accounts.
type OAuthManager struct {
	accounts     AccountRepository
	states       StateStore
	cipher       Cipher
	logger       Logger
	activitySink ActivitySink
	stateTTL     time.Duration
	leeway       time.Duration
	leeways      map[Platform]time.Duration
	now          func() time.Time
}

// DefaultRefreshLeeway is how long before expiry GetValidAccessToken refreshes.
const DefaultRefreshLeeway = 5 * time.Minute

// Meta platforms refresh by re-exchanging the unexpired long-lived token
// (about 60 days), so they renew well ahead of expiry.
var defaultPlatformLeeways = map[Platform]time.Duration{
	PlatformFacebook:  7 * 24 * time.Hour,
	PlatformInstagram: 7 * 24 * time.Hour,
	PlatformThreads:   7 * 24 * time.Hour,
}

// ManagerOption configures an OAuthManager.
type ManagerOption func(*OAuthManager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *OAuthManager) {
		m.logger = logger
	}
}

// WithActivitySink sets the sink receiving account lifecycle events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *OAuthManager) {
		m.activitySink = sink
	}
}

// WithStateTTL overrides DefaultStateTTL.
func WithStateTTL(ttl time.Duration) ManagerOption {
	return func(m *OAuthManager) {
		if ttl > 0 {
			m.stateTTL = ttl
		}
	}
}

// WithRefreshLeeway overrides DefaultRefreshLeeway for platforms without
// their own leeway.
func WithRefreshLeeway(leeway time.Duration) ManagerOption {
	return func(m *OAuthManager) {
		if leeway >= 0 {
			m.leeway = leeway
		}
	}
}

// WithPlatformRefreshLeeway sets the refresh ahead window of one platform.
func WithPlatformRefreshLeeway(platform Platform, leeway time.Duration) ManagerOption {
	return func(m *OAuthManager) {
		if leeway >= 0 {
			m.leeways[platform] = leeway
		}
	}
}

// WithManagerClock overrides the clock used for expiry computations.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *OAuthManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewOAuthManager creates a manager. A nil StateStore defaults to a MemoryStateStore.
func NewOAuthManager(accounts AccountRepository, states StateStore, cipher Cipher, opts ...ManagerOption) *OAuthManager {
	m := &OAuthManager{
		accounts: accounts,
		states:   states,
		cipher:   cipher,
		stateTTL: DefaultStateTTL,
		leeway:   DefaultRefreshLeeway,
		leeways:  make(map[Platform]time.Duration, len(defaultPlatformLeeways)),
		now:      time.Now,
	}
	for p, d := range defaultPlatformLeeways {
		m.leeways[p] = d
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.states == nil {
		mem := NewMemoryStateStore()
		mem.now = m.now
		m.states = mem
	}
	m.logger = normalizeLogger(m.logger)
	m.activitySink = normalizeActivitySink(m.activitySink)
	return m
}

// GenerateAuthURL starts the authorization flow and persists the state bound
// to the platform, user and redirect URI.
func (m *OAuthManager) GenerateAuthURL(ctx context.Context, adapter Adapter, redirectURI, userID string) (*AuthURLResult, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: nil adapter", ErrAdapterNotRegistered)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidState)
	}

	req, err := adapter.GenerateAuthURL(ctx, redirectURI)
	if err != nil {
		return nil, err
	}

	now := m.now()
	state := &OAuthState{
		State:        req.State,
		Platform:     adapter.Platform(),
		UserID:       userID,
		RedirectURI:  redirectURI,
		CodeVerifier: req.CodeVerifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.stateTTL),
	}
	if err := m.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("persist oauth state: %w", err)
	}

	return &AuthURLResult{
		URL:       req.URL,
		State:     req.State,
		Platform:  adapter.Platform(),
		ExpiresAt: state.ExpiresAt,
	}, nil
}

// Authenticate validates the callback state, exchanges the code and upserts
// the resulting account.
func (m *OAuthManager) Authenticate(ctx context.Context, adapter Adapter, code, state, redirectURI, userID string) AuthResult {
	if adapter == nil {
		return failedAuth(fmt.Errorf("%w: nil adapter", ErrAdapterNotRegistered))
	}
	platform := adapter.Platform()

	stored, err := m.consumeState(ctx, platform, state, redirectURI, userID)
	if err != nil {
		m.authFailed(ctx, platform, userID, "state", err)
		return failedAuth(err)
	}

	if strings.TrimSpace(code) == "" {
		err := fmt.Errorf("%w: authorization code is required", ErrInvalidState)
		m.authFailed(ctx, platform, userID, "code", err)
		return failedAuth(err)
	}

	var opts []ExchangeOption
	if stored.CodeVerifier != "" {
		opts = append(opts, WithCodeVerifier(stored.CodeVerifier))
	}

	details, err := adapter.Authenticate(ctx, code, redirectURI, opts...)
	if err != nil {
		err = decorate(platform, "authenticate", err)
		m.authFailed(ctx, platform, userID, "exchange", err)
		return failedAuth(err)
	}

	accountID, err := m.SaveAccount(ctx, platform, details, userID)
	if err != nil {
		m.authFailed(ctx, platform, userID, "save", err)
		return failedAuth(err)
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountConnected,
		UserID:    userID,
		Platform:  platform,
		AccountID: accountID,
		Metadata: map[string]any{
			"platform_id": details.PlatformID,
		},
	})

	return AuthResult{Success: true, AccountID: accountID}
}

func (m *OAuthManager) consumeState(ctx context.Context, platform Platform, state, redirectURI, userID string) (*OAuthState, error) {
	if strings.TrimSpace(state) == "" {
		return nil, fmt.Errorf("%w: state is missing", ErrInvalidState)
	}

	stored, err := m.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			return nil, fmt.Errorf("%w: state is unknown or already used", ErrInvalidState)
		}
		return nil, fmt.Errorf("load oauth state: %w", err)
	}

	if stored.Expired(m.now()) {
		return nil, ErrStateExpired
	}
	if stored.Platform != platform {
		return nil, fmt.Errorf("%w: state was issued for %s", ErrInvalidState, stored.Platform)
	}
	if stored.UserID != userID {
		return nil, fmt.Errorf("%w: state was issued for another user", ErrInvalidState)
	}
	if stored.RedirectURI != redirectURI {
		return nil, fmt.Errorf("%w: redirect uri does not match", ErrInvalidState)
	}

	return stored, nil
}

// SaveAccount encrypts the tokens and upserts the account keyed by
// (user, platform, platform id). It returns the account ID.
func (m *OAuthManager) SaveAccount(ctx context.Context, platform Platform, details *TokenDetails, userID string) (string, error) {
	if details == nil || details.AccessToken == "" {
		return "", fmt.Errorf("save account: access token is required")
	}
	if details.PlatformID == "" {
		return "", fmt.Errorf("save account: platform account id is required")
	}

	access, err := m.cipher.Encrypt(details.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}

	var refresh *string
	if details.RefreshToken != "" {
		enc, err := m.cipher.Encrypt(details.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("encrypt refresh token: %w", err)
		}
		refresh = &enc
	}

	id, err := AccountID(userID, platform, details.PlatformID)
	if err != nil {
		return "", err
	}

	now := m.now()
	account := &SocialAccount{
		ID:           id,
		UserID:       userID,
		Platform:     platform,
		PlatformID:   details.PlatformID,
		Name:         details.Name,
		Handle:       details.Handle,
		Picture:      details.Picture,
		AccessToken:  access,
		RefreshToken: refresh,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if details.ExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(details.ExpiresIn) * time.Second)
		account.TokenExpiresAt = &expiresAt
	}

	if err := m.accounts.Upsert(ctx, account); err != nil {
		return "", fmt.Errorf("upsert social account: %w", err)
	}

	return id, nil
}

// AccountID derives the stable account identifier from the natural key.
func AccountID(userID string, platform Platform, platformID string) (string, error) {
	id, err := hashid.NewUUID(userID + ":" + string(platform) + ":" + platformID)
	if err != nil {
		return "", fmt.Errorf("derive account id: %w", err)
	}
	return id.String(), nil
}

// GetAccessToken returns the plaintext access token of the active account.
// ok is false when there is no active account or the token already expired.
func (m *OAuthManager) GetAccessToken(ctx context.Context, platform Platform, userID string) (string, bool, error) {
	account, err := m.findActive(ctx, platform, userID)
	if err != nil || account == nil {
		return "", false, err
	}
	if account.TokenExpired(m.now()) {
		return "", false, nil
	}

	token, err := m.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return "", false, fmt.Errorf("decrypt access token: %w", err)
	}
	return token, true, nil
}

// GetAccount returns the account with plaintext tokens, or nil when absent.
func (m *OAuthManager) GetAccount(ctx context.Context, accountID string) (*DecryptedAccount, error) {
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if account == nil {
		return nil, nil
	}
	return m.decrypt(account)
}

func (m *OAuthManager) decrypt(account *SocialAccount) (*DecryptedAccount, error) {
	access, err := m.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}

	out := &DecryptedAccount{
		SocialAccount: *account,
		AccessToken:   access,
	}
	out.SocialAccount.AccessToken = ""
	out.SocialAccount.RefreshToken = nil

	if account.RefreshToken != nil {
		refresh, err := m.cipher.Decrypt(*account.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
		out.RefreshToken = &refresh
	}
	return out, nil
}

// RefreshAccessToken renews the token of the active (user, platform) account.
// Failures are recorded on the account rows and reported as false.
func (m *OAuthManager) RefreshAccessToken(ctx context.Context, adapter Adapter, platform Platform, userID string) bool {
	account, err := m.findActive(ctx, platform, userID)
	if err != nil {
		m.logger.Error("refresh: account lookup failed", "platform", platform, "user_id", userID, "error", err)
		return false
	}
	if account == nil {
		m.logger.Warn("refresh: no active account", "platform", platform, "user_id", userID)
		return false
	}

	if adapter == nil {
		m.refreshFailed(ctx, account, fmt.Errorf("%w: %s", ErrAdapterNotRegistered, platform))
		return false
	}
	if account.RefreshToken == nil {
		m.refreshFailed(ctx, account, ErrNoRefreshToken)
		return false
	}

	refreshToken, err := m.cipher.Decrypt(*account.RefreshToken)
	if err != nil {
		m.refreshFailed(ctx, account, fmt.Errorf("decrypt refresh token: %w", err))
		return false
	}

	details, err := adapter.RefreshToken(ctx, refreshToken)
	if err != nil {
		m.refreshFailed(ctx, account, decorate(platform, "refresh_token", err))
		return false
	}

	if details.PlatformID == "" {
		details.PlatformID = account.PlatformID
	}
	if details.Name == "" {
		details.Name = account.Name
	}
	if details.Handle == "" {
		details.Handle = account.Handle
	}
	if details.Picture == "" {
		details.Picture = account.Picture
	}
	if details.RefreshToken == "" {
		details.RefreshToken = refreshToken
	}

	accountID, err := m.SaveAccount(ctx, platform, details, userID)
	if err != nil {
		m.refreshFailed(ctx, account, err)
		return false
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountRefreshed,
		UserID:    userID,
		Platform:  platform,
		AccountID: accountID,
	})
	return true
}

func (m *OAuthManager) refreshFailed(ctx context.Context, account *SocialAccount, cause error) {
	m.logger.Warn("token refresh failed",
		"platform", account.Platform, "user_id", account.UserID, "account_id", account.ID, "error", cause)

	if err := m.accounts.RecordFailure(ctx, account.UserID, account.Platform, cause.Error(), m.now()); err != nil {
		m.logger.Error("refresh: recording failure", "account_id", account.ID, "error", err)
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountRefreshFailed,
		UserID:    account.UserID,
		Platform:  account.Platform,
		AccountID: account.ID,
		Metadata: map[string]any{
			"error":       cause.Error(),
			"retry_count": account.RetryCount + 1,
		},
	})
}

// GetValidAccessToken returns a usable access token. Tokens expiring within
// the platform refresh leeway are refreshed first; when that refresh fails a
// token that has not expired yet is still returned.
func (m *OAuthManager) GetValidAccessToken(ctx context.Context, adapter Adapter, userID string) (string, error) {
	if adapter == nil {
		return "", fmt.Errorf("%w: nil adapter", ErrAdapterNotRegistered)
	}
	platform := adapter.Platform()

	account, err := m.findActive(ctx, platform, userID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", fmt.Errorf("%w: no active %s account", ErrAccountNotFound, platform.DisplayName())
	}

	now := m.now()
	if !m.needsRefresh(account, now) {
		return m.plainAccessToken(account)
	}

	if !m.RefreshAccessToken(ctx, adapter, platform, userID) {
		if !account.TokenExpired(now) {
			m.logger.Warn("refresh ahead of expiry failed, using current token",
				"platform", platform, "user_id", userID, "expires_at", account.TokenExpiresAt)
			return m.plainAccessToken(account)
		}
		return "", fmt.Errorf("%w: %s token refresh failed", ErrTokenExpired, platform.DisplayName())
	}

	token, ok, err := m.GetAccessToken(ctx, platform, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: refreshed %s token is already expired", ErrTokenExpired, platform.DisplayName())
	}
	return token, nil
}

// RefreshLeeway returns the refresh ahead window used for platform.
func (m *OAuthManager) RefreshLeeway(platform Platform) time.Duration {
	if d, ok := m.leeways[platform]; ok {
		return d
	}
	return m.leeway
}

func (m *OAuthManager) plainAccessToken(account *SocialAccount) (string, error) {
	token, err := m.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return "", fmt.Errorf("decrypt access token: %w", err)
	}
	return token, nil
}

func (m *OAuthManager) needsRefresh(account *SocialAccount, now time.Time) bool {
	if account.TokenExpiresAt == nil {
		return false
	}
	return !account.TokenExpiresAt.After(now.Add(m.RefreshLeeway(account.Platform)))
}

// DisconnectAccount deactivates the account. Tokens are kept.
func (m *OAuthManager) DisconnectAccount(ctx context.Context, accountID string) error {
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return err
	}

	if err := m.accounts.Deactivate(ctx, accountID); err != nil {
		return fmt.Errorf("deactivate social account: %w", err)
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountDisconnected,
		UserID:    account.UserID,
		Platform:  account.Platform,
		AccountID: account.ID,
	})
	return nil
}

// GetActiveAccounts lists the active accounts of the user.
func (m *OAuthManager) GetActiveAccounts(ctx context.Context, userID string) ([]*SocialAccount, error) {
	accounts, err := m.accounts.ListActive(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return []*SocialAccount{}, nil
		}
		return nil, err
	}
	return accounts, nil
}

// IsPlatformConnected reports whether the user has an active account on platform.
func (m *OAuthManager) IsPlatformConnected(ctx context.Context, platform Platform, userID string) (bool, error) {
	account, err := m.findActive(ctx, platform, userID)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}

func (m *OAuthManager) findActive(ctx context.Context, platform Platform, userID string) (*SocialAccount, error) {
	account, err := m.accounts.FindActive(ctx, userID, platform)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func (m *OAuthManager) authFailed(ctx context.Context, platform Platform, userID, stage string, err error) {
	m.logger.Warn("oauth authentication failed",
		"platform", platform, "user_id", userID, "stage", stage, "error", err)

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAuthFailed,
		UserID:    userID,
		Platform:  platform,
		Metadata: map[string]any{
			"stage": stage,
			"error": err.Error(),
		},
	})
}

func (m *OAuthManager) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}
	if err := m.activitySink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink failed", "event", event.EventType, "error", err)
	}
}
