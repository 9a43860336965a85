package social

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStateTTL bounds the time between GenerateAuthURL and the callback.
const DefaultStateTTL = 10 * time.Minute

// OAuthState is the server side record bound to an issued state token.
type OAuthState struct {
	State        string    `json:"state"`
	Platform     Platform  `json:"platform"`
	UserID       string    `json:"user_id"`
	RedirectURI  string    `json:"redirect_uri"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the state is past its expiry at now.
func (s *OAuthState) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.After(now)
}

// NewStateToken returns an opaque random token of 32 lowercase hex characters.
func NewStateToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MemoryStateStore is a process local StateStore.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]*OAuthState
	now    func() time.Time
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: map[string]*OAuthState{},
		now:    time.Now,
	}
}

// Save implements StateStore.
func (m *MemoryStateStore) Save(ctx context.Context, state *OAuthState) error {
	if state == nil || state.State == "" {
		return ErrInvalidState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, v := range m.states {
		if v.Expired(now) {
			delete(m.states, k)
		}
	}

	cp := *state
	m.states[state.State] = &cp
	return nil
}

// Consume implements StateStore.
func (m *MemoryStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[state]
	if !ok {
		return nil, ErrInvalidState
	}
	delete(m.states, state)
	return s, nil
}
