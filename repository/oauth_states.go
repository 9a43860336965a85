package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-social"
	"github.com/uptrace/bun"
)

// DefaultStateSweepInterval is how often Save removes expired states.
const DefaultStateSweepInterval = time.Minute

// OAuthStateStore implements social.StateStore on a database table so any
// node can complete a flow started on another.
type OAuthStateStore struct {
	db  *bun.DB
	now func() time.Time

	sweepEvery time.Duration
	mu         sync.Mutex
	lastSweep  time.Time
}

var _ social.StateStore = (*OAuthStateStore)(nil)

// StateStoreOption configures an OAuthStateStore.
type StateStoreOption func(*OAuthStateStore)

// WithSweepInterval sets how often Save deletes expired rows. Zero disables
// the sweep.
func WithSweepInterval(d time.Duration) StateStoreOption {
	return func(s *OAuthStateStore) {
		s.sweepEvery = d
	}
}

// WithStateClock overrides the clock used for expiry.
func WithStateClock(now func() time.Time) StateStoreOption {
	return func(s *OAuthStateStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewOAuthStateStore creates a new store.
func NewOAuthStateStore(db *bun.DB, opts ...StateStoreOption) *OAuthStateStore {
	s := &OAuthStateStore{db: db, now: time.Now, sweepEvery: DefaultStateSweepInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements social.StateStore.
func (s *OAuthStateStore) Save(ctx context.Context, state *social.OAuthState) error {
	if state == nil || state.State == "" {
		return social.ErrInvalidState
	}

	model := &OAuthStateModel{
		State:        state.State,
		Platform:     string(state.Platform),
		UserID:       state.UserID,
		RedirectURI:  state.RedirectURI,
		CodeVerifier: state.CodeVerifier,
		CreatedAt:    state.CreatedAt,
		ExpiresAt:    state.ExpiresAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = s.now()
	}

	if err := s.sweep(ctx); err != nil {
		return err
	}

	_, err := s.db.NewInsert().Model(model).Exec(ctx)
	return err
}

// sweep runs DeleteExpired at most once per sweep interval.
func (s *OAuthStateStore) sweep(ctx context.Context) error {
	if s.sweepEvery <= 0 {
		return nil
	}

	now := s.now()
	s.mu.Lock()
	if !s.lastSweep.IsZero() && now.Sub(s.lastSweep) < s.sweepEvery {
		s.mu.Unlock()
		return nil
	}
	s.lastSweep = now
	s.mu.Unlock()

	if _, err := s.DeleteExpired(ctx); err != nil {
		return fmt.Errorf("sweep expired states: %w", err)
	}
	return nil
}

// Consume implements social.StateStore. The select and delete share a
// transaction and the delete must remove the row, so a state is handed out
// at most once.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (*social.OAuthState, error) {
	var out *social.OAuthState

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var model OAuthStateModel
		if err := tx.NewSelect().
			Model(&model).
			Where("?TableAlias.state = ?", state).
			Limit(1).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return social.ErrInvalidState
			}
			return err
		}

		res, err := tx.NewDelete().
			Model((*OAuthStateModel)(nil)).
			Where("state = ?", state).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return social.ErrInvalidState
		}

		out = model.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteExpired removes states that expired before now and returns how many were removed.
func (s *OAuthStateStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*OAuthStateModel)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
