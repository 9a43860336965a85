package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Manager exposes all repositories
type Manager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() *SocialAccountRepository
	OAuthConfigs() *OAuthConfigRepository
	States() *OAuthStateStore
}

type mngr struct {
	db           *bun.DB
	accounts     *SocialAccountRepository
	oauthConfigs *OAuthConfigRepository
	states       *OAuthStateStore
}

// NewManager wires every repository on db.
func NewManager(db *bun.DB) Manager {
	return &mngr{
		db:           db,
		accounts:     NewSocialAccountRepository(db),
		oauthConfigs: NewOAuthConfigRepository(db),
		states:       NewOAuthStateStore(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.oauthConfigs == nil {
		return errors.New("repository oauthConfigs should be initialized")
	}

	if m.states == nil {
		return errors.New("repository states should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() *SocialAccountRepository {
	return m.accounts
}

func (m mngr) OAuthConfigs() *OAuthConfigRepository {
	return m.oauthConfigs
}

func (m mngr) States() *OAuthStateStore {
	return m.states
}
