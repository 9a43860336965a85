package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social"
	"github.com/uptrace/bun"
)

// SocialAccountRepository implements social.AccountRepository using Bun.
type SocialAccountRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ social.AccountRepository = (*SocialAccountRepository)(nil)

// NewSocialAccountRepository creates a new repository.
func NewSocialAccountRepository(db *bun.DB) *SocialAccountRepository {
	return &SocialAccountRepository{db: db, now: time.Now}
}

// Upsert implements social.AccountRepository.
func (r *SocialAccountRepository) Upsert(ctx context.Context, account *social.SocialAccount) error {
	return r.UpsertTx(ctx, r.db, account)
}

// UpsertTx inserts or updates by (user_id, platform, platform_id) in one
// statement. A nil refresh token leaves the stored one untouched.
func (r *SocialAccountRepository) UpsertTx(ctx context.Context, tx bun.IDB, account *social.SocialAccount) error {
	if account == nil {
		return errors.New("social account is required")
	}
	model := socialAccountModel(account, r.now())

	q := tx.NewInsert().
		Model(model).
		On("CONFLICT (user_id, platform, platform_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("handle = EXCLUDED.handle").
		Set("picture = EXCLUDED.picture").
		Set("access_token = EXCLUDED.access_token").
		Set("token_expires_at = EXCLUDED.token_expires_at").
		Set("is_active = ?", true).
		Set("last_error = NULL").
		Set("last_error_at = NULL").
		Set("retry_count = 0").
		Set("updated_at = EXCLUDED.updated_at")
	if model.RefreshToken != nil {
		q = q.Set("refresh_token = EXCLUDED.refresh_token")
	}

	_, err := q.Exec(ctx)
	return err
}

// FindByID implements social.AccountRepository.
func (r *SocialAccountRepository) FindByID(ctx context.Context, id string) (*social.SocialAccount, error) {
	var model SocialAccountModel
	err := r.db.NewSelect().
		Model(&model).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, map[string]any{"id": id})
	}
	return model.toDomain(), nil
}

// FindActive implements social.AccountRepository. The most recently updated
// active account wins.
func (r *SocialAccountRepository) FindActive(ctx context.Context, userID string, platform social.Platform) (*social.SocialAccount, error) {
	var model SocialAccountModel
	err := r.db.NewSelect().
		Model(&model).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.platform = ?", string(platform)).
		Where("?TableAlias.is_active = ?", true).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, map[string]any{
			"user_id":  userID,
			"platform": string(platform),
		})
	}
	return model.toDomain(), nil
}

// ListActive implements social.AccountRepository.
func (r *SocialAccountRepository) ListActive(ctx context.Context, userID string) ([]*social.SocialAccount, error) {
	var models []SocialAccountModel
	err := r.db.NewSelect().
		Model(&models).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.is_active = ?", true).
		OrderExpr("?TableAlias.platform ASC, ?TableAlias.updated_at DESC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*social.SocialAccount{}, nil
		}
		return nil, err
	}

	accounts := make([]*social.SocialAccount, len(models))
	for i := range models {
		accounts[i] = models[i].toDomain()
	}
	return accounts, nil
}

// RecordFailure implements social.AccountRepository with a single UPDATE so
// concurrent failures never lose an increment.
func (r *SocialAccountRepository) RecordFailure(ctx context.Context, userID string, platform social.Platform, message string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*SocialAccountModel)(nil)).
		Set("last_error = ?", message).
		Set("last_error_at = ?", at).
		Set("retry_count = retry_count + 1").
		Set("updated_at = ?", at).
		Where("user_id = ?", userID).
		Where("platform = ?", string(platform)).
		Exec(ctx)
	return err
}

// Deactivate implements social.AccountRepository. Tokens are kept.
func (r *SocialAccountRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().
		Model((*SocialAccountModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", r.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{"id": id})
	}
	return nil
}

func notFound(err error, meta map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.NewRecordNotFound().WithMetadata(meta)
	}
	return err
}
