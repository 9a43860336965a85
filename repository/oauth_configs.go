package repository

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewOAuthConfigModelRepository returns the generic repository for OAuth
// configurations, identified by platform.
func NewOAuthConfigModelRepository(db *bun.DB) repository.Repository[*OAuthConfigModel] {
	handlers := repository.ModelHandlers[*OAuthConfigModel]{
		NewRecord: func() *OAuthConfigModel {
			return &OAuthConfigModel{}
		},
		GetID: func(record *OAuthConfigModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *OAuthConfigModel, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "platform"
		},
	}
	return repository.NewRepository(db, handlers)
}

// OAuthConfigRepository implements social.OAuthConfigRepository.
type OAuthConfigRepository struct {
	repository.Repository[*OAuthConfigModel]
	db  *bun.DB
	now func() time.Time
}

var _ social.OAuthConfigRepository = (*OAuthConfigRepository)(nil)

// NewOAuthConfigRepository creates a new repository.
func NewOAuthConfigRepository(db *bun.DB) *OAuthConfigRepository {
	return &OAuthConfigRepository{
		Repository: NewOAuthConfigModelRepository(db),
		db:         db,
		now:        time.Now,
	}
}

// FindActive implements social.OAuthConfigRepository.
func (r *OAuthConfigRepository) FindActive(ctx context.Context, platform social.Platform) (*social.OAuthConfig, error) {
	record, err := r.Repository.GetByIdentifier(ctx, string(platform))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{"platform": string(platform)})
		}
		return nil, err
	}
	if record == nil || !record.IsActive {
		return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
			"platform": string(platform),
			"active":   false,
		})
	}
	return record.toDomain(), nil
}

// Upsert implements social.OAuthConfigRepository. There is at most one row
// per platform; saving reactivates it.
func (r *OAuthConfigRepository) Upsert(ctx context.Context, cfg *social.OAuthConfig) error {
	if cfg == nil {
		return errors.New("oauth config is required")
	}

	now := r.now()
	model := &OAuthConfigModel{
		Platform:     string(cfg.Platform),
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		IsActive:     true,
		CreatedAt:    cfg.CreatedAt,
		UpdatedAt:    cfg.UpdatedAt,
	}
	if id, err := uuid.Parse(cfg.ID); err == nil {
		model.ID = id
	} else {
		model.ID = uuid.New()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = now
	}

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (platform) DO UPDATE").
		Set("client_id = EXCLUDED.client_id").
		Set("client_secret = EXCLUDED.client_secret").
		Set("is_active = ?", true).
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Deactivate implements social.OAuthConfigRepository.
func (r *OAuthConfigRepository) Deactivate(ctx context.Context, platform social.Platform) error {
	res, err := r.db.NewUpdate().
		Model((*OAuthConfigModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", r.now()).
		Where("platform = ?", string(platform)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{"platform": string(platform)})
	}
	return nil
}

// List implements social.OAuthConfigRepository. Inactive configurations are included.
func (r *OAuthConfigRepository) List(ctx context.Context) ([]*social.OAuthConfig, error) {
	var models []OAuthConfigModel
	if err := r.db.NewSelect().
		Model(&models).
		OrderExpr("?TableAlias.platform ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]*social.OAuthConfig, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}
