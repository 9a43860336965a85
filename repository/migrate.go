package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the SQL migrations of the social tables.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate validates the registered migrations against every target dialect,
// applies the pending ones and returns the applied group.
func Migrate(ctx context.Context, client *persistence.Client) (*migrate.MigrationGroup, error) {
	if err := client.ValidateDialects(ctx); err != nil {
		return nil, fmt.Errorf("validate migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return report(client), nil
}

// Rollback reverts the last applied migration group.
func Rollback(ctx context.Context, client *persistence.Client) (*migrate.MigrationGroup, error) {
	if err := client.Rollback(ctx); err != nil {
		return nil, fmt.Errorf("rollback migrations: %w", err)
	}
	return report(client), nil
}

func report(client *persistence.Client) *migrate.MigrationGroup {
	if group := client.Report(); group != nil {
		return group
	}
	return &migrate.MigrationGroup{}
}
