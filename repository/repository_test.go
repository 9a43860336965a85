package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	client, err := NewPersistence(db, sqlitedialect.New(), OpenOptions{Driver: DriverSQLite})
	require.NoError(t, err)
	bunDB := client.DB()

	group, err := Migrate(context.Background(), client)
	require.NoError(t, err)
	require.False(t, group.IsZero())

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}
	return bunDB, cleanup
}

func strPtr(s string) *string { return &s }

func testAccount(id, token string, refresh *string) *social.SocialAccount {
	return &social.SocialAccount{
		ID:           id,
		UserID:       "user-1",
		Platform:     social.PlatformTwitter,
		PlatformID:   "tw-1",
		Name:         "Jane",
		Handle:       "jane",
		AccessToken:  token,
		RefreshToken: refresh,
		IsActive:     true,
	}
}

func TestSocialAccountUpsertInsertsThenUpdates(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	repo := NewSocialAccountRepository(db)
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour).UTC()

	account := testAccount("acc-1", "enc-access-1", strPtr("enc-refresh-1"))
	account.TokenExpiresAt = &expiresAt
	require.NoError(t, repo.Upsert(ctx, account))

	found, err := repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "enc-access-1", found.AccessToken)
	require.NotNil(t, found.RefreshToken)
	assert.Equal(t, "enc-refresh-1", *found.RefreshToken)
	require.NotNil(t, found.TokenExpiresAt)
	assert.WithinDuration(t, expiresAt, *found.TokenExpiresAt, time.Second)
	assert.True(t, found.IsActive)

	update := testAccount("acc-1", "enc-access-2", nil)
	update.Name = "Jane Doe"
	require.NoError(t, repo.Upsert(ctx, update))

	found, err = repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "enc-access-2", found.AccessToken)
	assert.Equal(t, "Jane Doe", found.Name)
	require.NotNil(t, found.RefreshToken)
	assert.Equal(t, "enc-refresh-1", *found.RefreshToken)
	assert.Nil(t, found.TokenExpiresAt)

	count, err := db.NewSelect().Model((*SocialAccountModel)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSocialAccountUpsertResetsFailureAndReactivates(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	repo := NewSocialAccountRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testAccount("acc-1", "a", strPtr("r"))))
	require.NoError(t, repo.RecordFailure(ctx, "user-1", social.PlatformTwitter, "invalid_grant", time.Now()))
	require.NoError(t, repo.RecordFailure(ctx, "user-1", social.PlatformTwitter, "invalid_grant", time.Now()))
	require.NoError(t, repo.Deactivate(ctx, "acc-1"))

	found, err := repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
	assert.Equal(t, 2, found.RetryCount)
	require.NotNil(t, found.LastError)
	assert.Equal(t, "invalid_grant", *found.LastError)
	assert.NotNil(t, found.LastErrorAt)
	assert.Equal(t, "a", found.AccessToken)

	require.NoError(t, repo.Upsert(ctx, testAccount("acc-1", "b", nil)))

	found, err = repo.FindByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, found.IsActive)
	assert.Equal(t, 0, found.RetryCount)
	assert.Nil(t, found.LastError)
	assert.Nil(t, found.LastErrorAt)
}

func TestSocialAccountConcurrentUpsertKeepsOneRow(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	repo := NewSocialAccountRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Upsert(ctx, testAccount("acc-1", "token", nil))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	count, err := db.NewSelect().Model((*SocialAccountModel)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSocialAccountFindActiveAndList(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	repo := NewSocialAccountRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testAccount("acc-1", "a", nil)))

	reddit := testAccount("acc-2", "b", nil)
	reddit.Platform = social.PlatformReddit
	reddit.PlatformID = "rd-1"
	require.NoError(t, repo.Upsert(ctx, reddit))

	active, err := repo.FindActive(ctx, "user-1", social.PlatformReddit)
	require.NoError(t, err)
	assert.Equal(t, "acc-2", active.ID)

	accounts, err := repo.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, social.PlatformReddit, accounts[0].Platform)

	require.NoError(t, repo.Deactivate(ctx, "acc-2"))

	_, err = repo.FindActive(ctx, "user-1", social.PlatformReddit)
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))

	accounts, err = repo.ListActive(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSocialAccountNotFound(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	repo := NewSocialAccountRepository(db)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "missing")
	assert.True(t, repository.IsRecordNotFound(err))

	err = repo.Deactivate(ctx, "missing")
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestOAuthConfigRepository(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	repo := NewOAuthConfigRepository(db)
	ctx := context.Background()

	_, err := repo.FindActive(ctx, social.PlatformLinkedIn)
	assert.True(t, repository.IsRecordNotFound(err))

	require.NoError(t, repo.Upsert(ctx, &social.OAuthConfig{
		Platform:     social.PlatformLinkedIn,
		ClientID:     "enc-id-1",
		ClientSecret: "enc-secret-1",
	}))
	require.NoError(t, repo.Upsert(ctx, &social.OAuthConfig{
		Platform:     social.PlatformLinkedIn,
		ClientID:     "enc-id-2",
		ClientSecret: "enc-secret-2",
	}))

	cfg, err := repo.FindActive(ctx, social.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "enc-id-2", cfg.ClientID)
	assert.Equal(t, "enc-secret-2", cfg.ClientSecret)
	assert.True(t, cfg.IsActive)

	require.NoError(t, repo.Deactivate(ctx, social.PlatformLinkedIn))
	_, err = repo.FindActive(ctx, social.PlatformLinkedIn)
	assert.True(t, repository.IsRecordNotFound(err))

	configs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.False(t, configs[0].IsActive)

	assert.True(t, repository.IsRecordNotFound(repo.Deactivate(ctx, social.PlatformReddit)))
}

func TestOAuthStateStoreConsumeOnce(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	store := NewOAuthStateStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, &social.OAuthState{
		State:        "state-1",
		Platform:     social.PlatformTwitter,
		UserID:       "user-1",
		RedirectURI:  "https://app.example/callback",
		CodeVerifier: "verifier",
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}))

	got, err := store.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, social.PlatformTwitter, got.Platform)
	assert.Equal(t, "verifier", got.CodeVerifier)
	assert.WithinDuration(t, now.Add(10*time.Minute), got.ExpiresAt, time.Second)

	_, err = store.Consume(ctx, "state-1")
	assert.True(t, errors.Is(err, social.ErrInvalidState))

	_, err = store.Consume(ctx, "unknown")
	assert.True(t, errors.Is(err, social.ErrInvalidState))
}

func TestOAuthStateStoreDeleteExpired(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	store := NewOAuthStateStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "old", Platform: social.PlatformReddit, UserID: "u", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "new", Platform: social.PlatformReddit, UserID: "u", ExpiresAt: now.Add(time.Minute)}))

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Consume(ctx, "new")
	assert.NoError(t, err)
}

func TestOAuthStateStoreSaveSweepsExpired(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	now := time.Now().UTC()
	clock := func() time.Time { return now }
	store := NewOAuthStateStore(db, WithStateClock(clock), WithSweepInterval(time.Minute))
	ctx := context.Background()

	countStates := func() int {
		n, err := db.NewSelect().Model((*OAuthStateModel)(nil)).Count(ctx)
		require.NoError(t, err)
		return n
	}

	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "a", Platform: social.PlatformTwitter, UserID: "u", ExpiresAt: now.Add(30 * time.Second)}))
	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "b", Platform: social.PlatformTwitter, UserID: "u", ExpiresAt: now.Add(10 * time.Minute)}))
	assert.Equal(t, 2, countStates())

	now = now.Add(45 * time.Second)
	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "c", Platform: social.PlatformTwitter, UserID: "u", ExpiresAt: now.Add(10 * time.Minute)}))
	assert.Equal(t, 3, countStates(), "sweep waits for the interval")

	now = now.Add(30 * time.Second)
	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "d", Platform: social.PlatformTwitter, UserID: "u", ExpiresAt: now.Add(10 * time.Minute)}))
	assert.Equal(t, 3, countStates())

	_, err := store.Consume(ctx, "a")
	assert.True(t, errors.Is(err, social.ErrInvalidState))
	_, err = store.Consume(ctx, "b")
	assert.NoError(t, err)
}

func TestOAuthStateStoreSweepDisabled(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	now := time.Now().UTC()
	store := NewOAuthStateStore(db, WithStateClock(func() time.Time { return now }), WithSweepInterval(0))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "old", Platform: social.PlatformTwitter, UserID: "u", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.Save(ctx, &social.OAuthState{State: "new", Platform: social.PlatformTwitter, UserID: "u", ExpiresAt: now.Add(time.Hour)}))

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOAuthManagerWithBunRepositories(t *testing.T) {
	db, cleanup := setupDB(t)
	defer cleanup()

	mgr := NewManager(db)
	require.NoError(t, mgr.Validate())

	ctx := context.Background()
	manager := social.NewOAuthManager(mgr.Accounts(), mgr.States(), plainCipher{}, social.WithManagerLogger(social.NopLogger()))

	id, err := manager.SaveAccount(ctx, social.PlatformLinkedIn, &social.TokenDetails{
		AccessToken: "access",
		ExpiresIn:   3600,
		PlatformID:  "li-1",
		Name:        "Jane",
	}, "user-1")
	require.NoError(t, err)

	token, ok, err := manager.GetAccessToken(ctx, social.PlatformLinkedIn, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "access", token)

	require.NoError(t, manager.DisconnectAccount(ctx, id))
	connected, err := manager.IsPlatformConnected(ctx, social.PlatformLinkedIn, "user-1")
	require.NoError(t, err)
	assert.False(t, connected)

	err = mgr.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return mgr.Accounts().UpsertTx(ctx, tx, testAccount("acc-tx", "a", nil))
	})
	require.NoError(t, err)
}

type plainCipher struct{}

func (plainCipher) Encrypt(s string) (string, error) { return s, nil }
func (plainCipher) Decrypt(s string) (string, error) { return s, nil }

func TestNormalizeDriver(t *testing.T) {
	cases := map[string]string{
		"":           DriverSQLite,
		"sqlite3":    DriverSQLite,
		"SQLite":     DriverSQLite,
		"pgx":        DriverPostgres,
		"postgresql": DriverPostgres,
	}
	for in, want := range cases {
		got, err := NormalizeDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeDriver("mysql")
	assert.Error(t, err)
}

func TestPersistenceConfigGetters(t *testing.T) {
	cfg := persistenceConfig{opts: OpenOptions{Driver: "pgx", DSN: "postgres://db/social", Debug: true}}
	assert.Equal(t, DriverPostgres, cfg.GetDriver())
	assert.Equal(t, "postgres://db/social", cfg.GetServer())
	assert.False(t, cfg.GetDebug())
	assert.Equal(t, DefaultPingTimeout, cfg.GetPingTimeout())

	cfg.opts.PingTimeout = time.Second
	assert.Equal(t, time.Second, cfg.GetPingTimeout())
}

func TestOpenMigratesFileDatabase(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "social.db")
	client, err := Open(OpenOptions{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	defer client.DB().Close()

	ctx := context.Background()
	group, err := Migrate(ctx, client)
	require.NoError(t, err)
	assert.False(t, group.IsZero())

	mgr := NewManager(client.DB())
	require.NoError(t, mgr.Validate())
	require.NoError(t, mgr.States().Save(ctx, &social.OAuthState{
		State:     "s",
		Platform:  social.PlatformTwitter,
		UserID:    "u",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	_, err = Open(OpenOptions{Driver: "mysql"})
	assert.Error(t, err)
}
