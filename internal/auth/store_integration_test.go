//go:build integration

package auth

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"authflow/internal/database"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("authflow_test"),
		postgres.WithUsername("authflow"),
		postgres.WithPassword("authflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := database.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func truncate(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE users, password_resets`)
	require.NoError(t, err)
}

func TestCredentialStore_UserLifecycle(t *testing.T) {
	truncate(t)
	store := NewCredentialStore(testPool)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, NewUser{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", PasswordHash: "h1"})
	require.NoError(t, err)
	assert.False(t, u.EmailVerified)

	_, err = store.CreateUser(ctx, NewUser{Email: "ada@example.com", FirstName: "A", LastName: "L", PasswordHash: "h2"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := store.FindUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := store.FindUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	changed, err := store.SetEmailVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.SetEmailVerified(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	gone, err := store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestCredentialStore_ResetIsSingleUse(t *testing.T) {
	truncate(t)
	store := NewCredentialStore(testPool)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, NewUser{Email: "r@example.com", FirstName: "R", LastName: "S", PasswordHash: "old"})
	require.NoError(t, err)

	_, err = store.ReplacePasswordReset(ctx, "r@example.com", "first")
	require.NoError(t, err)
	_, err = store.ReplacePasswordReset(ctx, "r@example.com", "second")
	require.NoError(t, err)

	stale, err := store.FindPasswordReset(ctx, "r@example.com", "first")
	require.NoError(t, err)
	assert.Nil(t, stale, "a newer request replaces the older one")

	// concurrent submissions of the same link: exactly one wins
	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.ConsumePasswordReset(ctx, "r@example.com", "second", "new")
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	u, err := store.FindUserByEmail(ctx, "r@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", u.PasswordHash)
}
