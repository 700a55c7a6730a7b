package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/models"
	"github.com/go-authgate/ssocenter/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func getTestConfig() *config.Config {
	return &config.Config{
		BaseURL:              "http://localhost:8080",
		DefaultAdminPassword: "admin-password",
	}
}

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]
		ctx := context.Background()

		createDBCmd := fmt.Sprintf("CREATE DATABASE %s", dbName)
		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", createDBCmd},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			dropDBCmd := fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", dropDBCmd},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	s, err := New(context.Background(), driver, dsn, getTestConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestToken(plaintext string, kind models.TokenKind, expiresIn time.Duration) *models.Token {
	now := time.Now()
	return &models.Token{
		ID:        uuid.New().String(),
		TokenHash: util.SHA256Hex(plaintext),
		Kind:      kind,
		UserID:    42,
		ClientID:  "c1",
		Scope:     "default",
		IssuedAt:  now,
		ExpiresAt: now.Add(expiresIn),
	}
}

func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	t.Run("SeedData", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		admin, err := s.GetUserByUsername(ctx, "admin")
		require.NoError(t, err)
		ok, err := util.VerifySecret(admin.PasswordHash, "admin-password")
		require.NoError(t, err)
		assert.True(t, ok)

		roles, err := s.GetUserRoles(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"admin"}, roles)

		var clientCount int64
		require.NoError(t, s.DB().Model(&models.Client{}).Count(&clientCount).Error)
		assert.Equal(t, int64(1), clientCount)
	})

	t.Run("CreateAndGetToken", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		token := newTestToken("code1", models.TokenKindAuthorizationCode, 5*time.Minute)
		require.NoError(t, s.CreateToken(ctx, token))

		got, err := s.GetTokenByHash(ctx, util.SHA256Hex("code1"))
		require.NoError(t, err)
		assert.Equal(t, token.ID, got.ID)
		assert.Equal(t, models.TokenKindAuthorizationCode, got.Kind)
		assert.Equal(t, int64(42), got.UserID)
		assert.False(t, got.Revoked)
		assert.Nil(t, got.RevokedAt)

		_, err = s.GetTokenByHash(ctx, util.SHA256Hex("missing"))
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("TokenHashIsUnique", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		require.NoError(t, s.CreateToken(ctx, newTestToken("dup", models.TokenKindAccess, time.Hour)))
		assert.Error(t, s.CreateToken(ctx, newTestToken("dup", models.TokenKindAccess, time.Hour)))
	})

	t.Run("ConsumeAndIssue", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		code := newTestToken("code1", models.TokenKindAuthorizationCode, 5*time.Minute)
		require.NoError(t, s.CreateToken(ctx, code))

		access := newTestToken("access1", models.TokenKindAccess, time.Hour)
		refresh := newTestToken("refresh1", models.TokenKindRefresh, 720*time.Hour)
		now := time.Now()
		require.NoError(t, s.ConsumeAndIssue(ctx, code.TokenHash, models.TokenKindAuthorizationCode, now,
			access, refresh))

		consumed, err := s.GetTokenByHash(ctx, code.TokenHash)
		require.NoError(t, err)
		assert.True(t, consumed.Revoked)
		require.NotNil(t, consumed.RevokedAt)

		_, err = s.GetTokenByHash(ctx, access.TokenHash)
		require.NoError(t, err)
		_, err = s.GetTokenByHash(ctx, refresh.TokenHash)
		require.NoError(t, err)

		// Second consumption observes zero affected rows
		err = s.ConsumeAndIssue(ctx, code.TokenHash, models.TokenKindAuthorizationCode, now,
			newTestToken("access2", models.TokenKindAccess, time.Hour))
		require.ErrorIs(t, err, ErrTokenAlreadyRevoked)
		_, err = s.GetTokenByHash(ctx, util.SHA256Hex("access2"))
		assert.ErrorIs(t, err, ErrRecordNotFound, "nothing is minted when the revoke loses")
	})

	t.Run("ConsumeAndIssueRequiresKind", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		access := newTestToken("access1", models.TokenKindAccess, time.Hour)
		require.NoError(t, s.CreateToken(ctx, access))

		err := s.ConsumeAndIssue(ctx, access.TokenHash, models.TokenKindRefresh, time.Now())
		require.ErrorIs(t, err, ErrTokenAlreadyRevoked)

		got, err := s.GetTokenByHash(ctx, access.TokenHash)
		require.NoError(t, err)
		assert.False(t, got.Revoked)
	})

	t.Run("ConsumeAndIssueRollsBackOnInsertFailure", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		code := newTestToken("code1", models.TokenKindAuthorizationCode, 5*time.Minute)
		require.NoError(t, s.CreateToken(ctx, code))
		existing := newTestToken("taken", models.TokenKindAccess, time.Hour)
		require.NoError(t, s.CreateToken(ctx, existing))

		// Colliding hash makes the insert fail inside the transaction
		err := s.ConsumeAndIssue(ctx, code.TokenHash, models.TokenKindAuthorizationCode, time.Now(),
			newTestToken("taken", models.TokenKindAccess, time.Hour))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrTokenAlreadyRevoked))

		got, err := s.GetTokenByHash(ctx, code.TokenHash)
		require.NoError(t, err)
		assert.False(t, got.Revoked, "revoke must roll back with the failed insert")
	})

	t.Run("ConcurrentConsumeExactlyOnce", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		code := newTestToken("race", models.TokenKindAuthorizationCode, 5*time.Minute)
		require.NoError(t, s.CreateToken(ctx, code))

		const workers = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.ConsumeAndIssue(ctx, code.TokenHash, models.TokenKindAuthorizationCode, time.Now(),
					newTestToken(fmt.Sprintf("access-%d", i), models.TokenKindAccess, time.Hour))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrTokenAlreadyRevoked):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, conflicts)
	})

	t.Run("RevokeTokenIsIdempotent", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		token := newTestToken("access1", models.TokenKindAccess, time.Hour)
		require.NoError(t, s.CreateToken(ctx, token))

		first := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
		found, err := s.RevokeToken(ctx, token.TokenHash, first)
		require.NoError(t, err)
		assert.True(t, found)

		found, err = s.RevokeToken(ctx, token.TokenHash, time.Now())
		require.NoError(t, err)
		assert.True(t, found)

		got, err := s.GetTokenByHash(ctx, token.TokenHash)
		require.NoError(t, err)
		assert.True(t, got.Revoked)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, got.RevokedAt.Equal(first), "revoked_at keeps its first value")

		found, err = s.RevokeToken(ctx, util.SHA256Hex("unknown"), time.Now())
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Clients", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		client := &models.Client{
			ClientID:     "c1",
			ClientSecret: "hash",
			ClientName:   "App",
			RedirectURI:  "https://app/cb",
			IsActive:     true,
		}
		require.NoError(t, s.CreateClient(ctx, client))

		got, err := s.GetClient(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "https://app/cb", got.RedirectURI)

		_, err = s.GetClient(ctx, "nope")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("UsersAndRoles", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		ctx := context.Background()

		user := &models.User{
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "x",
			IsActive:     true,
		}
		require.NoError(t, s.CreateUser(ctx, user))
		assert.NotZero(t, user.ID)

		err := s.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com"})
		assert.ErrorIs(t, err, ErrUsernameConflict)

		require.NoError(t, s.AssignRole(ctx, user.ID, "viewer"))
		require.NoError(t, s.AssignRole(ctx, user.ID, "editor"))
		require.NoError(t, s.AssignRole(ctx, user.ID, "editor"))

		roles, err := s.GetUserRoles(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"editor", "viewer"}, roles)

		// Inactive roles are not reported
		require.NoError(t, s.DB().Model(&models.Role{}).
			Where("name = ?", "viewer").Update("is_active", false).Error)
		roles, err = s.GetUserRoles(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"editor"}, roles)

		got, err := s.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)

		_, err = s.GetUserByID(ctx, 99999)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("Health", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		assert.NoError(t, s.Health(context.Background()))
	})
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), "mysql", "dsn", getTestConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver: mysql")
}
