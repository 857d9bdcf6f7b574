package services

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"coachReflectAPI/internal/user"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL, which is
// expected to have db/schema.sql applied. Tests that need it are skipped when
// the variable is unset so the pure-logic suites still run everywhere.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(context.Background()))

	t.Cleanup(pool.Close)
	return pool
}

func createTestUser(t *testing.T, svc *UserService) *user.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	u, err := svc.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:  "user_test_" + suffix,
		Email:    "test_" + suffix + "@example.com",
		Username: "tester_" + suffix,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = svc.DeleteUserByClerkID(context.Background(), u.ClerkID)
	})
	return u
}
