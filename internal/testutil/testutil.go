// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/partnerportal/portal/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// TruncateTables empties the named tables. The schema must already exist.
func TruncateTables(ctx context.Context, pool *pgxpool.Pool, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}

	quoted := make([]string, len(tables))
	for i, table := range tables {
		quoted[i] = pgx.Identifier{table}.Sanitize()
	}

	if _, err := pool.Exec(ctx, "TRUNCATE "+strings.Join(quoted, ", ")+" CASCADE"); err != nil {
		return fmt.Errorf("truncate %s: %w", strings.Join(tables, ", "), err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var sequence atomic.Uint64

// UniqueID generates a unique ID for tests.
func UniqueID() string {
	return ulid.Make().String()
}

// UniqueEmail generates a unique address under example.com.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@example.com", prefix, time.Now().UnixNano(), sequence.Add(1))
}

// UniqueString generates a unique normalized integration label.
func UniqueString(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%1e9, sequence.Add(1))
}

// NewTestUser creates an active test user. The password hash is a
// placeholder, not a verifiable digest.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.User{
		ID:           UniqueID(),
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$placeholder$placeholder",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestIntegration creates a test integration owned by ownerID with
// default fee and rate.
func NewTestIntegration(t testing.TB, ownerID, str string) *model.Integration {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Integration{
		ID:        UniqueID(),
		String:    str,
		APIKey:    "ppk_" + strings.ToLower(UniqueID()),
		Fee:       model.DefaultIntegrationFee,
		RPM:       model.DefaultIntegrationRPM,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
