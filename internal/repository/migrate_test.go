package repository

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMigrator struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	closeErr   error
}

func (s *stubMigrator) Up() error   { return s.upErr }
func (s *stubMigrator) Down() error { return s.downErr }
func (s *stubMigrator) Version() (uint, bool, error) {
	return s.version, s.dirty, s.versionErr
}
func (s *stubMigrator) Close() (error, error) { return nil, s.closeErr }

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"postgres://u:p@localhost:5432/portal":   "pgx5://u:p@localhost:5432/portal",
		"postgresql://u:p@localhost:5432/portal": "pgx5://u:p@localhost:5432/portal",
		"pgx5://u:p@localhost:5432/portal":       "pgx5://u:p@localhost:5432/portal",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestMigrator_NoChangeIsNotAnError(t *testing.T) {
	t.Parallel()

	m := &Migrator{m: &stubMigrator{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
}

func TestMigrator_UpFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("syntax error at or near")
	m := &Migrator{m: &stubMigrator{upErr: boom}}

	err := m.Up()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestMigrator_Version(t *testing.T) {
	t.Parallel()

	m := &Migrator{m: &stubMigrator{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{m: &stubMigrator{version: 2, dirty: true}}
	v, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/000001_users.up.sql",
		"migrations/000001_users.down.sql",
		"migrations/000002_integrations.up.sql",
		"migrations/000002_integrations.down.sql",
	}, files)
}
