package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "migrations.db") + "?_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMigrateAppliesOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMigrator(openTestDB(t))

	applied, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(schema()), applied)

	applied, err = m.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	for _, status := range statuses {
		assert.True(t, status.Applied(), "migration %d", status.Version)
	}
}

func TestMigrateCreatesSchema(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := NewMigrator(db).Migrate(ctx)
	require.NoError(t, err)

	for _, table := range []any{
		&models.Network{},
		&models.Study{},
		&models.Subject{},
		&models.File{},
		&models.PhoenixFile{},
		&models.VolumeStatistics{},
		&models.PipelineRun{},
	} {
		assert.True(t, db.Migrator().HasTable(table), "%T", table)
	}
}

func TestRollbackRevertsLastMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db)

	_, err := m.Migrate(ctx)
	require.NoError(t, err)

	version, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.False(t, db.Migrator().HasTable(&models.PipelineRun{}))
	assert.True(t, db.Migrator().HasTable(&models.PhoenixFile{}))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Applied())
	assert.False(t, statuses[1].Applied())
}

func TestRollbackWithoutMigrations(t *testing.T) {
	ctx := context.Background()
	m := NewMigrator(openTestDB(t))

	_, err := m.Status(ctx)
	require.NoError(t, err)

	_, err = m.Rollback(ctx)
	require.Error(t, err)
	assert.True(t, ErrNothingApplied.Has(err))
}

func TestPendingAfterRollback(t *testing.T) {
	ctx := context.Background()
	m := NewMigrator(openTestDB(t))

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, len(schema()))

	_, err = m.Migrate(ctx)
	require.NoError(t, err)
	pending, err = m.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = m.Rollback(ctx)
	require.NoError(t, err)
	pending, err = m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	applied, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
}
