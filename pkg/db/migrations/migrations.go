// Package migrations versions the tracker schema.
package migrations

import (
	"context"
	"errors"
	"time"

	"github.com/zeebo/errs"
	"gorm.io/gorm"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

var (
	Error = errs.Class("migration")
	// ErrNothingApplied is returned by Rollback on an empty history.
	ErrNothingApplied = errs.Class("no migration applied")
)

// Migration is one schema version. Up and Down run inside a transaction.
type Migration struct {
	Version     int
	Description string
	Up          func(*gorm.DB) error
	Down        func(*gorm.DB) error
}

type schemaMigration struct {
	Version     int       `gorm:"primaryKey;autoIncrement:false"`
	Description string    `gorm:"type:text"`
	AppliedAt   time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

// Status describes one known migration. AppliedAt is nil while pending.
type Status struct {
	Version     int
	Description string
	AppliedAt   *time.Time
}

func (s Status) Applied() bool {
	return s.AppliedAt != nil
}

type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: schema(),
	}
}

// Migrate applies pending migrations in version order and returns how many
// ran. A failing migration stops the run; earlier ones stay applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, migration := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:     migration.Version,
				Description: migration.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return i, Error.New("version %d (%s): %v", migration.Version, migration.Description, err)
		}
	}

	return len(pending), nil
}

// Pending lists the migrations not yet recorded in the history table.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.history(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; !ok {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	if _, err := m.history(ctx); err != nil {
		return 0, err
	}

	var last schemaMigration
	err := m.db.WithContext(ctx).Order("version DESC").Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNothingApplied.New("")
	}
	if err != nil {
		return 0, Error.Wrap(err)
	}

	migration, ok := m.find(last.Version)
	if !ok {
		return 0, Error.New("version %d is applied but unknown to this build", last.Version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Down(tx); err != nil {
			return err
		}
		return tx.Delete(&last).Error
	})
	if err != nil {
		return 0, Error.New("rollback of version %d: %v", last.Version, err)
	}

	return last.Version, nil
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	applied, err := m.history(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(m.migrations))
	for _, migration := range m.migrations {
		status := Status{
			Version:     migration.Version,
			Description: migration.Description,
		}
		if h, ok := applied[migration.Version]; ok {
			at := h.AppliedAt
			status.AppliedAt = &at
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (m *Migrator) history(ctx context.Context) (map[int]schemaMigration, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return nil, Error.New("history table: %v", err)
	}

	var rows []schemaMigration
	if err := m.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, Error.Wrap(err)
	}

	applied := make(map[int]schemaMigration, len(rows))
	for _, row := range rows {
		applied[row.Version] = row
	}
	return applied, nil
}

func (m *Migrator) find(version int) (Migration, bool) {
	for _, migration := range m.migrations {
		if migration.Version == version {
			return migration, true
		}
	}
	return Migration{}, false
}

// schema returns every migration in version order. Models with relations are
// migrated in one call so gorm resolves their foreign keys together.
func schema() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "registry, file inventory and volume statistics",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(
					&models.Network{},
					&models.Study{},
					&models.Subject{},
					&models.File{},
					&models.PhoenixFile{},
					&models.VolumeStatistics{},
				)
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(
					&models.VolumeStatistics{},
					&models.PhoenixFile{},
					&models.File{},
					&models.Subject{},
					&models.Study{},
					&models.Network{},
				)
			},
		},
		{
			Version:     2,
			Description: "pipeline runs",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(&models.PipelineRun{})
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(&models.PipelineRun{})
			},
		},
	}
}
