package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *gorm.DB) error
}

// MigrationError reports a schema change that could not be applied. The store
// may be partially migrated, so callers must not retry blindly.
type MigrationError struct {
	Version     int
	Description string
	Err         error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s): %v", e.Version, e.Description, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// schemaMigration is a row of the schema_migrations bookkeeping table.
type schemaMigration struct {
	Version     int       `gorm:"primaryKey;autoIncrement:false"`
	Description string    `gorm:"size:200;not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

// AppliedMigration describes a migration already recorded in the store.
type AppliedMigration struct {
	Version     int
	Description string
	AppliedAt   time.Time
}

// equipmentV1 freezes the equipment layout as created by migration 1 so later
// changes to model.Equipment cannot alter what this migration does.
type equipmentV1 struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	TagNumber   string     `gorm:"size:50;not null;uniqueIndex:idx_equipment_tag_number"`
	Name        string     `gorm:"size:200;not null"`
	Type        string     `gorm:"size:100;not null;index:idx_equipment_type"`
	Status      string     `gorm:"size:50;not null;default:Operating;index:idx_equipment_status"`
	Capacity    *float64   `gorm:"type:double precision"`
	Unit        *string    `gorm:"size:50"`
	InstallDate time.Time  `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

func (equipmentV1) TableName() string {
	return "equipment"
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create equipment table",
		Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&equipmentV1{})
		},
	},
}

// Migrator applies the versioned schema to the store.
type Migrator struct {
	db         *gorm.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrator creates a migrator for the built-in equipment schema.
func NewMigrator(db *gorm.DB, logger *slog.Logger) *Migrator {
	return newMigrator(db, logger, defaultMigrations)
}

func newMigrator(db *gorm.DB, logger *slog.Logger, migrations []Migration) *Migrator {
	return &Migrator{db: db, logger: logger, migrations: migrations}
}

// Latest returns the highest known schema version.
func (m *Migrator) Latest() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

// Apply brings the schema up to target (0 means latest). Already applied
// versions are skipped, so calling Apply on a current store is a no-op. Each
// migration commits together with its bookkeeping row; on failure the failing
// migration is rolled back and the remaining ones are not attempted.
func (m *Migrator) Apply(ctx context.Context, target int) error {
	latest := m.Latest()
	if target == 0 {
		target = latest
	}
	if target < 0 || target > latest {
		return &MigrationError{
			Version:     target,
			Description: "resolve target version",
			Err:         fmt.Errorf("unknown target version %d (latest is %d)", target, latest),
		}
	}

	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&schemaMigration{}) {
		if err := db.Migrator().CreateTable(&schemaMigration{}); err != nil {
			return &MigrationError{Description: "create schema_migrations table", Err: err}
		}
	}

	applied, err := m.appliedVersions(db)
	if err != nil {
		return &MigrationError{Description: "read applied versions", Err: err}
	}

	pending := 0
	for _, mig := range m.migrations {
		if mig.Version > target {
			break
		}
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		pending++

		started := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:     mig.Version,
				Description: mig.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return &MigrationError{Version: mig.Version, Description: mig.Description, Err: err}
		}

		m.logger.InfoContext(ctx, "migration applied",
			slog.Int("version", mig.Version),
			slog.String("description", mig.Description),
			slog.Duration("took", time.Since(started)))
	}

	if pending == 0 {
		m.logger.DebugContext(ctx, "schema already current", slog.Int("version", target))
	}
	return nil
}

// Status reports applied migrations and those still pending.
func (m *Migrator) Status(ctx context.Context) ([]AppliedMigration, []Migration, error) {
	db := m.db.WithContext(ctx)

	var rows []schemaMigration
	if db.Migrator().HasTable(&schemaMigration{}) {
		if err := db.Order("version").Find(&rows).Error; err != nil {
			return nil, nil, fmt.Errorf("read schema_migrations: %w", err)
		}
	}

	applied := make([]AppliedMigration, 0, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		applied = append(applied, AppliedMigration{Version: r.Version, Description: r.Description, AppliedAt: r.AppliedAt.UTC()})
		seen[r.Version] = struct{}{}
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if _, ok := seen[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return applied, pending, nil
}

func (m *Migrator) appliedVersions(db *gorm.DB) (map[int]struct{}, error) {
	var versions []int
	if err := db.Model(&schemaMigration{}).Pluck("version", &versions).Error; err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(versions))
	for _, v := range versions {
		set[v] = struct{}{}
	}
	return set, nil
}

// IsMigrationError reports whether err came from a failed schema change.
func IsMigrationError(err error) bool {
	var me *MigrationError
	return errors.As(err, &me)
}
