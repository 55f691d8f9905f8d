package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"equipment-twin-backend/internal/model"
)

// Store defines the interface for all equipment persistence operations.
type Store interface {
	List(ctx context.Context) ([]model.Equipment, error)
	Get(ctx context.Context, id int64) (model.Equipment, error)
	Create(ctx context.Context, e model.Equipment) (model.Equipment, error)
	Update(ctx context.Context, id int64, e model.Equipment) (model.Equipment, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string) ([]model.Equipment, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewGormStore creates a new GORM-backed store. The store borrows db and
// logger; closing them is the caller's job.
func NewGormStore(db *gorm.DB, logger *slog.Logger) Store {
	return &gormStore{
		db:     db,
		logger: logger,
		now: func() time.Time {
			// Postgres keeps microseconds; truncating keeps returned records
			// equal to what a later read yields.
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

func (s *gormStore) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

// List returns every record ordered by id.
func (s *gormStore) List(ctx context.Context) ([]model.Equipment, error) {
	var items []model.Equipment
	if err := s.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, translate("list equipment", err)
	}
	return toUTC(items), nil
}

// Get returns the record with the given id or ErrNotFound.
func (s *gormStore) Get(ctx context.Context, id int64) (model.Equipment, error) {
	if id <= 0 {
		return model.Equipment{}, ErrNotFound
	}

	var e model.Equipment
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return model.Equipment{}, translate("get equipment", err)
	}
	return e.UTC(), nil
}

// Create validates and inserts a record in a single statement. The unique
// index on tag_number decides between concurrent creators.
func (s *gormStore) Create(ctx context.Context, e model.Equipment) (model.Equipment, error) {
	rec, err := normalize(e)
	if err != nil {
		return model.Equipment{}, err
	}
	rec.ID = 0
	rec.CreatedAt = s.now()
	rec.UpdatedAt = nil

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Equipment{}, translate("create equipment", err)
	}

	s.logger.InfoContext(ctx, "equipment created", slog.Int64("id", rec.ID), slog.String("tag_number", rec.TagNumber))
	return rec.UTC(), nil
}

// Update overwrites every mutable field of an existing record. The read, the
// write and the read-back share one transaction; a tag collision surfaces from
// the unique index as ErrConflict.
func (s *gormStore) Update(ctx context.Context, id int64, e model.Equipment) (model.Equipment, error) {
	rec, err := normalize(e)
	if err != nil {
		return model.Equipment{}, err
	}
	if id <= 0 {
		return model.Equipment{}, ErrNotFound
	}

	var updated model.Equipment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Equipment
		q := tx
		if s.isPostgres() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&current, id).Error; err != nil {
			return err
		}

		updatedAt := s.nextUpdatedAt(current)
		if err := tx.Model(&model.Equipment{}).Where("id = ?", id).Updates(map[string]any{
			"tag_number":   rec.TagNumber,
			"name":         rec.Name,
			"type":         rec.Type,
			"status":       rec.Status,
			"capacity":     rec.Capacity,
			"unit":         rec.Unit,
			"install_date": rec.InstallDate,
			"updated_at":   updatedAt,
		}).Error; err != nil {
			return err
		}

		return tx.First(&updated, id).Error
	})
	if err != nil {
		return model.Equipment{}, translate("update equipment", err)
	}

	s.logger.InfoContext(ctx, "equipment updated", slog.Int64("id", id), slog.String("tag_number", updated.TagNumber))
	return updated.UTC(), nil
}

// nextUpdatedAt returns a timestamp strictly after both the creation time and
// the previous update of current.
func (s *gormStore) nextUpdatedAt(current model.Equipment) time.Time {
	floor := current.CreatedAt.UTC()
	if current.UpdatedAt != nil && current.UpdatedAt.After(floor) {
		floor = current.UpdatedAt.UTC()
	}
	now := s.now()
	if !now.After(floor) {
		now = floor.Add(time.Microsecond)
	}
	return now
}

// Delete permanently removes a record. Deleting a missing id, including one
// deleted before, yields ErrNotFound.
func (s *gormStore) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	res := s.db.WithContext(ctx).Delete(&model.Equipment{}, id)
	if res.Error != nil {
		return translate("delete equipment", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.InfoContext(ctx, "equipment deleted", slog.Int64("id", id))
	return nil
}

// Search returns records whose tag number or name contains query, matched
// case-sensitively and without wildcard interpretation.
func (s *gormStore) Search(ctx context.Context, query string) ([]model.Equipment, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidArgument("query must not be blank")
	}

	cond := "instr(tag_number, ?) > 0 OR instr(name, ?) > 0"
	if s.isPostgres() {
		cond = "strpos(tag_number, ?) > 0 OR strpos(name, ?) > 0"
	}

	var items []model.Equipment
	if err := s.db.WithContext(ctx).Where(cond, query, query).Order("id").Find(&items).Error; err != nil {
		return nil, translate("search equipment", err)
	}
	return toUTC(items), nil
}

type groupCount struct {
	Label string
	Total int64
}

// Stats aggregates counts by status and by type from one snapshot.
func (s *gormStore) Stats(ctx context.Context) (model.Stats, error) {
	var byStatus, byType []groupCount

	var opts *sql.TxOptions
	if s.isPostgres() {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Equipment{}).
			Select("status AS label, COUNT(*) AS total").
			Group("status").
			Scan(&byStatus).Error; err != nil {
			return err
		}
		return tx.Model(&model.Equipment{}).
			Select("type AS label, COUNT(*) AS total").
			Group("type").
			Order("type").
			Scan(&byType).Error
	}, opts)
	if err != nil {
		return model.Stats{}, translate("equipment stats", err)
	}

	stats := model.Stats{
		ByStatus:       make(map[string]int64, len(byStatus)),
		EquipmentTypes: make([]model.TypeCount, 0, len(byType)),
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Label] = row.Total
		stats.TotalCount += row.Total
	}
	stats.OperatingCount = stats.ByStatus[model.StatusOperating]
	stats.MaintenanceCount = stats.ByStatus[model.StatusMaintenance]
	for _, row := range byType {
		stats.EquipmentTypes = append(stats.EquipmentTypes, model.TypeCount{Type: row.Label, Count: row.Total})
	}
	return stats, nil
}

func toUTC(items []model.Equipment) []model.Equipment {
	for i := range items {
		items[i] = items[i].UTC()
	}
	return items
}
