package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"equipment-twin-backend/internal/model"
)

// SampleEquipment returns the canonical refinery records used to seed an empty store.
func SampleEquipment() []model.Equipment {
	ptr := func(v float64) *float64 { return &v }
	str := func(v string) *string { return &v }
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	return []model.Equipment{
		{TagNumber: "P-101", Name: "Crude Feed Pump", Type: "Centrifugal Pump", Status: model.StatusOperating, Capacity: ptr(500), Unit: str("m³/h"), InstallDate: day(2020, time.January, 15)},
		{TagNumber: "E-201", Name: "Crude Preheat Exchanger", Type: "Shell & Tube Heat Exchanger", Status: model.StatusOperating, Capacity: ptr(50), Unit: str("MW"), InstallDate: day(2019, time.June, 20)},
		{TagNumber: "T-301", Name: "Distillation Column", Type: "Fractionation Tower", Status: model.StatusOperating, Capacity: ptr(100000), Unit: str("bbl/day"), InstallDate: day(2018, time.March, 10)},
	}
}

// SeedSampleData inserts SampleEquipment when the equipment table is empty and
// returns the number of rows written. Ids come from the table's sequence.
func SeedSampleData(ctx context.Context, db *gorm.DB, logger *slog.Logger) (int, error) {
	var inserted int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Equipment{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count equipment: %w", err)
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		samples := SampleEquipment()
		for i := range samples {
			samples[i].CreatedAt = now
		}
		if err := tx.Create(&samples).Error; err != nil {
			return fmt.Errorf("insert sample equipment: %w", err)
		}
		inserted = len(samples)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		logger.InfoContext(ctx, "seeded sample equipment", slog.Int("count", inserted))
	}
	return inserted, nil
}
