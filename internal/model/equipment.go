package model

import "time"

// DefaultStatus is assigned to equipment created without an explicit status.
const DefaultStatus = "Operating"

// Recognized status values reported separately by the stats endpoint.
const (
	StatusOperating   = "Operating"
	StatusMaintenance = "Maintenance"
)

// Equipment represents a physical industrial asset tracked by the digital twin.
type Equipment struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TagNumber   string     `gorm:"size:50;not null;uniqueIndex:idx_equipment_tag_number" json:"tagNumber"`
	Name        string     `gorm:"size:200;not null" json:"name"`
	Type        string     `gorm:"size:100;not null;index:idx_equipment_type" json:"type"`
	Status      string     `gorm:"size:50;not null;default:Operating;index:idx_equipment_status" json:"status"`
	Capacity    *float64   `json:"capacity"`
	Unit        *string    `gorm:"size:50" json:"unit"`
	InstallDate time.Time  `gorm:"not null" json:"installDate"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

// TableName pins the table name so it does not follow GORM pluralization.
func (Equipment) TableName() string {
	return "equipment"
}

// UTC returns a copy with every timestamp normalized to UTC.
func (e Equipment) UTC() Equipment {
	e.InstallDate = e.InstallDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	if e.UpdatedAt != nil {
		u := e.UpdatedAt.UTC()
		e.UpdatedAt = &u
	}
	return e
}
