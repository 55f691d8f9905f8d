package model

// TypeCount is the number of equipment records sharing one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Stats aggregates the equipment inventory.
type Stats struct {
	TotalCount       int64            `json:"totalCount"`
	OperatingCount   int64            `json:"operatingCount"`
	MaintenanceCount int64            `json:"maintenanceCount"`
	ByStatus         map[string]int64 `json:"byStatus"`
	EquipmentTypes   []TypeCount      `json:"equipmentTypes"`
}
