package store

import (
	"strings"
	"time"
	"unicode/utf8"

	"equipment-twin-backend/internal/model"
)

// Column limits, counted in characters.
const (
	maxTagNumberLen = 50
	maxNameLen      = 200
	maxTypeLen      = 100
	maxStatusLen    = 50
	maxUnitLen      = 50
)

// normalize applies the status default and checks required fields and length
// limits. The returned copy carries UTC timestamps.
func normalize(e model.Equipment) (model.Equipment, error) {
	if strings.TrimSpace(e.Status) == "" {
		e.Status = model.DefaultStatus
	}

	required := []struct {
		field string
		value string
		max   int
	}{
		{"tagNumber", e.TagNumber, maxTagNumberLen},
		{"name", e.Name, maxNameLen},
		{"type", e.Type, maxTypeLen},
		{"status", e.Status, maxStatusLen},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return e, invalidArgument("%s is required", r.field)
		}
		if n := utf8.RuneCountInString(r.value); n > r.max {
			return e, invalidArgument("%s must be at most %d characters, got %d", r.field, r.max, n)
		}
	}

	if e.Unit != nil {
		if n := utf8.RuneCountInString(*e.Unit); n > maxUnitLen {
			return e, invalidArgument("unit must be at most %d characters, got %d", maxUnitLen, n)
		}
	}
	if e.InstallDate.IsZero() {
		return e, invalidArgument("installDate is required")
	}

	e.InstallDate = e.InstallDate.UTC().Truncate(time.Microsecond)
	return e, nil
}
