package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Location is the geolocation object stored in the transformers table.
// Either coordinate may be absent; a transformer without both is
// excluded from weather processing.
type Location struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (l *Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *Location) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var fieldBytes []byte
	switch v := value.(type) {
	case []byte:
		fieldBytes = v
	case string:
		fieldBytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Location", value)
	}

	return json.Unmarshal(fieldBytes, l)
}

type Transformer struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	Location *Location `gorm:"type:jsonb" json:"location,omitempty"`
}

func (Transformer) TableName() string {
	return "transformers"
}

// HasLocation reports whether both coordinates are present.
func (t *Transformer) HasLocation() bool {
	return t.Location != nil && t.Location.Lat != nil && t.Location.Lng != nil
}
