package models

// TemperatureReading is a persisted row in the temperature_readings
// table, keyed by (transformer_id, timestamp). Timestamps are stored as
// ISO-8601 strings whose serialization is not guaranteed to match the
// canonical form, so values read from the store must pass through
// timeutil.Normalize before any comparison. Row lifecycle is owned by
// an external process; this system only fills in ambient_temperature.
type TemperatureReading struct {
	TransformerID      string   `gorm:"column:transformer_id" json:"transformer_id"`
	Timestamp          string   `gorm:"column:timestamp" json:"timestamp"`
	AmbientTemperature *float64 `gorm:"column:ambient_temperature" json:"ambient_temperature,omitempty"`
}

func (TemperatureReading) TableName() string {
	return "temperature_readings"
}

// ReadingUpdate is one pending write of the write phase: the ambient
// temperature to set for a reading row, keyed by transformer id and
// canonical timestamp.
type ReadingUpdate struct {
	TransformerID      string  `json:"transformer_id"`
	Timestamp          string  `json:"timestamp"`
	AmbientTemperature float64 `json:"ambient_temperature"`
}
