package repositories

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory database with the same tables the monitoring
// platform provisions in production. A single connection keeps every query
// of a test on the same in-memory instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	require.NoError(t, db.Exec(`
		CREATE TABLE transformers (
			id       TEXT PRIMARY KEY,
			location TEXT
		)
	`).Error)

	require.NoError(t, db.Exec(`
		CREATE TABLE temperature_readings (
			transformer_id      TEXT NOT NULL,
			timestamp           TEXT NOT NULL,
			ambient_temperature REAL,
			PRIMARY KEY (transformer_id, timestamp)
		)
	`).Error)

	return db
}

func insertTransformer(t *testing.T, db *gorm.DB, id string, location interface{}) {
	t.Helper()
	err := db.Exec("INSERT INTO transformers (id, location) VALUES (?, ?)", id, location).Error
	require.NoError(t, err)
}

func insertReading(t *testing.T, db *gorm.DB, transformerID, timestamp string, temperature interface{}) {
	t.Helper()
	err := db.Exec(
		"INSERT INTO temperature_readings (transformer_id, timestamp, ambient_temperature) VALUES (?, ?, ?)",
		transformerID, timestamp, temperature,
	).Error
	require.NoError(t, err)
}
