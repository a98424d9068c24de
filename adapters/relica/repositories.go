package relica

import (
	"database/sql"

	telemetry "github.com/2saloni/agrolt-dashboard"
)

// Repositories holds all repository implementations.
type Repositories struct {
	TopicRecord telemetry.TopicRecordRepository
	Device      telemetry.DeviceRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL,
// or SQLite. The driverName should be "mysql", "postgres", or
// "sqlite3". The table prefix defaults to "agrolt_".
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return &Repositories{
		TopicRecord: NewTopicRecordRepository(db, driverName),
		Device:      NewDeviceRepository(db, driverName),
	}
}

// NewRepositoriesWithPrefix creates all repository implementations with
// a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		TopicRecord: NewTopicRecordRepositoryWithPrefix(db, driverName, prefix),
		Device:      NewDeviceRepositoryWithPrefix(db, driverName, prefix),
	}
}
