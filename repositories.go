package telemetry

import (
	"context"

	"github.com/2saloni/agrolt-dashboard/model"
)

// TopicRecordRepository defines the persistence interface for versioned
// topic records.
//
// Implementations must be safe for concurrent use. Commit must be
// transactional: either both the demotion of the previous current row
// and the insertion of the new one become visible, or neither does.
// Cross-commit serialization for one topic name is the caller's job
// (VersionedStore holds a per-name lock around Commit); implementations
// only guarantee atomicity.
type TopicRecordRepository interface {
	// Commit atomically demotes any existing row for rec.Name that
	// carries the latest flag, then inserts rec with the flag set.
	// Returns the inserted record with its ID populated.
	Commit(ctx context.Context, rec model.TopicRecord) (model.TopicRecord, error)

	// Latest retrieves the current record for a topic name.
	// Returns ErrNoData if the name has never been committed.
	Latest(ctx context.Context, name string) (model.TopicRecord, error)

	// History retrieves up to limit records for a topic name, newest
	// first (the current record is element 0 when present).
	// Returns ErrNoData when no records exist for the name.
	History(ctx context.Context, name string, limit int) ([]model.TopicRecord, error)
}

// DeviceRepository defines read access to the device/zone tables owned
// by the dashboard's CRUD layer. The pipeline only enumerates devices
// with their zones to derive the subscription set, and pings the store
// before starting.
type DeviceRepository interface {
	// ListWithZones returns every registered device with its associated
	// zones populated. Returns an empty slice when no devices exist.
	ListWithZones(ctx context.Context) ([]model.Device, error)

	// Ping verifies the relational store is reachable.
	Ping(ctx context.Context) error
}
