package relica

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/relica"

	telemetry "github.com/2saloni/agrolt-dashboard"
	"github.com/2saloni/agrolt-dashboard/model"
)

// DeviceRepository implements telemetry.DeviceRepository using Relica.
// It is strictly read-only: device and zone rows are owned by the
// dashboard's CRUD layer.
type DeviceRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	tablePrefix string
}

// NewDeviceRepository creates a new DeviceRepository with the default
// table prefix.
func NewDeviceRepository(sqlDB *sql.DB, driverName string) *DeviceRepository {
	return NewDeviceRepositoryWithPrefix(sqlDB, driverName, "agrolt_")
}

// NewDeviceRepositoryWithPrefix creates a new DeviceRepository with a
// custom table prefix.
func NewDeviceRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DeviceRepository {
	return &DeviceRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		tablePrefix: prefix,
	}
}

type deviceRow struct {
	ID           int64     `db:"id"`
	DeviceNumber string    `db:"device_number"`
	CreatedAt    time.Time `db:"created_at"`
}

type zoneRow struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	DeviceID int64  `db:"device_id"`
}

// ListWithZones returns all registered devices with their zones
// populated. Two bulk queries, grouped in memory; devices without zones
// are returned with an empty zone slice (they simply derive no topics).
func (r *DeviceRepository) ListWithZones(ctx context.Context) ([]model.Device, error) {
	var deviceRows []deviceRow
	err := r.db.WithContext(ctx).Select("*").
		From(r.tablePrefix + "device").
		OrderBy("id ASC").
		All(&deviceRows)
	if err != nil {
		return nil, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to list devices", err)
	}
	if len(deviceRows) == 0 {
		return []model.Device{}, nil
	}

	var zoneRows []zoneRow
	err = r.db.WithContext(ctx).Select("*").
		From(r.tablePrefix + "zone").
		OrderBy("id ASC").
		All(&zoneRows)
	if err != nil {
		return nil, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to list zones", err)
	}

	zonesByDevice := make(map[int64][]model.Zone, len(deviceRows))
	for _, z := range zoneRows {
		zonesByDevice[z.DeviceID] = append(zonesByDevice[z.DeviceID], model.Zone{
			ID:       z.ID,
			Name:     z.Name,
			DeviceID: z.DeviceID,
		})
	}

	devices := make([]model.Device, 0, len(deviceRows))
	for _, d := range deviceRows {
		devices = append(devices, model.Device{
			ID:           d.ID,
			DeviceNumber: d.DeviceNumber,
			Zones:        zonesByDevice[d.ID],
			CreatedAt:    d.CreatedAt,
		})
	}
	return devices, nil
}

// Ping verifies the relational store is reachable.
func (r *DeviceRepository) Ping(ctx context.Context) error {
	if err := r.sqlDB.PingContext(ctx); err != nil {
		return telemetry.NewErrorWithCause(
			telemetry.ErrCodeConnectivity, "relational store unreachable", err)
	}
	return nil
}
