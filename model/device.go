package model

import "time"

// Device is the pipeline's read-only projection of a registered field
// device. Full device CRUD (ownership, credentials, firmware metadata)
// lives in the dashboard's request/response layer; the pipeline reads
// only what subscription derivation needs.
type Device struct {
	ID           int64     `json:"id"`
	DeviceNumber string    `json:"deviceNumber" db:"device_number"` // printed on the unit, e.g. "00009"
	Zones        []Zone    `json:"zones" db:"-"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for Device.
func (d Device) TableName() string {
	return tablePrefix + "device"
}

// Zone is one physical zone served by a device (a greenhouse section,
// an irrigation block, ...). Zone names feed both topic derivation and
// the per-zone broadcast room.
type Zone struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"` // e.g. "zone1"
	DeviceID int64  `json:"deviceId" db:"device_id"`
}

// TableName returns the database table name for Zone.
func (z Zone) TableName() string {
	return tablePrefix + "zone"
}
