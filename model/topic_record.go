// Package model contains the domain models for the agrolt telemetry pipeline.
package model

import "time"

const tablePrefix = "agrolt_"

// Payload is the structured, schema-free body of a telemetry reading.
// Device firmware revisions disagree on field layout, so no schema is
// imposed here; the normalize package rewrites known field shapes and
// leaves everything else untouched.
type Payload map[string]interface{}

// DeepCopy returns a recursive copy of the payload. Nested maps and
// slices are duplicated; scalar values are shared (they are immutable).
func (p Payload) DeepCopy() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = deepCopyValue(e)
		}
		return m
	case Payload:
		return map[string]interface{}(t.DeepCopy())
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, e := range t {
			s[i] = deepCopyValue(e)
		}
		return s
	default:
		return v
	}
}

// TopicRecord is one versioned telemetry reading for a topic name.
//
// Records are append-only: an inbound message never updates a row in
// place. Instead the previous current row is demoted and a new row is
// inserted with IsLatest set, inside one transaction (see
// telemetry.VersionedStore). For a given Name at most one row carries
// IsLatest at any instant.
//
// DeviceID and ZoneID are opaque foreign keys owned by the CRUD layer;
// the pipeline only tags records with them. They are zero when the
// reading could not be attributed (which the pipeline normally prevents
// by dropping unattributed topics).
type TopicRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`                      // sanitized deviceNumber+zoneName
	Payload   Payload   `json:"payload"`                   // normalized reading body
	DeviceID  int64     `json:"deviceId" db:"device_id"`   // 0 = unattributed
	ZoneID    int64     `json:"zoneId" db:"zone_id"`       // 0 = unattributed
	IsLatest  bool      `json:"isLatest" db:"is_latest"`   // latest flag, unique per Name
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // ingestion timestamp
}

// TableName returns the database table name for TopicRecord.
func (t TopicRecord) TableName() string {
	return tablePrefix + "topic_record"
}

// NewTopicRecord creates a record for insertion as the current reading of
// a topic name. The caller (VersionedStore) is responsible for demoting
// the previous current row in the same unit of work.
func NewTopicRecord(name string, payload Payload, deviceID, zoneID int64) TopicRecord {
	return TopicRecord{
		ID:        0,
		Name:      name,
		Payload:   payload,
		DeviceID:  deviceID,
		ZoneID:    zoneID,
		IsLatest:  true,
		CreatedAt: time.Now(),
	}
}

// TopicUpdate is the payload shape pushed to viewers for every committed
// record. The same shape is used for the topicUpdate and zoneData events.
type TopicUpdate struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Data      Payload `json:"data"`
	DeviceID  int64   `json:"deviceId"`
	ZoneID    int64   `json:"zoneId"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}

// UpdateFromRecord builds the broadcast payload for a committed record.
func UpdateFromRecord(rec TopicRecord) TopicUpdate {
	return TopicUpdate{
		ID:        rec.ID,
		Name:      rec.Name,
		Data:      rec.Payload,
		DeviceID:  rec.DeviceID,
		ZoneID:    rec.ZoneID,
		Timestamp: rec.CreatedAt.UnixMilli(),
	}
}
