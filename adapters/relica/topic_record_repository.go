package relica

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coregx/relica"

	telemetry "github.com/2saloni/agrolt-dashboard"
	"github.com/2saloni/agrolt-dashboard/model"
)

// TopicRecordRepository implements telemetry.TopicRecordRepository
// using Relica for reads and a database/sql transaction for the
// versioned commit.
type TopicRecordRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	driverName  string
	tablePrefix string
}

// NewTopicRecordRepository creates a new TopicRecordRepository with the
// default table prefix.
func NewTopicRecordRepository(sqlDB *sql.DB, driverName string) *TopicRecordRepository {
	return NewTopicRecordRepositoryWithPrefix(sqlDB, driverName, "agrolt_")
}

// NewTopicRecordRepositoryWithPrefix creates a new TopicRecordRepository
// with a custom table prefix.
func NewTopicRecordRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *TopicRecordRepository {
	return &TopicRecordRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		driverName:  driverName,
		tablePrefix: prefix,
	}
}

func (r *TopicRecordRepository) tableName() string {
	return r.tablePrefix + "topic_record"
}

// topicRecordRow is the scan target for topic record queries; payloads
// live in the database as JSON text.
type topicRecordRow struct {
	ID        int64         `db:"id"`
	Name      string        `db:"name"`
	Payload   string        `db:"payload"`
	DeviceID  sql.NullInt64 `db:"device_id"`
	ZoneID    sql.NullInt64 `db:"zone_id"`
	IsLatest  bool          `db:"is_latest"`
	CreatedAt time.Time     `db:"created_at"`
}

func (row topicRecordRow) toRecord() (model.TopicRecord, error) {
	var payload model.Payload
	if row.Payload != "" {
		if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
			return model.TopicRecord{}, telemetry.NewErrorWithCause(
				telemetry.ErrCodeDatabase, "failed to decode stored payload", err)
		}
	}
	return model.TopicRecord{
		ID:        row.ID,
		Name:      row.Name,
		Payload:   payload,
		DeviceID:  row.DeviceID.Int64,
		ZoneID:    row.ZoneID.Int64,
		IsLatest:  row.IsLatest,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Commit atomically demotes the current row for rec.Name (if any) and
// inserts rec as the new current row, in one transaction. Rollback on
// any failure leaves no partial state visible.
func (r *TopicRecordRepository) Commit(ctx context.Context, rec model.TopicRecord) (model.TopicRecord, error) {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return model.TopicRecord{}, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to encode payload", err)
	}

	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return model.TopicRecord{}, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to begin commit transaction", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op once committed
	}()

	demote := r.rebind(fmt.Sprintf(
		"UPDATE %s SET is_latest = FALSE WHERE name = ? AND is_latest = TRUE",
		r.tableName(),
	))
	if _, err := tx.ExecContext(ctx, demote, rec.Name); err != nil {
		return model.TopicRecord{}, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to demote current record", err)
	}

	deviceID := nullableID(rec.DeviceID)
	zoneID := nullableID(rec.ZoneID)

	if r.driverName == "postgres" {
		insert := r.rebind(fmt.Sprintf(
			"INSERT INTO %s (name, payload, device_id, zone_id, is_latest, created_at) VALUES (?, ?, ?, ?, TRUE, ?) RETURNING id",
			r.tableName(),
		))
		if err := tx.QueryRowContext(ctx, insert,
			rec.Name, string(payloadJSON), deviceID, zoneID, rec.CreatedAt,
		).Scan(&rec.ID); err != nil {
			return model.TopicRecord{}, telemetry.NewErrorWithCause(
				telemetry.ErrCodeDatabase, "failed to insert record", err)
		}
	} else {
		insert := fmt.Sprintf(
			"INSERT INTO %s (name, payload, device_id, zone_id, is_latest, created_at) VALUES (?, ?, ?, ?, TRUE, ?)",
			r.tableName(),
		)
		res, err := tx.ExecContext(ctx, insert,
			rec.Name, string(payloadJSON), deviceID, zoneID, rec.CreatedAt)
		if err != nil {
			return model.TopicRecord{}, telemetry.NewErrorWithCause(
				telemetry.ErrCodeDatabase, "failed to insert record", err)
		}
		rec.ID, err = res.LastInsertId()
		if err != nil {
			return model.TopicRecord{}, telemetry.NewErrorWithCause(
				telemetry.ErrCodeDatabase, "failed to read inserted record id", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.TopicRecord{}, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to commit record transaction", err)
	}

	rec.IsLatest = true
	return rec, nil
}

// Latest retrieves the current record for a topic name.
func (r *TopicRecordRepository) Latest(ctx context.Context, name string) (model.TopicRecord, error) {
	var row topicRecordRow
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("name = ? AND is_latest = TRUE", name).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TopicRecord{}, telemetry.ErrNoData
	}
	if err != nil {
		return model.TopicRecord{}, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to load latest record", err)
	}
	return row.toRecord()
}

// History retrieves up to limit records for a topic name, newest first.
func (r *TopicRecordRepository) History(ctx context.Context, name string, limit int) ([]model.TopicRecord, error) {
	var rows []topicRecordRow
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("name = ?", name).
		OrderBy("created_at DESC, id DESC").
		Limit(int64(limit)).
		All(&rows)
	if err != nil {
		return nil, telemetry.NewErrorWithCause(
			telemetry.ErrCodeDatabase, "failed to load record history", err)
	}
	if len(rows) == 0 {
		return nil, telemetry.ErrNoData
	}

	records := make([]model.TopicRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// rebind converts ?-style placeholders to $N for PostgreSQL.
func (r *TopicRecordRepository) rebind(query string) string {
	if r.driverName != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// nullableID maps the zero id to NULL so unattributed records do not
// fabricate foreign keys.
func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
