// Package relica provides SQL-backed repository implementations for the
// telemetry pipeline using the Relica query builder.
//
// Reads go through Relica; the versioned commit path uses a raw
// database/sql transaction because its demote+insert pair must be one
// atomic unit of work. MySQL, PostgreSQL and SQLite are supported via
// their standard drivers.
package relica
