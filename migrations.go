package telemetry

import "embed"

// MigrationFiles contains the SQL migration files embedded in the
// binary. Apply them with your preferred migration tool (goose,
// golang-migrate, atlas, ...) or execute them directly on first boot.
//
// Example with goose:
//
//	goose.SetBaseFS(telemetry.MigrationFiles)
//	if err := goose.Up(db, "migrations"); err != nil {
//	    log.Fatal(err)
//	}
//
//go:embed migrations/*.sql
var MigrationFiles embed.FS
