// Package database provides the SQLite database robotlan keeps its robot
// registry in.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Applying embedded schema migrations in version order
//   - Health checks for the API
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is created with 0600 permissions
//   - Robot secrets are never stored here; they come from configuration
//
// Usage:
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Migrations are additive: new columns must be
// nullable or carry a default.
package database
