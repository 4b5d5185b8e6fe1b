// Package migrations embeds the robotlan schema so the binary can migrate
// a database without the SQL files on disk.
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil { ... }
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
