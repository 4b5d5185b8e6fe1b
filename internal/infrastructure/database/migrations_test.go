package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_create_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);")},
		"20260101_000000_create_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"20260102_000000_add_colour.up.sql":       {Data: []byte("ALTER TABLE widgets ADD COLUMN colour TEXT NOT NULL DEFAULT '';")},
		"README.md":                               {Data: []byte("not a migration")},
		"20260103_000000_orphan.down.sql":         {Data: []byte("SELECT 1;")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") {
		t.Fatal("widgets table not created")
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO widgets (id, colour) VALUES ('a', 'red')"); err != nil {
		t.Errorf("second migration not applied: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("MigrationStatus() = %d applied, %d pending, want 2, 0", len(applied), len(pending))
	}

	// Running again is a no-op.
	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_Failure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := testMigrations()
	fsys["20260102_000000_add_colour.up.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE nope ADD COLUMN x TEXT;")}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() error = nil, want failure")
	}
	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("MigrationStatus() = %d applied, %d pending, want 1, 1", len(applied), len(pending))
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := testMigrations()
	delete(fsys, "20260102_000000_add_colour.up.sql")

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets table still exists after MigrateDown()")
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations()); err == nil {
		t.Error("MigrateDown() error = nil for migration without down SQL")
	}
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testMigrations())
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("LoadMigrations() returned %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != "20260101_000000" || migrations[1].Version != "20260102_000000" {
		t.Errorf("versions = %s, %s, want sorted", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].DownSQL == "" {
		t.Error("first migration lost its down SQL")
	}

	if got, err := LoadMigrations(nil); err != nil || got != nil {
		t.Errorf("LoadMigrations(nil) = %v, %v, want nil, nil", got, err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_create_robots.up.sql", "20260301_120000", "create_robots", true, true},
		{"20260301_120000_create_robots.down.sql", "20260301_120000", "create_robots", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "20260301_120000", true, true},
		{"create_robots.sql", "", "", false, false},
		{"20260301.up.sql", "", "", false, false},
		{"20260301_120000_x.up.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = %q, %q, %v, %v, want %q, %q, %v, %v",
					tt.filename, version, name, up, ok, tt.wantVersion, tt.wantName, tt.wantUp, tt.wantOK)
			}
		})
	}
}
