package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/nerrad567/bosshunter/migrations"
)

// testMigrations is a two-step schema in memory.
var testMigrations = fstest.MapFS{
	"20260101_000000_widgets.up.sql":    {Data: []byte(`CREATE TABLE widgets (id TEXT PRIMARY KEY) STRICT;`)},
	"20260101_000000_widgets.down.sql":  {Data: []byte(`DROP TABLE widgets;`)},
	"20260102_000000_add_size.up.sql":   {Data: []byte(`ALTER TABLE widgets ADD COLUMN size INTEGER;`)},
	"20260102_000000_add_size.down.sql": {Data: []byte(`ALTER TABLE widgets DROP COLUMN size;`)},
	"README.md":                         {Data: []byte("not a migration")},
	"20260103_000000_notes.sql":         {Data: []byte("no direction")},
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") {
		t.Fatal("widgets table not created")
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO widgets (id, size) VALUES ('a', 3)"); err != nil {
		t.Errorf("second migration not applied: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[0].AppliedAt.IsZero() {
		t.Errorf("applied[0] = %+v", applied[0])
	}

	// Idempotent.
	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureKeepsEarlierVersions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	broken := fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte(`CREATE TABLE ok (id INTEGER) STRICT;`)},
		"20260102_000000_broken.up.sql": {Data: []byte(`CREATE TABLEX nope;`)},
	}
	if err := db.Migrate(ctx, broken); err == nil {
		t.Fatal("Migrate() with broken SQL succeeded")
	}

	applied, pending, err := db.MigrationStatus(ctx, broken)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("applied=%v pending=%v", applied, pending)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations); err != nil {
		t.Fatalf("second MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets table still present after rolling everything back")
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx, testMigrations); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
	if err := db.Migrate(context.Background(), fstest.MapFS{}); err != nil {
		t.Errorf("Migrate(empty) error = %v", err)
	}
}

func TestMigrate_EmbeddedSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate(migrations.FS) error = %v", err)
	}
	if !tableExists(t, db, "runs") {
		t.Fatal("runs table not created")
	}

	_, err := db.ExecContext(ctx, `INSERT INTO runs (id, started_at, final_state, threshold, outcome)
		VALUES ('r1', '2026-10-19T12:00:00.000000Z', 'STOPPED', 0.8, 'exploded')`)
	if err == nil {
		t.Error("runs accepted an unknown outcome")
	}

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "runs") {
		t.Error("runs table survived rollback")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"20261019_120000_runs.up.sql", "20261019_120000", true, true},
		{"20261019_120000_runs.down.sql", "20261019_120000", false, true},
		{"20261019_120000.up.sql", "20261019_120000", true, true},
		{"readme.txt", "", false, false},
		{"20261019_120000_runs.sql", "", false, false},
		{"invalid.up.sql", "", false, false},
		{"2026_12_runs.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestMigrationName(t *testing.T) {
	tests := map[string]string{
		"20261019_120000_runs.up.sql":            "runs",
		"20261019_120000_add_run_index.down.sql": "add_run_index",
		"20261019_120000.up.sql":                 "20261019_120000",
	}
	for file, want := range tests {
		if got := migrationName(file); got != want {
			t.Errorf("migrationName(%q) = %q, want %q", file, got, want)
		}
	}
}
