package monitor

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the hierarchy schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "monitor-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE zones (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			name TEXT NOT NULL,
			positions TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE subzones (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			name TEXT NOT NULL,
			positions TEXT NOT NULL DEFAULT '[]',
			zone_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE sites (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			key TEXT NOT NULL,
			name TEXT NOT NULL,
			position TEXT NOT NULL DEFAULT '{}',
			sensors TEXT NOT NULL DEFAULT '{}',
			alarms TEXT NOT NULL DEFAULT '{}',
			timestamp TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			subzone_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE,
			FOREIGN KEY (subzone_id) REFERENCES subzones(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE site_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id TEXT NOT NULL,
			sensors TEXT NOT NULL DEFAULT '{}',
			alarms TEXT NOT NULL DEFAULT '{}',
			timestamp TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying hierarchy migration: %v", err)
	}

	return db
}

// seedHierarchy creates one zone, one subzone and one site for a company
// and returns all three.
func seedHierarchy(t *testing.T, repo *SQLiteRepository, company string) (*Zone, *Subzone, *Site) {
	t.Helper()
	ctx := context.Background()

	zone := &Zone{
		Company:   company,
		Name:      "North Wing",
		Positions: []Position{{1, 2}, {3, 4}},
	}
	if err := repo.CreateZone(ctx, zone); err != nil {
		t.Fatalf("CreateZone() error = %v", err)
	}

	subzone := &Subzone{
		Company:   company,
		Name:      "Boiler Room",
		Positions: []Position{{1.5, 2.5}},
		ZoneID:    zone.ID,
	}
	if err := repo.CreateSubzone(ctx, subzone); err != nil {
		t.Fatalf("CreateSubzone() error = %v", err)
	}

	site := &Site{
		Company:   company,
		Key:       "boiler-1",
		Name:      "Boiler 1",
		Position:  Position{1.6, 2.6},
		Sensors:   Payload{"temp": 21.5},
		Alarms:    Payload{"fire": false},
		SubzoneID: subzone.ID,
	}
	if err := repo.CreateSite(ctx, site); err != nil {
		t.Fatalf("CreateSite() error = %v", err)
	}

	return zone, subzone, site
}
