package location

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the locations
// and devices tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE locations (
			id            TEXT PRIMARY KEY,
			org_id        TEXT NOT NULL,
			name          TEXT NOT NULL,
			address       TEXT NOT NULL DEFAULT '',
			timezone      TEXT NOT NULL DEFAULT 'UTC',
			hidden        INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE devices (
			id          TEXT PRIMARY KEY,
			location_id TEXT REFERENCES locations(id)
		);

		INSERT INTO locations (id, org_id, name, address, timezone, hidden, created_at, updated_at) VALUES
			('loc-concourse', 'org-1', 'Station Concourse', '1 Rail Way', 'Europe/London', 0, '2026-03-01T00:00:00Z', '2026-03-01T00:00:00Z'),
			('loc-pool', 'org-1', 'Poolside', '', 'UTC', 0, '2026-03-01T00:00:00Z', '2026-03-01T00:00:00Z'),
			('loc-retired', 'org-1', 'Old Lobby', '', 'UTC', 1, '2026-03-01T00:00:00Z', '2026-03-01T00:00:00Z'),
			('loc-other-org', 'org-2', 'Elsewhere', '', 'UTC', 0, '2026-03-01T00:00:00Z', '2026-03-01T00:00:00Z');

		INSERT INTO devices (id, location_id) VALUES ('dev-1', 'loc-pool');
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	locations, err := repo.List(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(locations) != 3 {
		t.Fatalf("expected 3 locations, got %d", len(locations))
	}
	// Ordered by name.
	if locations[0].Name != "Old Lobby" {
		t.Errorf("first location = %s, want Old Lobby", locations[0].Name)
	}
}

func TestListVisibleExcludesHidden(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	locations, err := repo.ListVisible(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListVisible failed: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected 2 visible locations, got %d", len(locations))
	}
	for _, loc := range locations {
		if loc.Hidden {
			t.Errorf("hidden location %s in visible list", loc.ID)
		}
	}
}

func TestGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	loc, err := repo.Get(context.Background(), "loc-concourse")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loc.Timezone != "Europe/London" {
		t.Errorf("timezone = %s, want Europe/London", loc.Timezone)
	}
	if loc.Zone().String() != "Europe/London" {
		t.Errorf("Zone() = %s", loc.Zone())
	}

	if _, err := repo.Get(context.Background(), "loc-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAndUpdate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	loc := &Location{OrgID: "org-1", Name: "Arena East", Timezone: "UTC"}
	if err := repo.Create(ctx, loc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if loc.ID == "" {
		t.Fatal("Create must assign an ID")
	}

	loc.Hidden = true
	if err := repo.Update(ctx, loc); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.Get(ctx, loc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Hidden {
		t.Error("hidden flag not persisted")
	}
}

func TestCreateRejectsBadTimezone(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.Create(context.Background(), &Location{
		OrgID: "org-1", Name: "Nowhere", Timezone: "Mars/Olympus",
	})
	if !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	// loc-pool still hosts dev-1.
	if err := repo.Delete(ctx, "loc-pool"); !errors.Is(err, ErrHasDevices) {
		t.Fatalf("expected ErrHasDevices, got %v", err)
	}

	if err := repo.Delete(ctx, "loc-retired"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "loc-retired"); !errors.Is(err, ErrNotFound) {
		t.Errorf("location still present after delete: %v", err)
	}

	if err := repo.Delete(ctx, "loc-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestZoneFallsBackToUTC(t *testing.T) {
	for _, tz := range []string{"", "Mars/Olympus"} {
		loc := &Location{Timezone: tz}
		if loc.Zone() != time.UTC {
			t.Errorf("timezone %q must resolve to UTC", tz)
		}
	}
}
