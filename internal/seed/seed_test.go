package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Simplici0/printcost/internal/auth"
	"github.com/Simplici0/printcost/internal/db"
	"github.com/Simplici0/printcost/internal/migrations"
	"github.com/Simplici0/printcost/internal/spools"
)

func TestRunIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := Config{
		AdminEmail:    "admin@printcost.local",
		AdminPassword: "12345",
	}

	for i := 0; i < 10; i++ {
		stats, err := Run(database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 3 {
				t.Fatalf("expected 3 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM users WHERE email = ?`, "admin@printcost.local", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM spools WHERE name = ?`, "Generic PLA", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM tool_spools WHERE tool = 0`, nil, 1)

	_, ok, err := auth.NewService(database, "secret").Authenticate(context.Background(), "admin@printcost.local", "12345")
	if err != nil || !ok {
		t.Fatalf("expected seeded admin to log in, got ok=%v err=%v", ok, err)
	}

	selected, err := spools.NewRegistry(database).Selected(context.Background())
	if err != nil {
		t.Fatalf("load selected spools: %v", err)
	}
	if selected[0].CostPerSpool != 20 || selected[0].FilamentDiameterMm != 1.75 {
		t.Fatalf("unexpected seeded spool: %+v", selected[0])
	}
}

func TestRunWithoutAdmin(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "seed-noadmin.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	stats, err := Run(database, Config{})
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Inserts != 2 {
		t.Fatalf("expected 2 inserts without admin, got %d", stats.Inserts)
	}
	assertCount(t, database, `SELECT COUNT(*) FROM users`, nil, 0)
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
