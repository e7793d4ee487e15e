package history

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Simplici0/printcost/internal/db"
	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/migrations"
	"github.com/Simplici0/printcost/internal/pricing"
)

func newHistoryTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "history-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func seedEstimate(t *testing.T, database *sql.DB, createdAt, filename, totalsJSON string) {
	t.Helper()

	_, err := database.Exec(`
		INSERT INTO estimates (created_at, filename, formatted_total, breakdown, totals_json)
		VALUES (?, ?, '', '', ?)
	`, createdAt, filename, totalsJSON)
	if err != nil {
		t.Fatalf("failed to seed estimate: %v", err)
	}
}

func TestStore_SaveAndGetReadsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newHistoryTestDB(t))

	cfg := pricing.PricingConfig{
		CostOfFilamentPerSpool:  20,
		FilamentWeightPerSpoolG: 1000,
		MaterialDensity:         1.24,
		FilamentDiameterMm:      1.75,
		CurrencySymbol:          "€",
		CurrencyFormatTemplate:  "%v %s",
	}
	result := pricing.Estimate([]pricing.FilamentUsage{{ToolLabel: "tool0", LengthMm: 1000}}, nil, cfg, 3600)

	id, err := store.Save(ctx, "benchy.gcode", 3600, "admin@printcost.local", result)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	entry, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Filename != "benchy.gcode" || entry.FormattedTotal != result.FormattedTotal || entry.Breakdown != result.Breakdown {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.SavedBy != "admin@printcost.local" {
		t.Fatalf("saved_by = %q", entry.SavedBy)
	}
	if !entry.UsedDefaults || entry.MissingSpools {
		t.Fatalf("unexpected flags: %+v", entry)
	}
	if entry.Totals.Filament != result.FilamentCost || entry.Totals.Hours != 1 {
		t.Fatalf("unexpected totals: %+v", entry.Totals)
	}
	if len(entry.Tools) != 1 || entry.Tools[0].Source != "default" {
		t.Fatalf("unexpected tools: %+v", entry.Tools)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore(newHistoryTestDB(t))

	if _, err := store.Get(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListOrdersByDateDescAndFilters(t *testing.T) {
	database := newHistoryTestDB(t)
	store := NewStore(database)

	seedEstimate(t, database, "2024-01-01 10:00:00", "bracket.gcode", `{"total": 1.5}`)
	seedEstimate(t, database, "2024-01-03 12:00:00", "vase.gcode", `{"total": 3}`)
	seedEstimate(t, database, "2024-01-02 11:00:00", "bracket_v2.gcode", `not json`)

	entries, err := store.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Filename != "vase.gcode" || entries[1].Filename != "bracket_v2.gcode" || entries[2].Filename != "bracket.gcode" {
		t.Fatalf("entries are not sorted desc by created_at: %+v", entries)
	}
	if entries[0].Totals.Total != 3 || entries[1].Totals.Total != 0 {
		t.Fatalf("unexpected totals: %+v", entries)
	}

	filtered, err := store.List(context.Background(), "bracket")
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 filtered entries, got %+v", filtered)
	}
}

func TestStore_DamagedSnapshotIsLogged(t *testing.T) {
	database := newHistoryTestDB(t)
	store := NewStore(database)

	var buf bytes.Buffer
	prev := logger.Logger
	logger.Logger = logger.New(&buf, "warn")
	t.Cleanup(func() { logger.Logger = prev })

	seedEstimate(t, database, "2024-02-01 09:00:00", "broken.gcode", `{"total": `)

	entries, err := store.List(context.Background(), "broken")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Totals != (Totals{}) || entries[0].SavedBy != "" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if !strings.Contains(buf.String(), "estimate totals snapshot is damaged") {
		t.Fatalf("expected damaged snapshot warning, got %q", buf.String())
	}
}
