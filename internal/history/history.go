// Package history stores snapshots of computed estimates.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/pricing"
)

// ErrNotFound is returned when an estimate snapshot does not exist.
var ErrNotFound = errors.New("estimate not found")

// Totals are the numeric sums of an estimate as stored in totals_json.
type Totals struct {
	Filament    float64 `json:"filament"`
	Electricity float64 `json:"electricity"`
	Printer     float64 `json:"printer"`
	Total       float64 `json:"total"`
	Hours       float64 `json:"hours"`
}

// ToolLine is a stored per-tool line item.
type ToolLine struct {
	Tool      int     `json:"tool"`
	Label     string  `json:"label"`
	LengthMm  float64 `json:"length_mm"`
	VolumeCm3 float64 `json:"volume_cm3"`
	WeightG   float64 `json:"weight_g"`
	Cost      float64 `json:"cost"`
	Source    string  `json:"source"`
}

// Entry is a stored estimate.
type Entry struct {
	ID             int64      `json:"id"`
	CreatedAt      string     `json:"created_at"`
	Filename       string     `json:"filename"`
	SavedBy        string     `json:"saved_by"`
	PrintSeconds   float64    `json:"print_seconds"`
	FormattedTotal string     `json:"formatted_total"`
	Breakdown      string     `json:"breakdown"`
	UsedDefaults   bool       `json:"used_defaults"`
	MissingSpools  bool       `json:"missing_spools"`
	Totals         Totals     `json:"totals"`
	Tools          []ToolLine `json:"tools"`
}

// Store persists estimates in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save records result for filename and returns the new snapshot ID. savedBy is the email of the
// logged in user, empty for anonymous estimates.
func (s *Store) Save(ctx context.Context, filename string, printSeconds float64, savedBy string, result pricing.Result) (int64, error) {
	totals, err := json.Marshal(totalsOf(result))
	if err != nil {
		return 0, fmt.Errorf("encode totals: %w", err)
	}
	tools, err := json.Marshal(toolLinesOf(result))
	if err != nil {
		return 0, fmt.Errorf("encode tool lines: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO estimates (
			filename, saved_by, print_seconds, formatted_total, breakdown, used_defaults, missing_spools, totals_json, tools_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, filename, savedBy, printSeconds, result.FormattedTotal, result.Breakdown,
		result.UsedDefaultFilamentValues, result.MissingSpoolData, string(totals), string(tools))
	if err != nil {
		return 0, fmt.Errorf("insert estimate: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read estimate id: %w", err)
	}
	return id, nil
}

// List returns stored estimates newest first, optionally filtered by filename.
func (s *Store) List(ctx context.Context, query string) ([]Entry, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, filename, saved_by, print_seconds, formatted_total, breakdown, used_defaults, missing_spools, totals_json, tools_json
		FROM estimates
		WHERE (? = '' OR filename LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate estimates: %w", err)
	}

	return entries, nil
}

// Get returns a stored estimate exactly as it was saved.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, filename, saved_by, print_seconds, formatted_total, breakdown, used_defaults, missing_spools, totals_json, tools_json
		FROM estimates
		WHERE id = ?
	`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var totalsJSON, toolsJSON string
	err := row.Scan(&e.ID, &e.CreatedAt, &e.Filename, &e.SavedBy, &e.PrintSeconds, &e.FormattedTotal, &e.Breakdown,
		&e.UsedDefaults, &e.MissingSpools, &totalsJSON, &toolsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan estimate: %w", err)
	}

	// A damaged snapshot still lists with its formatted strings.
	if err := json.Unmarshal([]byte(totalsJSON), &e.Totals); err != nil {
		logger.Warn("estimate totals snapshot is damaged", "id", e.ID, "error", err)
		e.Totals = Totals{}
	}
	if err := json.Unmarshal([]byte(toolsJSON), &e.Tools); err != nil {
		logger.Warn("estimate tool snapshot is damaged", "id", e.ID, "error", err)
		e.Tools = nil
	}
	if e.Tools == nil {
		e.Tools = []ToolLine{}
	}
	return e, nil
}

func totalsOf(r pricing.Result) Totals {
	return Totals{
		Filament:    r.FilamentCost,
		Electricity: r.ElectricityCost,
		Printer:     r.PrinterCost,
		Total:       r.TotalCost,
		Hours:       r.Hours,
	}
}

func toolLinesOf(r pricing.Result) []ToolLine {
	lines := make([]ToolLine, 0, len(r.Tools))
	for _, t := range r.Tools {
		lines = append(lines, ToolLine{
			Tool:      t.ToolIndex,
			Label:     t.ToolLabel,
			LengthMm:  t.LengthMm,
			VolumeCm3: t.VolumeCm3,
			WeightG:   t.WeightG,
			Cost:      t.Cost,
			Source:    string(t.Source),
		})
	}
	return lines
}
