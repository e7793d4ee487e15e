// Package spools keeps the filament spool inventory and which spool is loaded on each tool.
package spools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/printcost/internal/pricing"
)

// ErrNotFound is returned when a spool or tool selection does not exist.
var ErrNotFound = errors.New("spool not found")

// ValidationError reports a rejected spool field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Spool is a physical filament spool with its material profile.
type Spool struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Material string  `json:"material"`
	Vendor   string  `json:"vendor"`
	Cost     float64 `json:"cost"`
	Weight   float64 `json:"weight"`
	Density  float64 `json:"density"`
	Diameter float64 `json:"diameter"`
	Active   bool    `json:"active"`
}

// Record converts the spool into the values the cost engine consumes.
func (s Spool) Record() pricing.SpoolRecord {
	return pricing.SpoolRecord{
		CostPerSpool:       s.Cost,
		SpoolWeightG:       s.Weight,
		MaterialDensity:    s.Density,
		FilamentDiameterMm: s.Diameter,
	}
}

// Validate trims text fields and checks numeric ranges.
func (s *Spool) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Material = strings.TrimSpace(s.Material)
	s.Vendor = strings.TrimSpace(s.Vendor)

	switch {
	case s.Name == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case s.Cost < 0:
		return &ValidationError{Field: "cost", Reason: "must be greater than or equal to 0"}
	case s.Weight < 0:
		return &ValidationError{Field: "weight", Reason: "must be greater than or equal to 0"}
	case !(s.Density > 0):
		return &ValidationError{Field: "density", Reason: "must be greater than 0"}
	case !(s.Diameter > 0):
		return &ValidationError{Field: "diameter", Reason: "must be greater than 0"}
	}
	return nil
}

// Registry stores spools and tool selections in SQLite.
type Registry struct {
	db *sql.DB
}

// NewRegistry returns a registry backed by db.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Create inserts a new spool and returns it with its ID.
func (r *Registry) Create(ctx context.Context, s Spool) (Spool, error) {
	if err := s.Validate(); err != nil {
		return Spool{}, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO spools (name, material, vendor, cost, weight, density, diameter, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Name, s.Material, s.Vendor, s.Cost, s.Weight, s.Density, s.Diameter, s.Active)
	if err != nil {
		return Spool{}, fmt.Errorf("insert spool: %w", err)
	}

	s.ID, err = result.LastInsertId()
	if err != nil {
		return Spool{}, fmt.Errorf("read spool id: %w", err)
	}
	return s, nil
}

// Update replaces all fields of an existing spool and returns the stored values.
func (r *Registry) Update(ctx context.Context, s Spool) (Spool, error) {
	if err := s.Validate(); err != nil {
		return Spool{}, err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE spools
		SET
			name = ?,
			material = ?,
			vendor = ?,
			cost = ?,
			weight = ?,
			density = ?,
			diameter = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, s.Name, s.Material, s.Vendor, s.Cost, s.Weight, s.Density, s.Diameter, s.Active, s.ID)
	if err != nil {
		return Spool{}, fmt.Errorf("update spool: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Spool{}, fmt.Errorf("update spool: %w", err)
	}
	if affected == 0 {
		return Spool{}, ErrNotFound
	}
	return r.Get(ctx, s.ID)
}

// Get returns a single spool.
func (r *Registry) Get(ctx context.Context, id int64) (Spool, error) {
	var s Spool
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, material, vendor, cost, weight, density, diameter, active
		FROM spools
		WHERE id = ?
	`, id).Scan(&s.ID, &s.Name, &s.Material, &s.Vendor, &s.Cost, &s.Weight, &s.Density, &s.Diameter, &s.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Spool{}, ErrNotFound
	}
	if err != nil {
		return Spool{}, fmt.Errorf("query spool: %w", err)
	}
	return s, nil
}

// List returns every spool, newest first.
func (r *Registry) List(ctx context.Context) ([]Spool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, material, vendor, cost, weight, density, diameter, active
		FROM spools
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query spools: %w", err)
	}
	defer rows.Close()

	spools := make([]Spool, 0)
	for rows.Next() {
		var s Spool
		if err := rows.Scan(&s.ID, &s.Name, &s.Material, &s.Vendor, &s.Cost, &s.Weight, &s.Density, &s.Diameter, &s.Active); err != nil {
			return nil, fmt.Errorf("scan spool: %w", err)
		}
		spools = append(spools, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spools: %w", err)
	}

	return spools, nil
}

// Select loads spoolID onto tool, replacing any previous selection.
func (r *Registry) Select(ctx context.Context, tool int, spoolID int64) error {
	if tool < 0 {
		return &ValidationError{Field: "tool", Reason: "must be greater than or equal to 0"}
	}
	if _, err := r.Get(ctx, spoolID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_spools (tool, spool_id)
		VALUES (?, ?)
		ON CONFLICT(tool) DO UPDATE SET spool_id = excluded.spool_id, updated_at = CURRENT_TIMESTAMP
	`, tool, spoolID)
	if err != nil {
		return fmt.Errorf("select spool for tool %d: %w", tool, err)
	}
	return nil
}

// Deselect clears the spool of tool.
func (r *Registry) Deselect(ctx context.Context, tool int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tool_spools WHERE tool = ?`, tool)
	if err != nil {
		return fmt.Errorf("deselect tool %d: %w", tool, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deselect tool %d: %w", tool, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Selected returns the spool records of all tools with an active spool loaded.
// The map is never nil, so a tool without a selection is reported as missing by the cost engine.
func (r *Registry) Selected(ctx context.Context) (pricing.Spools, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts.tool, s.id, s.name, s.material, s.vendor, s.cost, s.weight, s.density, s.diameter, s.active
		FROM tool_spools ts
		JOIN spools s ON s.id = ts.spool_id
		WHERE s.active = TRUE
		ORDER BY ts.tool
	`)
	if err != nil {
		return nil, fmt.Errorf("query selected spools: %w", err)
	}
	defer rows.Close()

	selected := make(pricing.Spools)
	for rows.Next() {
		var tool int
		var s Spool
		if err := rows.Scan(&tool, &s.ID, &s.Name, &s.Material, &s.Vendor, &s.Cost, &s.Weight, &s.Density, &s.Diameter, &s.Active); err != nil {
			return nil, fmt.Errorf("scan selected spool: %w", err)
		}
		selected[tool] = s.Record()
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selected spools: %w", err)
	}

	return selected, nil
}
