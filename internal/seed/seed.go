package seed

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/printcost/internal/auth"
)

const (
	defaultSpoolName     = "Generic PLA"
	defaultSpoolMaterial = "PLA"
	defaultSpoolCost     = 20.0
	defaultSpoolWeight   = 1000.0
	defaultSpoolDensity  = 1.24
	defaultSpoolDiameter = 1.75
	defaultTool          = 0
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	spoolID, err := ensureSpool(tx, &stats)
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureToolSelection(tx, spoolID, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hash); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureSpool(tx *sql.Tx, stats *Stats) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM spools WHERE name = ? ORDER BY id LIMIT 1`, defaultSpoolName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check default spool existence: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO spools (name, material, vendor, cost, weight, density, diameter, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, defaultSpoolName, defaultSpoolMaterial, "", defaultSpoolCost, defaultSpoolWeight, defaultSpoolDensity, defaultSpoolDiameter, true)
	if err != nil {
		return 0, fmt.Errorf("insert default spool: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read default spool id: %w", err)
	}
	stats.Inserts++
	return id, nil
}

func ensureToolSelection(tx *sql.Tx, spoolID int64, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM tool_spools WHERE tool = ?)`, defaultTool).Scan(&exists); err != nil {
		return fmt.Errorf("check tool selection existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO tool_spools (tool, spool_id) VALUES (?, ?)`, defaultTool, spoolID); err != nil {
		return fmt.Errorf("insert default tool selection: %w", err)
	}
	stats.Inserts++
	return nil
}
