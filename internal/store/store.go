// Package store persists the operational state spec.md's Non-goals leave
// out of the core by design: a small settings table (currently just the
// JWT signing secret) and a lifecycle audit log of battle start/
// reinforcement/conclude events. It deliberately never stores per-tick
// deltas — that remains "persistence of battle history", which spec.md
// §1 names as a Non-goal. Schema and access patterns are adapted from the
// teacher's database.go (same migrate-on-open shape, same driver).
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite connection used for operational settings and the
// lifecycle audit log.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the sqlite database at path and runs migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS battle_audit (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		battle_id      TEXT NOT NULL,
		system_id      TEXT NOT NULL,
		event          TEXT NOT NULL,
		reason         TEXT NOT NULL DEFAULT '',
		victor_faction INTEGER,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_battle_audit_battle ON battle_audit(battle_id);
	`
	_, err := s.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	return nil
}

// GetSetting returns the value for key, or "" if unset. Mirrors the
// teacher's Auth.loadOrCreateSecret lookup (auth.go).
func (s *Store) GetSetting(key string) string {
	var v string
	if err := s.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting upserts key/value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.conn.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// RecordLifecycleEvent appends one row to the battle audit log: "started",
// "reinforced", or "concluded" (with reason and, if applicable, the
// winning faction).
func (s *Store) RecordLifecycleEvent(battleID, systemID, event, reason string, victorFaction *int64) error {
	var v sql.NullInt64
	if victorFaction != nil {
		v = sql.NullInt64{Int64: *victorFaction, Valid: true}
	}
	_, err := s.conn.Exec(
		`INSERT INTO battle_audit (battle_id, system_id, event, reason, victor_faction) VALUES (?, ?, ?, ?, ?)`,
		battleID, systemID, event, reason, v,
	)
	return err
}

// AuditRow is one row of the battle_audit table.
type AuditRow struct {
	ID            int64
	BattleID      string
	SystemID      string
	Event         string
	Reason        string
	VictorFaction sql.NullInt64
	CreatedAt     string
}

// RecentAudit returns the most recent lifecycle events, newest first.
func (s *Store) RecentAudit(limit int) ([]AuditRow, error) {
	rows, err := s.conn.Query(
		`SELECT id, battle_id, system_id, event, reason, victor_faction, created_at
		 FROM battle_audit ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.ID, &r.BattleID, &r.SystemID, &r.Event, &r.Reason, &r.VictorFaction, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
