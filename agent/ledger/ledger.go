// Package ledger keeps the agent's durable local state: which packages
// are installed, and completion reports not yet delivered to the server.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"fleetdeploy/internal/protocol"
)

// Ledger is the agent's local sqlite store
type Ledger struct {
	db *sql.DB
}

// Open opens (and migrates) the ledger database at path
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, err
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS installed_packages (
			name TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			package_id INTEGER NOT NULL,
			installed_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pending_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id INTEGER NOT NULL,
			payload TEXT NOT NULL,
			queued_at INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return nil, fmt.Errorf("failed to migrate ledger: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// InstalledVersion returns the recorded version for a package name, and
// whether any version is installed at all.
func (l *Ledger) InstalledVersion(name string) (string, bool, error) {
	var version string
	err := l.db.QueryRow(
		`SELECT version FROM installed_packages WHERE name = ?`, name).Scan(&version)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return version, true, nil
}

// RecordInstall marks a package installed at a version. An existing row
// for the name is replaced, so upgrades keep one row per package.
func (l *Ledger) RecordInstall(name, version string, packageID int) error {
	_, err := l.db.Exec(
		`INSERT INTO installed_packages (name, version, package_id, installed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   version = excluded.version,
		   package_id = excluded.package_id,
		   installed_at = excluded.installed_at`,
		name, version, packageID, time.Now().Unix())
	return err
}

// RecordUninstall removes a package from the installed set
func (l *Ledger) RecordUninstall(name string) error {
	_, err := l.db.Exec(`DELETE FROM installed_packages WHERE name = ?`, name)
	return err
}

// QueuedEvent is a completion report awaiting delivery
type QueuedEvent struct {
	ID    int64
	JobID int
	Event protocol.JobEvent
}

// QueueEvent stores a completion report for later delivery
func (l *Ledger) QueueEvent(jobID int, ev protocol.JobEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = l.db.Exec(
		`INSERT INTO pending_events (job_id, payload, queued_at) VALUES (?, ?, ?)`,
		jobID, string(payload), time.Now().Unix())
	return err
}

// PendingEvents returns queued reports in insertion order
func (l *Ledger) PendingEvents() ([]QueuedEvent, error) {
	rows, err := l.db.Query(
		`SELECT id, job_id, payload FROM pending_events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []QueuedEvent
	for rows.Next() {
		var qe QueuedEvent
		var payload string
		if err := rows.Scan(&qe.ID, &qe.JobID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &qe.Event); err != nil {
			return nil, fmt.Errorf("failed to decode queued event %d: %w", qe.ID, err)
		}
		events = append(events, qe)
	}
	return events, rows.Err()
}

// DeleteEvent removes a delivered report from the queue
func (l *Ledger) DeleteEvent(id int64) error {
	_, err := l.db.Exec(`DELETE FROM pending_events WHERE id = ?`, id)
	return err
}
