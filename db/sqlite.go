package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ConnectToSQLite initializes and returns a SQLite connection
func ConnectToSQLite(dbPath string) (*sql.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create directory for SQLite")
	}

	// WAL plus a generous busy timeout keeps concurrent scan writers from
	// tripping over each other
	dsn := dbPath + "?_journal=WAL&_timeout=30000&_busy_timeout=30000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(15)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA mmap_size=268435456",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, errors.Wrapf(err, "failed to set %s", pragma)
		}
	}

	if err = db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping SQLite database")
	}

	log.Info().Str("path", dbPath).Msg("Connected to SQLite database")
	return db, nil
}

// InitializeSchema creates all the necessary tables if they don't exist
func InitializeSchema(db *sql.DB) error {
	// Create clients table
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create clients table")
	}

	// Create generated_scripts table
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS generated_scripts (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		template TEXT NOT NULL,
		content TEXT NOT NULL,
		output_path TEXT,
		warnings TEXT, -- JSON array
		generated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id)
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create generated_scripts table")
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generated_scripts_client_id ON generated_scripts(client_id)`)
	if err != nil {
		return errors.Wrap(err, "failed to create index on generated_scripts.client_id")
	}

	// Create scans table
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		config TEXT NOT NULL, -- JSON object
		status TEXT NOT NULL,
		progress INTEGER DEFAULT 0,
		error TEXT,
		raw_output TEXT,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		FOREIGN KEY (client_id) REFERENCES clients(id)
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create scans table")
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_scans_client_id ON scans(client_id)`)
	if err != nil {
		return errors.Wrap(err, "failed to create index on scans.client_id")
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status)`)
	if err != nil {
		return errors.Wrap(err, "failed to create index on scans.status")
	}

	// Create assets table
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		ip_address TEXT NOT NULL,
		mac_address TEXT,
		category TEXT NOT NULL,
		operating_system TEXT,
		criticality TEXT NOT NULL,
		status TEXT NOT NULL,
		location TEXT,
		owner TEXT,
		description TEXT,
		tags TEXT, -- JSON array
		scan_ids TEXT, -- JSON array
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id)
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create assets table")
	}

	// One asset per (client, IP); MAC is only a secondary lookup key
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_assets_client_ip ON assets(client_id, ip_address)`)
	if err != nil {
		return errors.Wrap(err, "failed to create unique index on assets(client_id, ip_address)")
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_assets_mac ON assets(mac_address)`)
	if err != nil {
		return errors.Wrap(err, "failed to create index on assets.mac_address")
	}

	// Create asset_services table
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS asset_services (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id TEXT NOT NULL,
		port INTEGER NOT NULL,
		protocol TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT,
		state TEXT NOT NULL,
		FOREIGN KEY (asset_id) REFERENCES assets(id)
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create asset_services table")
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_asset_services_asset_id ON asset_services(asset_id)`)
	if err != nil {
		return errors.Wrap(err, "failed to create index on asset_services.asset_id")
	}

	// Create asset_groups table
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS asset_groups (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id)
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create asset_groups table")
	}

	// Create asset_group_members table
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS asset_group_members (
		group_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		PRIMARY KEY (group_id, asset_id),
		FOREIGN KEY (group_id) REFERENCES asset_groups(id),
		FOREIGN KEY (asset_id) REFERENCES assets(id)
	)`)
	if err != nil {
		return errors.Wrap(err, "failed to create asset_group_members table")
	}

	log.Info().Msg("Database schema initialized successfully")
	return nil
}

// RecoverInterruptedScans marks scans left in a non-terminal state by a
// previous process as failed so the queue starts clean.
func RecoverInterruptedScans(db *sql.DB) error {
	result, err := db.Exec(
		`UPDATE scans SET status = ?, error = ?, completed_at = ? WHERE status IN (?, ?)`,
		"failed", "interrupted by shutdown", time.Now().Format(time.RFC3339), "queued", "running")
	if err != nil {
		return errors.Wrap(err, "failed to recover interrupted scans")
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		log.Warn().Int64("count", n).Msg("Marked interrupted scans as failed")
	}
	return nil
}
