package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wow-terminal/internal/logger"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
	now func() time.Time
}

func dbPath() string {
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "market.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "market.db")
}

const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Open opens (or creates) the SQLite database at path and runs migrations.
// An empty path uses market.db in the working directory.
func Open(path string) (*DB, error) {
	if path == "" {
		path = dbPath()
	}
	sqlDB, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB, now: time.Now}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh database leaves version at 0.
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS prices (
				timestamp INTEGER NOT NULL,
				realm_id  INTEGER NOT NULL,
				item_id   INTEGER NOT NULL,
				min_price REAL,
				avg_price REAL,
				max_price REAL,
				volume    INTEGER,
				PRIMARY KEY (timestamp, realm_id, item_id)
			);
			CREATE INDEX IF NOT EXISTS idx_prices_series ON prices(item_id, realm_id, timestamp);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1 (prices)")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS item_names (
				item_id    INTEGER PRIMARY KEY,
				name       TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (item names)")
	}

	return nil
}
