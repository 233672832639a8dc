// Package database keeps a sqlite index of captured baselines: their
// dimensions, perceptual fingerprints and timestamps. The index lets tools
// answer "what baselines exist" and verify fingerprints without decoding
// the PNG files.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"visualcheck/types"

	_ "github.com/mattn/go-sqlite3"
)

// Index wraps the sqlite connection holding baseline metadata.
type Index struct {
	db *sql.DB
}

// Init opens (creating if needed) the index database at the given path.
func Init(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open index %s: %v", types.ErrIO, dbPath, err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS baselines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		width INTEGER,
		height INTEGER,
		fingerprint TEXT,
		created_at TEXT,
		updated_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_name ON baselines(name);
	CREATE INDEX IF NOT EXISTS idx_fingerprint ON baselines(fingerprint);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: cannot create index schema: %v", types.ErrIO, err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// RecordBaseline inserts or refreshes one baseline's metadata. The
// created_at timestamp survives re-captures; updated_at always moves.
func (x *Index) RecordBaseline(name string, width, height int, fingerprint string) error {
	if name == "" {
		return fmt.Errorf("%w: baseline name cannot be empty", types.ErrInvalidArgument)
	}

	now := time.Now().Format(time.RFC3339)
	stmt, err := x.db.Prepare(`
		INSERT INTO baselines (name, width, height, fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			width = excluded.width,
			height = excluded.height,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("%w: cannot prepare insert for %s: %v", types.ErrIO, name, err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(name, width, height, fingerprint, now, now); err != nil {
		return fmt.Errorf("%w: cannot index baseline %s: %v", types.ErrIO, name, err)
	}
	return nil
}

// LookupFingerprint returns the stored fingerprint string for a baseline.
func (x *Index) LookupFingerprint(name string) (string, error) {
	var fingerprint string
	err := x.db.QueryRow("SELECT fingerprint FROM baselines WHERE name = ?", name).Scan(&fingerprint)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s not indexed", types.ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("%w: index lookup for %s: %v", types.ErrIO, name, err)
	}
	return fingerprint, nil
}

// BaselineInfo is one indexed baseline row.
type BaselineInfo struct {
	Name        string
	Width       int
	Height      int
	Fingerprint string
	CreatedAt   string
	UpdatedAt   string
}

// ListBaselines returns every indexed baseline ordered by name.
func (x *Index) ListBaselines() ([]BaselineInfo, error) {
	rows, err := x.db.Query(`
		SELECT name, width, height, fingerprint, created_at, updated_at
		FROM baselines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: index query: %v", types.ErrIO, err)
	}
	defer rows.Close()

	var infos []BaselineInfo
	for rows.Next() {
		var info BaselineInfo
		if err := rows.Scan(&info.Name, &info.Width, &info.Height,
			&info.Fingerprint, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: index row scan: %v", types.ErrIO, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// IndexStats summarizes the contents of the index.
type IndexStats struct {
	TotalBaselines     int
	UniqueFingerprints int
}

// Stats counts indexed baselines and distinct fingerprints.
func (x *Index) Stats() (*IndexStats, error) {
	var stats IndexStats
	if err := x.db.QueryRow("SELECT COUNT(*) FROM baselines").Scan(&stats.TotalBaselines); err != nil {
		return nil, fmt.Errorf("%w: cannot count baselines: %v", types.ErrIO, err)
	}
	if err := x.db.QueryRow("SELECT COUNT(DISTINCT fingerprint) FROM baselines").Scan(&stats.UniqueFingerprints); err != nil {
		return nil, fmt.Errorf("%w: cannot count fingerprints: %v", types.ErrIO, err)
	}
	return &stats, nil
}
