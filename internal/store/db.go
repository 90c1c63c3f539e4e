package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schema creates the archive tables when missing. The archive is persistent
// across runs, so everything is IF NOT EXISTS rather than drop-and-recreate.
// The FTS5 index is kept in lockstep with the decisions table by the
// AI/AD/AU triggers; callers never touch the index directly.
const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ecli TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	date TEXT,
	url TEXT,
	pdf_path TEXT,
	ocr_pdf_path TEXT,
	full_text TEXT,
	keywords TEXT,
	metadata TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE VIRTUAL TABLE IF NOT EXISTS decisions_fts USING fts5(
	title, full_text,
	content='decisions',
	content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS decisions_ai AFTER INSERT ON decisions BEGIN
	INSERT INTO decisions_fts(rowid, title, full_text)
	VALUES (new.id, new.title, new.full_text);
END;

CREATE TRIGGER IF NOT EXISTS decisions_ad AFTER DELETE ON decisions BEGIN
	INSERT INTO decisions_fts(decisions_fts, rowid, title, full_text)
	VALUES ('delete', old.id, old.title, old.full_text);
END;

CREATE TRIGGER IF NOT EXISTS decisions_au AFTER UPDATE ON decisions BEGIN
	INSERT INTO decisions_fts(decisions_fts, rowid, title, full_text)
	VALUES ('delete', old.id, old.title, old.full_text);
	INSERT INTO decisions_fts(rowid, title, full_text)
	VALUES (new.id, new.title, new.full_text);
END;

CREATE INDEX IF NOT EXISTS idx_decisions_date ON decisions(date);
`

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open decisions db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}
