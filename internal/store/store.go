package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for rocketindex's persisted tables:
// files, symbols, refs, opens, subclasses, members, metadata, plus the
// optional file_blame enrichment and an FTS5 shadow of symbol names. There
// is deliberately no resolved-reference, call-graph, or implementation
// table: the specification resolves at query time only, never at write
// time (SPEC_FULL §4.3).
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables, indexes, and the FTS5 shadow table. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id                  INTEGER PRIMARY KEY,
  path                TEXT NOT NULL UNIQUE,
  language            TEXT NOT NULL,
  content_hash        INTEGER NOT NULL,
  line_count          INTEGER NOT NULL DEFAULT 0,
  last_modified       TIMESTAMP,
  compilation_order   INTEGER,
  last_indexed        TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id                INTEGER PRIMARY KEY,
  file_id           INTEGER NOT NULL REFERENCES files(id),
  name              TEXT NOT NULL,
  qualified_name    TEXT NOT NULL,
  kind              TEXT NOT NULL,
  start_line        INTEGER NOT NULL,
  start_col         INTEGER NOT NULL,
  end_line          INTEGER NOT NULL,
  end_col           INTEGER NOT NULL,
  visibility        TEXT NOT NULL DEFAULT 'Public',
  doc_comment       TEXT NOT NULL DEFAULT '',
  type_signature    TEXT NOT NULL DEFAULT '',
  source            TEXT NOT NULL DEFAULT 'syntactic',
  signature_hash    INTEGER NOT NULL,
  parent_symbol_id  INTEGER REFERENCES symbols(id)
);

CREATE TABLE IF NOT EXISTS refs (
  id                  INTEGER PRIMARY KEY,
  file_id             INTEGER NOT NULL REFERENCES files(id),
  identifier          TEXT NOT NULL,
  start_line          INTEGER NOT NULL,
  start_col           INTEGER NOT NULL,
  end_line            INTEGER NOT NULL,
  end_col             INTEGER NOT NULL,
  container_symbol_id INTEGER REFERENCES symbols(id)
);

CREATE TABLE IF NOT EXISTS opens (
  id          INTEGER PRIMARY KEY,
  file_id     INTEGER NOT NULL REFERENCES files(id),
  module_path TEXT NOT NULL,
  line        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subclasses (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  child_qualified TEXT NOT NULL,
  parent_written  TEXT NOT NULL,
  line            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
  id         INTEGER PRIMARY KEY,
  symbol_id  INTEGER NOT NULL REFERENCES symbols(id),
  name       TEXT NOT NULL,
  kind       TEXT NOT NULL,
  start_line INTEGER NOT NULL,
  start_col  INTEGER NOT NULL,
  end_line   INTEGER NOT NULL,
  end_col    INTEGER NOT NULL,
  visibility TEXT NOT NULL DEFAULT 'Public'
);

CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS file_blame (
  file_id          INTEGER PRIMARY KEY REFERENCES files(id),
  last_commit      TEXT NOT NULL,
  last_author      TEXT NOT NULL,
  last_author_time TIMESTAMP
);

CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
  name, qualified_name, content='symbols', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS symbols_fts_ai AFTER INSERT ON symbols BEGIN
  INSERT INTO symbols_fts(rowid, name, qualified_name) VALUES (new.id, new.name, new.qualified_name);
END;

CREATE TRIGGER IF NOT EXISTS symbols_fts_ad AFTER DELETE ON symbols BEGIN
  INSERT INTO symbols_fts(symbols_fts, rowid, name, qualified_name) VALUES ('delete', old.id, old.name, old.qualified_name);
END;

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_qualified ON symbols(qualified_name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_symbol_id);
CREATE INDEX IF NOT EXISTS idx_symbols_hash ON symbols(signature_hash);
CREATE INDEX IF NOT EXISTS idx_refs_file ON refs(file_id);
CREATE INDEX IF NOT EXISTS idx_refs_identifier ON refs(identifier);
CREATE INDEX IF NOT EXISTS idx_refs_container ON refs(container_symbol_id);
CREATE INDEX IF NOT EXISTS idx_opens_file ON opens(file_id);
CREATE INDEX IF NOT EXISTS idx_opens_module ON opens(module_path);
CREATE INDEX IF NOT EXISTS idx_subclasses_file ON subclasses(file_id);
CREATE INDEX IF NOT EXISTS idx_subclasses_child ON subclasses(child_qualified);
CREATE INDEX IF NOT EXISTS idx_subclasses_parent ON subclasses(parent_written);
CREATE INDEX IF NOT EXISTS idx_members_symbol ON members(symbol_id);
`

// DeleteFileData transactionally removes all rows owned by a file, in
// FK-respecting order. This is the "clear_file" half of the batch write
// path (SPEC_FULL §4.3: clear_file(path) + bulk inserts, one transaction).
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFileDataTx(tx execer, fileID int64) error {
	rows, err := tx.Query("SELECT id FROM symbols WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query symbols: %w", err)
	}
	var symbolIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan symbol id: %w", err)
		}
		symbolIDs = append(symbolIDs, id)
	}
	rows.Close()

	if len(symbolIDs) > 0 {
		placeholders := placeholderList(len(symbolIDs))
		args := int64sToArgs(symbolIDs)
		if _, err := tx.Exec("DELETE FROM members WHERE symbol_id IN ("+placeholders+")", args...); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
	}

	for _, q := range []string{
		"DELETE FROM refs WHERE file_id = ?",
		"DELETE FROM opens WHERE file_id = ?",
		"DELETE FROM subclasses WHERE file_id = ?",
		"DELETE FROM symbols WHERE file_id = ?",
		"DELETE FROM file_blame WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	return nil
}

// execer is satisfied by both *sql.Tx and *sql.DB; deleteFileDataTx and its
// callers only need Query/Exec.
type execer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}
