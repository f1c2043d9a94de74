package export

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canlab/nexlog/internal/pipeline"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS frames (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    original      TEXT NOT NULL,
    log_timestamp TEXT NOT NULL,
    log_id        INTEGER NOT NULL,
    ret           INTEGER NOT NULL,
    sz            INTEGER NOT NULL,
    blk           INTEGER,
    log_data_hex  TEXT NOT NULL,
    timestamp     REAL NOT NULL,
    echo_byte     INTEGER NOT NULL,
    pgn           INTEGER NOT NULL,
    priority      INTEGER NOT NULL,
    source        INTEGER NOT NULL,
    destination   INTEGER NOT NULL,
    payload_hex   TEXT NOT NULL,
    can_id        INTEGER NOT NULL,
    pgn_label     TEXT,
    pgn_in_dbc    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_frames_pgn ON frames(pgn);
CREATE INDEX IF NOT EXISTS idx_frames_can_id ON frames(can_id);
`

const sqliteInsert = `
INSERT INTO frames (
    original, log_timestamp, log_id, ret, sz, blk, log_data_hex,
    timestamp, echo_byte, pgn, priority, source, destination,
    payload_hex, can_id, pgn_label, pgn_in_dbc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite stores records in a single-table database so a conversion can
// be inspected with ordinary SQL instead of a spreadsheet. All inserts
// run in one transaction committed on Close.
type SQLite struct {
	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt
}

// NewSQLite opens (or creates) the database at path. ":memory:" works
// for tests.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=OFF")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	stmt, err := tx.Prepare(sqliteInsert)
	if err != nil {
		_ = tx.Rollback()
		_ = db.Close()
		return nil, fmt.Errorf("sqlite prepare: %w", err)
	}
	return &SQLite{db: db, tx: tx, stmt: stmt}, nil
}

func (s *SQLite) Write(rec *pipeline.Record) error {
	var blk any
	if rec.Entry.Blk != nil {
		blk = *rec.Entry.Blk
	}
	var label, inDBC any
	if rec.PGN != nil {
		label = rec.PGN.Label
		inDBC = rec.PGN.InDBC
	}
	_, err := s.stmt.Exec(
		rec.Entry.Line,
		rec.Entry.Timestamp,
		rec.Entry.LogID,
		rec.Entry.Ret,
		rec.Entry.Sz,
		blk,
		rec.Entry.Hex,
		float64(rec.Frame.Timestamp),
		rec.Frame.Echo,
		rec.Frame.PGN,
		rec.Frame.Priority,
		rec.Frame.Source,
		rec.Frame.Destination,
		strings.ToUpper(hex.EncodeToString(rec.Frame.Data[:])),
		rec.CANID,
		label,
		inDBC,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	_ = s.stmt.Close()
	if err := s.tx.Commit(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return s.db.Close()
}
