package export

import (
	"testing"

	"github.com/canlab/nexlog/internal/pgn"
)

func TestSQLite_RoundTrip(t *testing.T) {
	table := pgn.New()
	table.Add(65312, pgn.Info{Label: "Proprietary B", InDBC: true})

	sink, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	rec := sampleRecord(t, table)
	if err := sink.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Inspect through the open transaction before Close tears it down.
	row := sink.tx.QueryRow(`SELECT pgn, can_id, priority, source, destination, payload_hex, pgn_label, pgn_in_dbc FROM frames`)
	var (
		pgnVal, canID, prio, src, dst int64
		payload, label                string
		inDBC                         bool
	)
	if err := row.Scan(&pgnVal, &canID, &prio, &src, &dst, &payload, &label, &inDBC); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if pgnVal != 65312 || canID != 218046464 || prio != 3 || src != 0 || dst != 0xFF {
		t.Errorf("row = pgn %d canid %d prio %d src %d dst %d", pgnVal, canID, prio, src, dst)
	}
	if payload != "1021000000FFD0FF" {
		t.Errorf("payload = %q", payload)
	}
	if label != "Proprietary B" || !inDBC {
		t.Errorf("annotation = %q/%v", label, inDBC)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSQLite_NullableColumns(t *testing.T) {
	sink, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	rec := sampleRecord(t, nil)
	rec.Entry.Blk = nil
	if err := sink.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var blk, label any
	if err := sink.tx.QueryRow(`SELECT blk, pgn_label FROM frames`).Scan(&blk, &label); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if blk != nil || label != nil {
		t.Errorf("blk = %v, label = %v, want NULLs", blk, label)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
