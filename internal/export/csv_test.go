package export

import (
	"strings"
	"testing"

	"github.com/canlab/nexlog/internal/pgn"
	"github.com/canlab/nexlog/internal/pipeline"
)

const goodLine = "000001.226604 (000.003827)  Rx() ID = 00 Ret = 0019 Sz = 02048 Blk = 1 Data:  00 11 EE B0 00 20 FF 00 03 00 FF 10 21 00 00 00 FF D0 FF"

func sampleRecord(t *testing.T, table *pgn.Table) *pipeline.Record {
	t.Helper()
	rec, err := pipeline.Process(goodLine, table)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return rec
}

func TestCSV_Rows(t *testing.T) {
	table := pgn.New()
	table.Add(65312, pgn.Info{Label: "Proprietary B", InDBC: true})

	var buf strings.Builder
	sink, err := NewCSV(&buf)
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	if err := sink.Write(sampleRecord(t, table)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Original;LogTimestamp;LogID;") {
		t.Errorf("header = %q", lines[0])
	}
	row := strings.Split(lines[1], ";")
	if len(row) != len(csvHeader) {
		t.Fatalf("row has %d fields, want %d", len(row), len(csvHeader))
	}
	check := map[string]string{
		"LogTimestamp": "000001.226604",
		"Sz":           "2048",
		"Blk":          "1",
		"PGN":          "00FF20",
		"Priority":     "03",
		"Source":       "00",
		"Destination":  "FF",
		"DataBytes":    "1021000000FFD0FF",
		"DataLength":   "8",
		"ID":           "0CFF2000",
		"PgnLabel":     "Proprietary B",
		"PgnInDbc":     "true",
	}
	for name, want := range check {
		idx := -1
		for i, h := range csvHeader {
			if h == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			t.Fatalf("column %q not in header", name)
		}
		if row[idx] != want {
			t.Errorf("%s = %q, want %q", name, row[idx], want)
		}
	}
}

func TestCSV_NoAnnotationLeavesCellsEmpty(t *testing.T) {
	var buf strings.Builder
	sink, err := NewCSV(&buf)
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	if err := sink.Write(sampleRecord(t, nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasSuffix(lines[1], ";;") {
		t.Errorf("row should end with empty label/in-dbc cells: %q", lines[1])
	}
}
