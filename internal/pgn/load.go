package pgn

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile builds a table from path, choosing the format by extension:
// .yaml/.yml for the YAML form, anything else for the semicolon CSV.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return LoadCSV(f)
	}
}

// LoadCSV reads a semicolon-separated PGN list in the CSS Electronics
// export layout: a header row, then PGN;label;in-DBC per row. Rows with
// a non-numeric PGN are skipped (the export carries section headings).
func LoadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1 // export rows vary in trailing columns
	cr.LazyQuotes = true
	t := New()
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pgn csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) < 2 {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(rec[0]), 10, 32)
		if err != nil {
			continue
		}
		info := Info{Label: strings.TrimSpace(rec[1])}
		if len(rec) > 2 {
			info.InDBC = truthy(rec[2])
		}
		t.Add(uint32(n), info)
	}
	return t, nil
}

type yamlEntry struct {
	PGN   uint32 `yaml:"pgn"`
	Label string `yaml:"label"`
	InDBC bool   `yaml:"in_dbc"`
}

// LoadYAML reads a list of {pgn, label, in_dbc} entries.
func LoadYAML(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var entries []yamlEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("pgn yaml: %w", err)
	}
	t := New()
	for _, e := range entries {
		t.Add(e.PGN, Info{Label: e.Label, InDBC: e.InDBC})
	}
	return t, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "x", "y", "yes", "true":
		return true
	}
	return false
}
