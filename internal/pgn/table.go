// Package pgn maps Parameter Group Numbers to human-readable labels.
// The table is built once at startup from a CSS Electronics style CSV
// export or a YAML file, then shared read-only across the pipeline.
package pgn

// Info annotates one PGN: a label such as "Electronic Brake Controller 1"
// and whether the reference DBC dictionary covers the PGN.
type Info struct {
	Label string `json:"label" yaml:"label"`
	InDBC bool   `json:"in_dbc" yaml:"in_dbc"`
}

// Table is an immutable PGN lookup. Build it with the loaders or with
// New/Add before handing it to the pipeline; it must not be mutated
// once processing starts.
type Table struct {
	entries map[uint32]Info
}

func New() *Table { return &Table{entries: make(map[uint32]Info)} }

// Add registers an annotation for a PGN. If the PGN is already present
// the existing entry wins: source tables should not contain duplicates,
// but when they do, the first encountered row is kept.
func (t *Table) Add(pgn uint32, info Info) {
	if _, dup := t.entries[pgn]; dup {
		return
	}
	t.entries[pgn] = info
}

// Lookup returns the annotation for pgn, if any. An unmatched PGN is
// not an error; the caller proceeds without annotation.
func (t *Table) Lookup(pgn uint32) (Info, bool) {
	if t == nil {
		return Info{}, false
	}
	info, ok := t.entries[pgn]
	return info, ok
}

// Annotate returns a pointer to the annotation or nil when the table
// has no entry, matching the optional field on enriched records.
func (t *Table) Annotate(pgn uint32) *Info {
	info, ok := t.Lookup(pgn)
	if !ok {
		return nil
	}
	return &info
}

// Len returns the number of distinct PGNs in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
