// Package pipeline turns raw sniffer log lines into enriched J1939
// records: parse the vendor wrapper, decode the RP1210 blob, rebuild
// the 29-bit identifier, annotate the PGN. Each line is an independent
// pure function of the line plus the read-only PGN table, so the map
// runs on a worker pool; a sequence-numbered reorder stage keeps the
// output in input order.
package pipeline

import (
	"fmt"

	"github.com/canlab/nexlog/internal/j1939"
	"github.com/canlab/nexlog/internal/nexlog"
	"github.com/canlab/nexlog/internal/pgn"
)

// Record is one fully enriched frame. No partial records exist: a line
// either produces a complete Record or nothing.
type Record struct {
	Entry nexlog.Entry `json:"entry"`
	Frame j1939.Frame  `json:"frame"`
	CANID uint32       `json:"can_id"`
	PGN   *pgn.Info    `json:"pgn_info,omitempty"`
}

// CANIDHex renders the identifier the way the debug tooling expects it.
func (r *Record) CANIDHex() string { return fmt.Sprintf("%08X", r.CANID) }

// Process transforms one log line. Skip conditions and parse failures
// surface as the nexlog package's errors; table may be nil, in which
// case no record carries an annotation.
func Process(line string, table *pgn.Table) (*Record, error) {
	entry, err := nexlog.ParseLine(line)
	if err != nil {
		return nil, err
	}
	frame, err := j1939.DecodeHex(entry.Hex[:2*j1939.BlobLen])
	if err != nil {
		// Group counting guarantees 19 bytes; reaching this means the
		// payload capture was misaligned.
		return nil, err
	}
	return &Record{
		Entry: *entry,
		Frame: frame,
		CANID: frame.CANID(),
		PGN:   table.Annotate(frame.PGN),
	}, nil
}
