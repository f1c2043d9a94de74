// Package export writes enriched records to the debug sinks: the
// semicolon-separated CSV the original workflow eyeballed for parsing
// bugs, and a SQLite database for ad-hoc SQL inspection.
package export

import "github.com/canlab/nexlog/internal/pipeline"

// Sink consumes an ordered sequence of enriched records.
type Sink interface {
	Write(rec *pipeline.Record) error
	Close() error
}

// Constant CAN_DataFrame columns carried for downstream measurement
// tooling; the sniffer setup has a single classic-CAN bus channel.
const (
	busChannel = 1
	ide        = 1
	dlc        = 1
	dir        = 1
	edl        = 1
	brs        = 1
)
