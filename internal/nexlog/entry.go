// Package nexlog parses the proprietary log format written by the Nexiq
// Device Tester logging feature. A log line wraps one J1939 message in
// vendor metadata:
//
//	000001.226604 (000.003827)  Rx() ID = 00 Ret = 0019 Sz = 02048 Blk = 1 Data:  00 11 EE B0 ...
//
// The trailing hex bytes carry the actual CAN frame in the RP1210 blob
// layout decoded by the j1939 package.
package nexlog

import (
	"errors"
	"fmt"
)

// Skip sentinels: expected, frequent, and never abort a run.
var (
	// ErrNoPayload marks a line without the "Data:" marker.
	ErrNoPayload = errors.New("nexlog: no payload marker")
	// ErrShortPayload marks a line whose payload has fewer than 19 byte groups.
	ErrShortPayload = errors.New("nexlog: payload shorter than 19 bytes")
)

// MissingFieldError reports a line that carries the payload marker but
// fails to match a required field pattern.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("nexlog: required field %q not found", e.Field)
}

// IsSkip reports whether err is one of the silent-drop sentinels, as
// opposed to a per-line parse failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrNoPayload) || errors.Is(err, ErrShortPayload)
}

// Entry is one raw vendor-log record. The ID/Ret/Sz fields belong to
// the log wrapper, not to the CAN frame; they are carried through for
// the debug outputs and never interpreted.
type Entry struct {
	Line      string `json:"line"`
	Timestamp string `json:"log_timestamp"`
	LogID     int    `json:"log_id"`
	Ret       int    `json:"ret"`
	Sz        int    `json:"sz"`
	Blk       *int   `json:"blk,omitempty"`
	Hex       string `json:"hex"`        // contiguous hex digits, whitespace stripped
	ByteCount int    `json:"byte_count"` // number of two-digit groups found
}
