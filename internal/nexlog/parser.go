package nexlog

import (
	"regexp"
	"strconv"
	"strings"
)

const payloadMarker = "Data:"

// minGroups is the number of hex byte groups a usable payload carries
// (the RP1210 blob is 19 bytes; anything shorter is truncated junk).
const minGroups = 19

var (
	tsRe   = regexp.MustCompile(`^(.*?) \(`)
	idRe   = regexp.MustCompile(`ID = ([0-9]+)`)
	retRe  = regexp.MustCompile(`Ret = ([0-9]+)`)
	szRe   = regexp.MustCompile(`Sz = ([0-9]+)`)
	blkRe  = regexp.MustCompile(`Blk = ([0-9]+)`)
	dataRe = regexp.MustCompile(`Data: ([0-9A-F ]*)`)
)

// ParseLine extracts an Entry from one log line.
//
// Lines without the "Data:" marker return ErrNoPayload; payloads with
// fewer than 19 two-hex-digit groups return ErrShortPayload. Both are
// skip conditions (see IsSkip). A line that carries the marker but is
// missing a required field returns *MissingFieldError.
func ParseLine(line string) (*Entry, error) {
	if !strings.Contains(line, payloadMarker) {
		return nil, ErrNoPayload
	}
	e := &Entry{Line: strings.TrimSpace(line)}

	m := tsRe.FindStringSubmatch(line)
	if m == nil {
		return nil, &MissingFieldError{Field: "timestamp"}
	}
	e.Timestamp = m[1]

	var err error
	if e.LogID, err = requiredInt(idRe, line, "ID"); err != nil {
		return nil, err
	}
	if e.Ret, err = requiredInt(retRe, line, "Ret"); err != nil {
		return nil, err
	}
	if e.Sz, err = requiredInt(szRe, line, "Sz"); err != nil {
		return nil, err
	}
	if m := blkRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		e.Blk = &n
	}

	// The marker is present, so the payload pattern always matches; it
	// may still capture fewer groups than a full blob.
	m = dataRe.FindStringSubmatch(line)
	if m == nil {
		return nil, &MissingFieldError{Field: "Data"}
	}
	groups := strings.Fields(m[1])
	for _, g := range groups {
		if len(g) == 2 {
			e.ByteCount++
		}
	}
	e.Hex = strings.Join(groups, "")
	if e.ByteCount < minGroups {
		return nil, ErrShortPayload
	}
	return e, nil
}

func requiredInt(re *regexp.Regexp, line, name string) (int, error) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, &MissingFieldError{Field: name}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Digits-only capture; Atoi can only fail on overflow.
		return 0, &MissingFieldError{Field: name}
	}
	return n, nil
}
