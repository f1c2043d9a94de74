package export

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/canlab/nexlog/internal/pipeline"
)

// csvHeader matches the original debugging sheet column for column so
// existing spreadsheets keep working.
var csvHeader = []string{
	"Original", "LogTimestamp", "LogID", "Ret", "Sz", "Blk", "LogDataBytes",
	"timestamps", "echoByte", "PGN", "Priority", "Source", "Destination",
	"DataBytes", "DataLength", "ID",
	"BusChannel", "IDE", "DLC", "Dir", "EDL", "BRS",
	"PgnLabel", "PgnInDbc",
}

// CSV writes records as semicolon-separated rows. Numeric frame fields
// are rendered as fixed-width uppercase hex, the way the sniffer
// tooling displays them.
type CSV struct {
	w *csv.Writer
}

// NewCSV writes the header row immediately so an empty conversion still
// yields a well-formed file.
func NewCSV(w io.Writer) (*CSV, error) {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	return &CSV{w: cw}, nil
}

func (c *CSV) Write(rec *pipeline.Record) error {
	blk := ""
	if rec.Entry.Blk != nil {
		blk = strconv.Itoa(*rec.Entry.Blk)
	}
	label, inDBC := "", ""
	if rec.PGN != nil {
		label = rec.PGN.Label
		inDBC = strconv.FormatBool(rec.PGN.InDBC)
	}
	row := []string{
		rec.Entry.Line,
		rec.Entry.Timestamp,
		strconv.Itoa(rec.Entry.LogID),
		strconv.Itoa(rec.Entry.Ret),
		strconv.Itoa(rec.Entry.Sz),
		blk,
		rec.Entry.Hex,
		strconv.FormatFloat(float64(rec.Frame.Timestamp), 'g', -1, 32),
		fmt.Sprintf("%02X", rec.Frame.Echo),
		fmt.Sprintf("%06X", rec.Frame.PGN),
		fmt.Sprintf("%02X", rec.Frame.Priority),
		fmt.Sprintf("%02X", rec.Frame.Source),
		fmt.Sprintf("%02X", rec.Frame.Destination),
		strings.ToUpper(hex.EncodeToString(rec.Frame.Data[:])),
		strconv.Itoa(len(rec.Frame.Data)),
		rec.CANIDHex(),
		strconv.Itoa(busChannel),
		strconv.Itoa(ide),
		strconv.Itoa(dlc),
		strconv.Itoa(dir),
		strconv.Itoa(edl),
		strconv.Itoa(brs),
		label,
		inDBC,
	}
	return c.w.Write(row)
}

func (c *CSV) Close() error {
	c.w.Flush()
	return c.w.Error()
}
