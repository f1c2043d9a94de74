package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/canlab/nexlog/internal/export"
	"github.com/canlab/nexlog/internal/logging"
	"github.com/canlab/nexlog/internal/metrics"
	"github.com/canlab/nexlog/internal/pgn"
	"github.com/canlab/nexlog/internal/pipeline"
	"github.com/canlab/nexlog/internal/source"
)

func newConvertCmd() *cobra.Command {
	var (
		csvPath    string
		sqlitePath string
		pgnTable   string
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "convert <logfile>",
		Short: "Decode a sniffer log into CSV and/or SQLite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" && sqlitePath == "" {
				return errors.New("at least one of --csv or --sqlite is required")
			}
			if workers < 0 {
				return fmt.Errorf("workers must be >= 0 (got %d)", workers)
			}
			return runConvert(args[0], csvPath, sqlitePath, pgnTable, workers)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV output path (- for stdout)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite output path")
	cmd.Flags().StringVar(&pgnTable, "pgn-table", "", "PGN label table (.csv or .yaml); empty disables annotation")
	cmd.Flags().IntVar(&workers, "workers", 0, "Decode workers (0 = GOMAXPROCS)")
	return cmd
}

func runConvert(input, csvPath, sqlitePath, pgnTable string, workers int) error {
	l := logging.L()

	var table *pgn.Table
	if pgnTable != "" {
		var err error
		table, err = pgn.LoadFile(pgnTable)
		if err != nil {
			return fmt.Errorf("pgn table: %w", err)
		}
		l.Info("pgn_table_loaded", "path", pgnTable, "entries", table.Len())
	}

	var sinks []export.Sink
	closeSinks := func() error {
		var firstErr error
		for _, s := range sinks {
			if err := s.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	if csvPath != "" {
		w := os.Stdout
		if csvPath != "-" {
			f, err := os.Create(csvPath)
			if err != nil {
				return fmt.Errorf("csv output: %w", err)
			}
			defer f.Close()
			w = f
		}
		sink, err := export.NewCSV(w)
		if err != nil {
			return fmt.Errorf("csv output: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if sqlitePath != "" {
		sink, err := export.NewSQLite(sqlitePath)
		if err != nil {
			_ = closeSinks()
			return fmt.Errorf("sqlite output: %w", err)
		}
		sinks = append(sinks, sink)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &source.File{Path: input}
	lines, err := src.Lines(ctx)
	if err != nil {
		_ = closeSinks()
		return err
	}
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	for rec := range pipeline.Run(ctx, lines, pipeline.Options{Table: table, Workers: workers}) {
		for _, sink := range sinks {
			if werr := sink.Write(rec); werr != nil {
				metrics.IncError(metrics.ErrSinkWrite)
				cancel()
				_ = closeSinks()
				return fmt.Errorf("sink write: %w", werr)
			}
		}
	}
	if err := closeSinks(); err != nil {
		return fmt.Errorf("sink close: %w", err)
	}

	snap := metrics.Snap()
	l.Info("convert_summary",
		"input", input,
		"lines_read", snap.LinesRead,
		"records", snap.Emitted,
		"skipped", snap.Skipped,
		"short_payloads", snap.ShortPayloads,
		"parse_failures", snap.ParseFailures,
		"pgn_matched", snap.PGNMatched,
	)
	return nil
}
