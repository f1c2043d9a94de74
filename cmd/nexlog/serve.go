package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canlab/nexlog/internal/hub"
	"github.com/canlab/nexlog/internal/logging"
	"github.com/canlab/nexlog/internal/metrics"
	"github.com/canlab/nexlog/internal/pgn"
	"github.com/canlab/nexlog/internal/pipeline"
	"github.com/canlab/nexlog/internal/server"
	"github.com/canlab/nexlog/internal/source"
)

func newServeCmd() *cobra.Command {
	cfg := &serveConfig{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Decode a sniffer log and stream records to TCP subscribers",
		Long: `serve reads sniffer log lines from a file, a serial device or stdin,
decodes them into annotated J1939 records and broadcasts each record as
a JSON line to every connected TCP subscriber.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnvOverrides(cfg, cmd.Flags()); err != nil {
				return fmt.Errorf("environment override: %w", err)
			}
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("configuration: %w", err)
			}
			return runServe(cfg)
		},
	}
	cfg.registerFlags(cmd.Flags())
	return cmd
}

func buildSource(cfg *serveConfig) source.LineSource {
	switch cfg.source {
	case "serial":
		return &source.Serial{Device: cfg.serialDev, Baud: cfg.baud, ReadTimeout: cfg.serialReadTO}
	case "stdin":
		return &source.Stream{R: os.Stdin}
	default:
		return &source.File{Path: cfg.input, Follow: cfg.follow}
	}
}

func runServe(cfg *serveConfig) error {
	l := logging.L()

	var table *pgn.Table
	if cfg.pgnTable != "" {
		var err error
		table, err = pgn.LoadFile(cfg.pgnTable)
		if err != nil {
			return fmt.Errorf("pgn table: %w", err)
		}
		l.Info("pgn_table_loaded", "path", cfg.pgnTable, "entries", table.Len())
	}

	hb := hub.New()
	hb.OutBufSize = cfg.hubBuffer
	if cfg.hubPolicy == "kick" {
		hb.Policy = hub.PolicyKick
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := buildSource(cfg)
	lines, err := src.Lines(ctx)
	if err != nil {
		l.Error("source_open_error", "error", err)
		return err
	}
	l.Info("source_started", "source", cfg.source)

	records := pipeline.Run(ctx, lines, pipeline.Options{Table: table, Workers: cfg.workers})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for rec := range records {
			hb.Broadcast(rec)
		}
		l.Info("source_drained")
	}()

	srv := server.NewServer(
		server.WithListenAddr(cfg.listenAddr),
		server.WithHub(hb),
		server.WithFlushInterval(cfg.flushEvery),
		server.WithBatchSize(cfg.batchSize),
		server.WithMaxClients(cfg.maxClients),
		server.WithLogger(l),
	)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	// Advertise once the listener is bound.
	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		var portNum int
		if _, p, err := net.SplitHostPort(srv.Addr()); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
	case <-ctx.Done():
	}
	cancel()
	_ = srv.Shutdown(context.Background())
	wg.Wait()
	snap := metrics.Snap()
	l.Info("serve_summary",
		"lines_read", snap.LinesRead,
		"records_emitted", snap.Emitted,
		"skipped", snap.Skipped,
		"short_payloads", snap.ShortPayloads,
		"parse_failures", snap.ParseFailures,
		"tcp_tx", snap.TCPTx,
	)
	return nil
}
