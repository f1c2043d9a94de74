package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type serveConfig struct {
	source       string
	input        string
	follow       bool
	serialDev    string
	baud         int
	serialReadTO time.Duration
	pgnTable     string
	workers      int
	listenAddr   string
	metricsAddr  string
	hubBuffer    int
	hubPolicy    string
	maxClients   int
	flushEvery   time.Duration
	batchSize    int
	mdnsEnable   bool
	mdnsName     string
}

func (c *serveConfig) registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.source, "source", "file", "Line source: file|serial|stdin")
	fs.StringVar(&c.input, "input", "", "Log file path (when --source=file)")
	fs.BoolVar(&c.follow, "follow", false, "Keep reading as the log file grows (tail -f)")
	fs.StringVar(&c.serialDev, "serial", "/dev/ttyUSB0", "Serial device path (when --source=serial)")
	fs.IntVar(&c.baud, "baud", 115200, "Serial baud rate")
	fs.DurationVar(&c.serialReadTO, "serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	fs.StringVar(&c.pgnTable, "pgn-table", "", "PGN label table (.csv or .yaml); empty disables annotation")
	fs.IntVar(&c.workers, "workers", 0, "Decode workers (0 = GOMAXPROCS)")
	fs.StringVar(&c.listenAddr, "listen", ":20100", "TCP listen address for subscribers")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	fs.IntVar(&c.hubBuffer, "hub-buffer", 512, "Per-subscriber hub buffer (records)")
	fs.StringVar(&c.hubPolicy, "hub-policy", "drop", "Backpressure policy: drop|kick")
	fs.IntVar(&c.maxClients, "max-clients", 0, "Maximum simultaneous subscribers (0 = unlimited)")
	fs.DurationVar(&c.flushEvery, "flush-interval", 5*time.Millisecond, "Subscriber write flush interval")
	fs.IntVar(&c.batchSize, "batch-size", 64, "Records batched per subscriber write")
	fs.BoolVar(&c.mdnsEnable, "mdns-enable", false, "Enable mDNS/Avahi advertisement")
	fs.StringVar(&c.mdnsName, "mdns-name", "", "mDNS instance name (default nexlog-<hostname>)")
}

// validate performs semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners, only checks values/ranges.
func (c *serveConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.source {
	case "file", "serial", "stdin":
	default:
		return fmt.Errorf("invalid source: %s", c.source)
	}
	if c.source == "file" && c.input == "" {
		return errors.New("--input is required with --source=file")
	}
	switch c.hubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return errors.New("serial-read-timeout must be > 0")
	}
	if c.workers < 0 {
		return fmt.Errorf("workers must be >= 0 (got %d)", c.workers)
	}
	if c.maxClients < 0 {
		return errors.New("max-clients must be >= 0")
	}
	if c.flushEvery <= 0 {
		return errors.New("flush-interval must be > 0")
	}
	if c.batchSize <= 0 {
		return errors.New("batch-size must be > 0")
	}
	return nil
}

// applyEnvOverrides maps NEXLOG_* environment variables to config fields
// unless a corresponding flag was explicitly set. Empty values are ignored.
// Durations accept Go time.ParseDuration format.
func applyEnvOverrides(c *serveConfig, fs *pflag.FlagSet) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	str := func(flag, env string, dst *string) {
		if fs.Changed(flag) {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	num := func(flag, env string, min int, dst *int) {
		if fs.Changed(flag) {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= min {
				*dst = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	dur := func(flag, env string, dst *time.Duration) {
		if fs.Changed(flag) {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				*dst = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	boolean := func(flag, env string, dst *bool) {
		if fs.Changed(flag) {
			return
		}
		if v, ok := get(env); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	str("source", "NEXLOG_SOURCE", &c.source)
	str("input", "NEXLOG_INPUT", &c.input)
	boolean("follow", "NEXLOG_FOLLOW", &c.follow)
	str("serial", "NEXLOG_SERIAL", &c.serialDev)
	num("baud", "NEXLOG_BAUD", 1, &c.baud)
	dur("serial-read-timeout", "NEXLOG_SERIAL_READ_TIMEOUT", &c.serialReadTO)
	str("pgn-table", "NEXLOG_PGN_TABLE", &c.pgnTable)
	num("workers", "NEXLOG_WORKERS", 0, &c.workers)
	str("listen", "NEXLOG_LISTEN", &c.listenAddr)
	num("hub-buffer", "NEXLOG_HUB_BUFFER", 1, &c.hubBuffer)
	str("hub-policy", "NEXLOG_HUB_POLICY", &c.hubPolicy)
	num("max-clients", "NEXLOG_MAX_CLIENTS", 0, &c.maxClients)
	boolean("mdns-enable", "NEXLOG_MDNS_ENABLE", &c.mdnsEnable)
	str("mdns-name", "NEXLOG_MDNS_NAME", &c.mdnsName)
	if !fs.Changed("metrics-addr") {
		// Empty value is meaningful here (explicitly disables metrics).
		if v, ok := get("NEXLOG_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	return firstErr
}
