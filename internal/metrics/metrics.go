package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/canlab/nexlog/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters. The pipeline deliberately drops malformed and
// short lines without per-line logging; these counters are the
// diagnostic channel that makes the loss visible.
var (
	LinesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_lines_read_total",
		Help: "Total input lines consumed from the source.",
	})
	LinesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_lines_skipped_total",
		Help: "Lines without a payload marker (expected, not an error).",
	})
	ShortPayloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_short_payloads_total",
		Help: "Lines with a payload marker but fewer than 19 byte groups.",
	})
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_parse_failures_total",
		Help: "Lines with a payload marker but an unparsable required field.",
	})
	FramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_frames_decoded_total",
		Help: "J1939 frames decoded from valid log entries.",
	})
	PGNMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_pgn_matched_total",
		Help: "Decoded frames whose PGN had a label table entry.",
	})
	RecordsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_records_emitted_total",
		Help: "Enriched records handed to sinks or subscribers.",
	})
	TCPTxRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_tcp_tx_records_total",
		Help: "Records streamed to TCP subscribers.",
	})
	SocketCANTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_socketcan_tx_frames_total",
		Help: "Frames replayed onto the SocketCAN interface.",
	})
	HubDroppedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_hub_dropped_records_total",
		Help: "Records dropped by the hub due to slow subscribers.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_hub_kicked_clients_total",
		Help: "Subscribers disconnected by the backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexlog_hub_rejected_clients_total",
		Help: "Connection attempts rejected (e.g. max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nexlog_hub_active_clients",
		Help: "Current number of connected subscribers.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nexlog_build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexlog_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPWrite      = "tcp_write"
	ErrTCPAccept     = "tcp_accept"
	ErrSourceRead    = "source_read"
	ErrSinkWrite     = "sink_write"
	ErrSocketCANTx   = "socketcan_write"
	ErrSocketCANOpen = "socketcan_open"
)

// StartHTTP serves Prometheus metrics at /metrics plus a /ready probe.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap snapshots (no in-process scraping).
var (
	localLinesRead   uint64
	localSkipped     uint64
	localShort       uint64
	localParseFail   uint64
	localDecoded     uint64
	localPGNMatched  uint64
	localEmitted     uint64
	localTCPTx       uint64
	localSocketCANTx uint64
	localHubDrop     uint64
	localHubKick     uint64
	localHubReject   uint64
	localHubClients  uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	LinesRead     uint64
	Skipped       uint64
	ShortPayloads uint64
	ParseFailures uint64
	Decoded       uint64
	PGNMatched    uint64
	Emitted       uint64
	TCPTx         uint64
	SocketCANTx   uint64
	HubDrops      uint64
	HubKicks      uint64
	HubRejects    uint64
	HubClients    uint64
	Errors        uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		LinesRead:     atomic.LoadUint64(&localLinesRead),
		Skipped:       atomic.LoadUint64(&localSkipped),
		ShortPayloads: atomic.LoadUint64(&localShort),
		ParseFailures: atomic.LoadUint64(&localParseFail),
		Decoded:       atomic.LoadUint64(&localDecoded),
		PGNMatched:    atomic.LoadUint64(&localPGNMatched),
		Emitted:       atomic.LoadUint64(&localEmitted),
		TCPTx:         atomic.LoadUint64(&localTCPTx),
		SocketCANTx:   atomic.LoadUint64(&localSocketCANTx),
		HubDrops:      atomic.LoadUint64(&localHubDrop),
		HubKicks:      atomic.LoadUint64(&localHubKick),
		HubRejects:    atomic.LoadUint64(&localHubReject),
		HubClients:    atomic.LoadUint64(&localHubClients),
		Errors:        atomic.LoadUint64(&localErrors),
	}
}

// Wrapper helpers to keep call sites simple.
func IncLinesRead() {
	LinesRead.Inc()
	atomic.AddUint64(&localLinesRead, 1)
}

func IncSkipped() {
	LinesSkipped.Inc()
	atomic.AddUint64(&localSkipped, 1)
}

func IncShortPayload() {
	ShortPayloads.Inc()
	atomic.AddUint64(&localShort, 1)
}

func IncParseFailure() {
	ParseFailures.Inc()
	atomic.AddUint64(&localParseFail, 1)
}

func IncDecoded() {
	FramesDecoded.Inc()
	atomic.AddUint64(&localDecoded, 1)
}

func IncPGNMatched() {
	PGNMatched.Inc()
	atomic.AddUint64(&localPGNMatched, 1)
}

func IncEmitted() {
	RecordsEmitted.Inc()
	atomic.AddUint64(&localEmitted, 1)
}

func AddTCPTx(n int) {
	TCPTxRecords.Add(float64(n))
	atomic.AddUint64(&localTCPTx, uint64(n))
}

func IncSocketCANTx() {
	SocketCANTxFrames.Inc()
	atomic.AddUint64(&localSocketCANTx, 1)
}

func IncHubDrop() {
	HubDroppedRecords.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func IncHubReject() {
	HubRejectedClients.Inc()
	atomic.AddUint64(&localHubReject, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register the error label series so the first error does not pay
	// registration latency.
	for _, lbl := range []string{
		ErrTCPWrite, ErrTCPAccept, ErrSourceRead,
		ErrSinkWrite, ErrSocketCANTx, ErrSocketCANOpen,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
