package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/canlab/nexlog/internal/logging"
	"github.com/canlab/nexlog/internal/metrics"
	"github.com/canlab/nexlog/internal/nexlog"
	"github.com/canlab/nexlog/internal/pgn"
)

// Options configure a pipeline run.
type Options struct {
	// Table is the read-only PGN lookup; must be fully built before the
	// run starts. May be nil (no annotations).
	Table *pgn.Table
	// Workers is the parallel map width; <= 0 means GOMAXPROCS.
	Workers int
}

// Run maps lines to enriched records on a worker pool. The returned
// channel preserves input line order and closes once the input channel
// closes and all pending lines are done. Dropped lines (no marker,
// short payload, unparsable required field) produce no output; the
// drop reasons are counted in metrics and the run never aborts.
func Run(ctx context.Context, lines <-chan string, opts Options) <-chan *Record {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type job struct {
		seq  uint64
		line string
	}
	type result struct {
		seq uint64
		rec *Record // nil when the line was dropped
	}

	jobs := make(chan job, workers)
	results := make(chan result, workers)
	out := make(chan *Record, workers)

	go func() {
		defer close(jobs)
		var seq uint64
		for {
			var line string
			var ok bool
			select {
			case line, ok = <-lines:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
			metrics.IncLinesRead()
			select {
			case jobs <- job{seq: seq, line: line}:
			case <-ctx.Done():
				return
			}
			seq++
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case results <- result{seq: j.seq, rec: processCounted(j.line, opts.Table)}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	// Reorder stage: emit records strictly by sequence number so the
	// output matches the source line order regardless of worker timing.
	go func() {
		defer close(out)
		pending := make(map[uint64]*Record)
		next := uint64(0)
		for r := range results {
			pending[r.seq] = r.rec
			for {
				rec, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if rec == nil {
					continue
				}
				metrics.IncEmitted()
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// processCounted wraps Process with the drop accounting. The reference
// behavior is a silent drop; the counters (plus a debug-level log for
// hard parse failures) keep the emission set identical while making
// the loss observable.
func processCounted(line string, table *pgn.Table) *Record {
	rec, err := Process(line, table)
	switch {
	case err == nil:
		metrics.IncDecoded()
		if rec.PGN != nil {
			metrics.IncPGNMatched()
		}
		return rec
	case errors.Is(err, nexlog.ErrNoPayload):
		metrics.IncSkipped()
	case errors.Is(err, nexlog.ErrShortPayload):
		metrics.IncShortPayload()
	default:
		metrics.IncParseFailure()
		logging.L().Debug("line_parse_failed", "error", err)
	}
	return nil
}
