package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/canlab/nexlog/internal/hub"
	"github.com/canlab/nexlog/internal/metrics"
	"github.com/canlab/nexlog/internal/pipeline"
)

// startWriter launches the goroutine pushing hub records to a single
// subscriber connection as newline-delimited JSON, batched to limit
// syscall churn on busy captures.
func (s *Server) startWriter(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			if s.Hub != nil {
				s.Hub.Remove(cl)
			}
			s.totalDisconnected.Add(1)
			logger.Info("subscriber_disconnected")
		}()
		t := time.NewTicker(s.flushInterval)
		defer t.Stop()
		batch := make([]*pipeline.Record, 0, s.batchSize)
		var buf bytes.Buffer
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n := len(batch)
			buf.Reset()
			enc := json.NewEncoder(&buf)
			for _, rec := range batch {
				if err := enc.Encode(rec); err != nil {
					// A record that cannot marshal is a programming error;
					// skip it rather than wedge the subscriber.
					logger.Error("record_encode_error", "error", err)
					n--
				}
			}
			batch = batch[:0]
			if buf.Len() == 0 {
				return nil
			}
			if _, err := conn.Write(buf.Bytes()); err != nil {
				wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				return wrap
			}
			metrics.AddTCPTx(n)
			return nil
		}
		for {
			select {
			case rec := <-cl.Out:
				batch = append(batch, rec)
				if len(batch) >= s.batchSize {
					if err := flush(); err != nil {
						return
					}
				}
			case <-t.C:
				if err := flush(); err != nil {
					return
				}
			case <-cl.Closed:
				_ = flush()
				return
			case <-ctxDone:
				_ = flush()
				return
			}
		}
	}()
}
