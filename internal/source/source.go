// Package source provides the line-oriented inputs the pipeline
// consumes: a log file (optionally followed as the sniffer appends to
// it) and the Device Tester serial console.
package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/canlab/nexlog/internal/logging"
	"github.com/canlab/nexlog/internal/metrics"
)

// LineSource streams text lines until EOF, error, or cancellation.
type LineSource interface {
	Lines(ctx context.Context) (<-chan string, error)
}

const defaultPollInterval = 250 * time.Millisecond

// File streams lines from a log file on disk. With Follow set it keeps
// polling for appended data instead of stopping at EOF, tail style.
type File struct {
	Path         string
	Follow       bool
	PollInterval time.Duration
}

func (f *File) Lines(ctx context.Context) (<-chan string, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	poll := f.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	out := make(chan string)
	go func() {
		defer close(out)
		defer fh.Close()
		r := bufio.NewReader(fh)
		var partial strings.Builder
		for {
			chunk, err := r.ReadString('\n')
			if chunk != "" {
				partial.WriteString(chunk)
			}
			if err == nil {
				if !emit(ctx, out, strings.TrimRight(partial.String(), "\r\n")) {
					return
				}
				partial.Reset()
				continue
			}
			if !errors.Is(err, io.EOF) {
				metrics.IncError(metrics.ErrSourceRead)
				logging.L().Error("file_read_error", "path", f.Path, "error", err)
				return
			}
			if !f.Follow {
				if partial.Len() > 0 {
					emit(ctx, out, strings.TrimRight(partial.String(), "\r\n"))
				}
				return
			}
			select {
			case <-time.After(poll):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Stream adapts an arbitrary reader (stdin, a network pipe) into a
// line source. It owns neither the reader nor its lifetime.
type Stream struct {
	R io.Reader
}

func (s *Stream) Lines(ctx context.Context) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(s.R)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if !emit(ctx, out, sc.Text()) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			metrics.IncError(metrics.ErrSourceRead)
			logging.L().Error("stream_read_error", "error", err)
		}
	}()
	return out, nil
}

func emit(ctx context.Context, out chan<- string, line string) bool {
	select {
	case out <- line:
		return true
	case <-ctx.Done():
		return false
	}
}
