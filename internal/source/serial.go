package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/canlab/nexlog/internal/logging"
	"github.com/canlab/nexlog/internal/metrics"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// openPort is a hook for tests (overridden in unit tests).
var openPort = func(name string, baud int, readTimeout time.Duration) (Port, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout})
}

const serialReadBufSize = 4096

// Serial streams log lines from the Device Tester console on a serial
// port. Reads use a timeout so cancellation is observed promptly.
type Serial struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

func (s *Serial) Lines(ctx context.Context) (<-chan string, error) {
	to := s.ReadTimeout
	if to <= 0 {
		to = 50 * time.Millisecond
	}
	port, err := openPort(s.Device, s.Baud, to)
	if err != nil {
		return nil, err
	}
	logging.L().Info("serial_open", "device", s.Device, "baud", s.Baud)
	out := make(chan string)
	go func() {
		defer close(out)
		defer port.Close()
		buf := make([]byte, serialReadBufSize)
		var acc bytes.Buffer
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := port.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				for {
					idx := bytes.IndexByte(acc.Bytes(), '\n')
					if idx < 0 {
						break
					}
					line := strings.TrimRight(string(acc.Next(idx+1)), "\r\n")
					if !emit(ctx, out, line) {
						return
					}
				}
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					// Device unplugged or fatal.
					metrics.IncError(metrics.ErrSourceRead)
					logging.L().Error("serial_read_error", "device", s.Device, "error", err)
					return
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue // read timeout, try again
				}
				metrics.IncError(metrics.ErrSourceRead)
				logging.L().Warn("serial_read_error", "device", s.Device, "error", err)
			}
		}
	}()
	return out, nil
}
