package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/canlab/nexlog/internal/hub"
	"github.com/canlab/nexlog/internal/pipeline"
)

// TestSmokeServer starts the TCP server on an ephemeral port, connects a
// subscriber and checks a broadcast record arrives as a JSON line.
func TestSmokeServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := hub.New()
	srv := NewServer(
		WithHub(h),
		WithFlushInterval(time.Millisecond),
	)
	srv.SetListenAddr(":0")
	go func() {
		if err := srv.Serve(ctx); err != nil {
			t.Logf("Serve returned: %v", err)
		}
	}()
	select {
	case <-srv.Ready():
	case <-time.After(1 * time.Second):
		t.Fatalf("server did not signal readiness")
	}

	d := net.Dialer{Timeout: 1 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the hub registration before broadcasting.
	deadline := time.Now().Add(time.Second)
	for h.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if h.Count() != 1 {
		t.Fatalf("subscriber not registered")
	}

	line := "000001.226604 (000.003827)  Rx() ID = 00 Ret = 0019 Sz = 02048 Blk = 1 Data:  00 11 EE B0 00 20 FF 00 03 00 FF 10 21 00 00 00 FF D0 FF"
	rec, err := pipeline.Process(line, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	h.Broadcast(rec)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	raw, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read record line: %v", err)
	}
	var got pipeline.Record
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.CANID != 0x0CFF2000 {
		t.Errorf("canid = 0x%08X, want 0x0CFF2000", got.CANID)
	}
	if got.Frame.PGN != 65312 {
		t.Errorf("pgn = %d, want 65312", got.Frame.PGN)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestServer_MaxClients(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := hub.New()
	srv := NewServer(WithHub(h), WithMaxClients(1))
	srv.SetListenAddr(":0")
	go func() { _ = srv.Serve(ctx) }()
	select {
	case <-srv.Ready():
	case <-time.After(time.Second):
		t.Fatal("server not ready")
	}

	first, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()
	deadline := time.Now().Add(time.Second)
	for h.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	second, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()
	// The rejected connection is closed by the server; a read returns EOF.
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := second.Read(buf); err == nil {
		t.Fatal("second subscriber expected to be rejected")
	}
	if h.Count() != 1 {
		t.Fatalf("count = %d, want 1", h.Count())
	}
	_ = srv.Shutdown(context.Background())
}
