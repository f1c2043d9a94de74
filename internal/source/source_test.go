package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, src LineSource) []string {
	t.Helper()
	ch, err := src.Lines(context.Background())
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	var got []string
	for line := range ch {
		got = append(got, line)
	}
	return got
}

func TestFile_Lines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	content := "first line\r\nsecond line\nlast without newline"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got := collect(t, &File{Path: path})
	want := []string{"first line", "second line", "last without newline"}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFile_Missing(t *testing.T) {
	if _, err := (&File{Path: "/nonexistent/nexlog-test.log"}).Lines(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
}

func TestFile_Follow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "follow.log")
	if err := os.WriteFile(path, []byte("one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := (&File{Path: path, Follow: true, PollInterval: 5 * time.Millisecond}).Lines(ctx)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if line := <-ch; line != "one" {
		t.Fatalf("first line = %q", line)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("two\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	select {
	case line := <-ch:
		if line != "two" {
			t.Fatalf("appended line = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for appended line")
	}
	cancel()
	for range ch {
	}
}

func TestStream_Lines(t *testing.T) {
	got := collect(t, &Stream{R: strings.NewReader("a\nb\nc\n")})
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("got %q", got)
	}
}

// fakePort feeds canned chunks then blocks on timeout-style empty reads
// until closed.
type fakePort struct {
	chunks [][]byte
	done   chan struct{}
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		select {
		case <-p.done:
			return 0, os.ErrClosed
		case <-time.After(time.Millisecond):
			return 0, io.EOF // tarm-style read timeout
		}
	}
	n := copy(b, p.chunks[0])
	if n == len(p.chunks[0]) {
		p.chunks = p.chunks[1:]
	} else {
		p.chunks[0] = p.chunks[0][n:]
	}
	return n, nil
}

func (p *fakePort) Close() error {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	return nil
}

func TestSerial_Lines(t *testing.T) {
	port := &fakePort{
		chunks: [][]byte{
			[]byte("partial"),
			[]byte(" line\r\nsecond"),
			[]byte(" line\n"),
		},
		done: make(chan struct{}),
	}
	orig := openPort
	openPort = func(string, int, time.Duration) (Port, error) { return port, nil }
	defer func() { openPort = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := (&Serial{Device: "/dev/fake", Baud: 115200}).Lines(ctx)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if line := <-ch; line != "partial line" {
		t.Fatalf("line 1 = %q", line)
	}
	if line := <-ch; line != "second line" {
		t.Fatalf("line 2 = %q", line)
	}
	cancel()
	for range ch {
	}
}
